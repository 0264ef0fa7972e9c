package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"
)

const (
	summaryFailureDetail = "An error occurred while streaming summary response."
	chatFailureDetail    = "An error occurred while streaming chat response."
)

type healthResponse struct {
	Status string `json:"status"`
}

type detailResponse struct {
	Detail any `json:"detail"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleStreamSummary(w http.ResponseWriter, r *http.Request) {
	params, err := decodeSummarizeRequest(w, r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	hlog.FromRequest(r).Debug().
		Int("percent", params.Percent).
		Bool("bullets", params.Bullets).
		Float64("temperature", params.Temperature).
		Int("content_length", len(params.Content)).
		Msg("Streaming summary")

	stream, err := s.streamer.StreamSummary(r.Context(), params)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to start summary stream")
		writeDetail(w, http.StatusInternalServerError, summaryFailureDetail)
		return
	}
	writeStream(w, r, stream, summaryFailureDetail)
}

func (s *Server) handleStreamChat(w http.ResponseWriter, r *http.Request) {
	content, err := decodeChatRequest(w, r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	stream, err := s.streamer.StreamResponse(r.Context(), content)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to start chat stream")
		writeDetail(w, http.StatusInternalServerError, chatFailureDetail)
		return
	}
	writeStream(w, r, stream, chatFailureDetail)
}

func writeRequestError(w http.ResponseWriter, err error) {
	var verrs ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeDetail(w, http.StatusUnprocessableEntity, []ValidationError(verrs))
	case errors.Is(err, errBodyTooLarge):
		writeDetail(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		writeDetail(w, http.StatusBadRequest, err.Error())
	}
}

func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
