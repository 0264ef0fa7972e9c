package server

import (
	"net/http"
	"time"

	"github.com/aschepis/backscratcher/summarizer/config"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/samber/lo"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// allMethods replaces a "*" entry in the allowed methods list.
var allMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// Chain wraps handler with the middleware stack.
// Order: CORS → logger → request id → access log → handler
func Chain(handler http.Handler, corsCfg config.CORSConfig, logger zerolog.Logger) http.Handler {
	h := handler
	h = hlog.AccessHandler(accessLog)(h)
	h = hlog.UserAgentHandler("user_agent")(h)
	h = hlog.RemoteAddrHandler("remote_addr")(h)
	h = RequestID(h)
	h = hlog.NewHandler(logger)(h)
	h = newCORS(corsCfg).Handler(h)
	return h
}

// RequestID assigns every request a UUID, or keeps the one the client sent,
// and adds it to the response and the request logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		log := zerolog.Ctx(r.Context())
		log.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("request_id", id)
		})
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

func newCORS(cfg config.CORSConfig) *cors.Cors {
	methods := cfg.AllowedMethods
	if lo.Contains(methods, "*") {
		methods = allMethods
	}
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   methods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: lo.FromPtr(cfg.AllowCredentials),
	})
}
