package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/aschepis/backscratcher/summarizer/summarize"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// maxBodyBytes limits request bodies.
const maxBodyBytes = 10 << 20

// ValidationError is one entry of a 422 response, shaped like the errors
// FastAPI clients already parse.
type ValidationError struct {
	Type  string         `json:"type"`
	Loc   []string       `json:"loc"`
	Msg   string         `json:"msg"`
	Input any            `json:"input,omitempty"`
	Ctx   map[string]any `json:"ctx,omitempty"`
}

// ValidationErrors is returned by request decoding.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = strings.Join(e.Loc, ".") + ": " + e.Msg
	}
	return strings.Join(msgs, "; ")
}

// errBodyTooLarge is reported as 413.
var errBodyTooLarge = errors.New("request body too large")

// summarizeRequest is the body of POST /stream_summary/. Pointers tell absent
// fields from zero values.
type summarizeRequest struct {
	Content     *string  `json:"content" validate:"required"`
	Percent     *int     `json:"percent" validate:"omitnil,min=1,max=100"`
	Bullets     *bool    `json:"bullets"`
	Temperature *float64 `json:"temperature" validate:"omitnil,gte=0,lte=1"`
}

// chatRequest is the body of POST /stream_chat/.
type chatRequest struct {
	Content *string `json:"content" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// decodeSummarizeRequest validates the body and fills in defaults.
func decodeSummarizeRequest(w http.ResponseWriter, r *http.Request) (summarize.Params, error) {
	b, err := readBody(w, r)
	if err != nil {
		return summarize.Params{}, err
	}

	req := summarizeRequest{
		Content:     b.String("content"),
		Percent:     b.Int("percent"),
		Bullets:     b.Bool("bullets"),
		Temperature: b.Float("temperature"),
	}
	if err := b.Validate(&req); err != nil {
		return summarize.Params{}, err
	}

	params := summarize.DefaultParams(*req.Content)
	params.Percent = lo.FromPtrOr(req.Percent, params.Percent)
	params.Bullets = lo.FromPtrOr(req.Bullets, params.Bullets)
	params.Temperature = lo.FromPtrOr(req.Temperature, params.Temperature)
	return params, nil
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (string, error) {
	b, err := readBody(w, r)
	if err != nil {
		return "", err
	}

	req := chatRequest{Content: b.String("content")}
	if err := b.Validate(&req); err != nil {
		return "", err
	}
	return *req.Content, nil
}

// binder converts the raw fields of a JSON object into typed values with
// the same lax coercions as a pydantic model, collecting type errors.
type binder struct {
	fields map[string]json.RawMessage
	order  []string
	errs   ValidationErrors
	failed map[string]bool
}

// readBody reads r's body, which must be a JSON object.
func readBody(w http.ResponseWriter, r *http.Request) (*binder, error) {
	var fields map[string]json.RawMessage
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&fields)

	var maxBytesErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil && fields == nil, errors.Is(err, io.EOF):
		return nil, bodyError("missing", "Field required")
	case err == nil:
		return &binder{fields: fields, failed: make(map[string]bool)}, nil
	case errors.As(err, &maxBytesErr):
		return nil, errBodyTooLarge
	case errors.As(err, &typeErr):
		return nil, bodyError("model_attributes_type", "Input should be a valid dictionary or object to extract fields from")
	default:
		return nil, bodyError("json_invalid", "JSON decode error")
	}
}

func bodyError(typ, msg string) ValidationErrors {
	return ValidationErrors{{Type: typ, Loc: []string{"body"}, Msg: msg}}
}

// value returns the decoded field, numbers as json.Number.
func (b *binder) value(name string) (any, bool) {
	b.order = append(b.order, name)
	raw, ok := b.fields[name]
	if !ok {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	_ = dec.Decode(&v) // raw was already parsed as part of the object
	return v, true
}

func (b *binder) fail(name, typ, msg string, input any) {
	b.failed[name] = true
	b.errs = append(b.errs, ValidationError{
		Type:  typ,
		Loc:   []string{"body", name},
		Msg:   msg,
		Input: input,
	})
}

// String binds a string field. Nothing else is coerced to a string.
func (b *binder) String(name string) *string {
	v, ok := b.value(name)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		b.fail(name, "string_type", "Input should be a valid string", v)
		return nil
	}
	return &s
}

// Int binds an integer field. Floats without a fractional part and numeric
// strings are accepted.
func (b *binder) Int(name string) *int {
	v, ok := b.value(name)
	if !ok {
		return nil
	}

	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
			n := int(i)
			return &n
		}
		f, err := x.Float64()
		switch {
		case err != nil || math.Abs(f) > math.MaxInt32:
			b.fail(name, "int_parsing_size", "Unable to parse input string as an integer, exceeded maximum size", x)
		case f != math.Trunc(f):
			b.fail(name, "int_from_float", "Input should be a valid integer, got a number with a fractional part", x)
		default:
			n := int(f)
			return &n
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return &n
		}
		b.fail(name, "int_parsing", "Input should be a valid integer, unable to parse string as an integer", x)
	default:
		b.fail(name, "int_type", "Input should be a valid integer", x)
	}
	return nil
}

// Float binds a number field. Numeric strings are accepted.
func (b *binder) Float(name string) *float64 {
	v, ok := b.value(name)
	if !ok {
		return nil
	}

	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return &f
		}
		b.fail(name, "float_parsing", "Input should be a valid number, unable to parse string as a number", x)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return &f
		}
		b.fail(name, "float_parsing", "Input should be a valid number, unable to parse string as a number", x)
	default:
		b.fail(name, "float_type", "Input should be a valid number", x)
	}
	return nil
}

// Bool binds a boolean field. 0/1 and the usual yes/no strings are accepted.
func (b *binder) Bool(name string) *bool {
	v, ok := b.value(name)
	if !ok {
		return nil
	}

	var s string
	switch x := v.(type) {
	case bool:
		return &x
	case json.Number:
		s = x.String()
	case string:
		s = strings.ToLower(strings.TrimSpace(x))
	default:
		b.fail(name, "bool_type", "Input should be a valid boolean", x)
		return nil
	}

	switch s {
	case "1", "on", "t", "true", "y", "yes":
		return lo.ToPtr(true)
	case "0", "off", "f", "false", "n", "no":
		return lo.ToPtr(false)
	}
	b.fail(name, "bool_parsing", "Input should be a valid boolean, unable to interpret input", v)
	return nil
}

// Validate runs the struct tags of req, skipping fields that already failed
// to bind, and returns every error in field order.
func (b *binder) Validate(req any) error {
	var fieldErrs validator.ValidationErrors
	if err := validate.Struct(req); errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if !b.failed[fe.Field()] {
				b.errs = append(b.errs, fromFieldError(fe))
			}
		}
	} else if err != nil {
		return fmt.Errorf("failed to validate request: %w", err)
	}

	if len(b.errs) == 0 {
		return nil
	}
	slices.SortStableFunc(b.errs, func(x, y ValidationError) int {
		return lo.IndexOf(b.order, x.Loc[len(x.Loc)-1]) - lo.IndexOf(b.order, y.Loc[len(y.Loc)-1])
	})
	return b.errs
}

func fromFieldError(fe validator.FieldError) ValidationError {
	ve := ValidationError{Loc: []string{"body", fe.Field()}}
	switch fe.Tag() {
	case "required":
		ve.Type, ve.Msg = "missing", "Field required"
	case "min", "gte":
		bound := tagParam(fe.Param())
		ve.Type = "greater_than_equal"
		ve.Msg = fmt.Sprintf("Input should be greater than or equal to %v", bound)
		ve.Input, ve.Ctx = fe.Value(), map[string]any{"ge": bound}
	case "max", "lte":
		bound := tagParam(fe.Param())
		ve.Type = "less_than_equal"
		ve.Msg = fmt.Sprintf("Input should be less than or equal to %v", bound)
		ve.Input, ve.Ctx = fe.Value(), map[string]any{"le": bound}
	default:
		ve.Type = "value_error"
		ve.Msg = fmt.Sprintf("Value error, failed the %q check", fe.Tag())
		ve.Input = fe.Value()
	}
	return ve
}

// tagParam renders a numeric tag parameter as a number.
func tagParam(p string) any {
	if n, err := strconv.Atoi(p); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(p, 64); err == nil {
		return f
	}
	return p
}
