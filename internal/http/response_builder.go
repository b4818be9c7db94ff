package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"debtr/internal/core"
	"debtr/internal/ledger"
	"debtr/internal/services"
)

// JSONResponse builds a JSON response. A nil body writes only the status.
type JSONResponse struct {
	status  int
	body    any
	warning string
	headers map[string]string
}

func NewJSONResponse(status int) *JSONResponse {
	return &JSONResponse{status: status, headers: map[string]string{}}
}

func (b *JSONResponse) Body(v any) *JSONResponse {
	b.body = v
	return b
}

// Warning attaches a non-fatal problem, such as a failed persist, to an
// object body. Nil is ignored.
func (b *JSONResponse) Warning(err error) *JSONResponse {
	if err != nil {
		b.warning = err.Error()
	}
	return b
}

func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Error sets an error body of the form {"error": {"code", "message"}}.
func (b *JSONResponse) Error(code, message string) *JSONResponse {
	b.body = map[string]any{"error": map[string]string{"code": code, "message": message}}
	return b
}

func (b *JSONResponse) Status() int { return b.status }

func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	body := b.body
	if b.warning != "" {
		if m, ok := body.(map[string]any); ok {
			m["warning"] = b.warning
		} else {
			body = map[string]any{"data": body, "warning": b.warning}
		}
	}
	if body == nil {
		w.WriteHeader(b.status)
		return
	}

	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, `{"error":{"code":"internal","message":"encode response"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.status)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorFromEngine maps an engine or validation error to a response.
func ErrorFromEngine(err error) *JSONResponse {
	switch {
	case errors.Is(err, ledger.ErrItemNotFound):
		return NewJSONResponse(http.StatusNotFound).Error("not_found", err.Error())
	case errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidNotification),
		errors.Is(err, services.ErrInvalidCurrency),
		errors.Is(err, services.ErrInvalidLocale):
		return NewJSONResponse(http.StatusUnprocessableEntity).Error("invalid_input", err.Error())
	case errors.Is(err, services.ErrUnsupportedAction):
		return NewJSONResponse(http.StatusBadRequest).Error("unsupported", err.Error())
	case errors.Is(err, services.ErrEngineClosed):
		return NewJSONResponse(http.StatusServiceUnavailable).Error("unavailable", "ledger is shutting down")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewJSONResponse(http.StatusServiceUnavailable).Error("timeout", "ledger did not answer in time")
	default:
		return NewJSONResponse(http.StatusInternalServerError).Error("internal", "internal error")
	}
}
