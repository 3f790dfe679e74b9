package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gudangmitra/gudang/internal/apperr"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// responder writes envelopes. In production the raw error text is withheld.
type responder struct {
	Production bool
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// ok writes a success envelope.
func ok(w http.ResponseWriter, status int, message string, data any) {
	jsonResponse(w, status, envelope{Success: true, Message: message, Data: data})
}

// jsonError writes a failure envelope with a client-facing message.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, envelope{Success: false, Message: message})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation, apperr.InvalidTransition:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict, apperr.AlreadyReturned:
		return http.StatusConflict
	case apperr.Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// fail maps err to a status and writes it. action names what was attempted,
// e.g. "failed to create item", and is the message for Persistence errors.
func (rs responder) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	msg := apperr.Message(err)
	if kind == apperr.Persistence || msg == "" {
		msg = action
	}
	if status == http.StatusInternalServerError {
		slog.Error(action, "error", err, "request_id", middleware.GetReqID(r.Context()))
	}

	body := envelope{Success: false, Message: msg}
	if !rs.Production {
		body.Error = err.Error()
	}
	jsonResponse(w, status, body)
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses the numeric {id} URL parameter.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// nonNil turns a nil slice into an empty one so lists encode as [].
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
