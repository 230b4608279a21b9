package errors

import (
	"errors"
	"net/http"
)

// HTTPStatus converts an error into the status code the JSON API answers with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error envelope returned to clients.
type Body struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Op        string `json:"op,omitempty"`
	ID        string `json:"id,omitempty"`
	Retryable bool   `json:"retryable"`
}

// ToBody renders err for the client. Transient failures never leak the
// underlying driver message.
func ToBody(err error) Body {
	var e *Error
	if !errors.As(err, &e) {
		return Body{Error: "internal error", Kind: KindUnknown.String()}
	}

	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	return Body{
		Error:     msg,
		Kind:      e.Kind.String(),
		Op:        e.Op,
		ID:        e.ID,
		Retryable: e.Retryable(),
	}
}
