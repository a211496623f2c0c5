package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/persona-chat-go/internal/i18n"
	"github.com/persona-chat-go/internal/models"
)

// ErrorKind classifies every way a chat request can fail.
type ErrorKind string

const (
	MethodNotAllowed    ErrorKind = "method_not_allowed"
	RateLimited         ErrorKind = "rate_limited"
	MisconfiguredServer ErrorKind = "misconfigured_server"
	UpstreamUnreachable ErrorKind = "upstream_unreachable"
	UpstreamError       ErrorKind = "upstream_error"
	UnexpectedError     ErrorKind = "unexpected_error"
)

// GatewayError is a terminal request failure. Err is the cause, which is
// logged but never shown to the client.
type GatewayError struct {
	Kind ErrorKind
	Err  error
	// data feeds the client message template.
	data map[string]interface{}
}

func newGatewayError(kind ErrorKind, err error) *GatewayError {
	return &GatewayError{Kind: kind, Err: err}
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind to its HTTP status.
func (e *GatewayError) StatusCode() int {
	switch e.Kind {
	case MethodNotAllowed:
		return http.StatusMethodNotAllowed
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// messageID returns the client-facing message for the kind. Both upstream
// kinds share one message so transport details never reach the client.
func (e *GatewayError) messageID() string {
	switch e.Kind {
	case MethodNotAllowed:
		return i18n.MsgMethodNotAllowed
	case RateLimited:
		return i18n.MsgRateLimitExceeded
	case MisconfiguredServer:
		return i18n.MsgMissingAPIKey
	case UpstreamUnreachable, UpstreamError:
		return i18n.MsgUpstreamError
	default:
		return i18n.MsgUnexpectedError
	}
}

// asGatewayError classifies err, treating anything unknown as unexpected.
func asGatewayError(err error) *GatewayError {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}
	return newGatewayError(UnexpectedError, err)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, localizer *i18n.Localizer, ge *GatewayError) {
	msg := localizer.Get(r.Header.Get("Accept-Language"), ge.messageID(), ge.data)
	writeJSON(w, ge.StatusCode(), models.ErrorResponse{Error: msg})
}
