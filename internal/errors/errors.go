// Package errors defines the error taxonomy shared by search, resolution,
// transcoding and the streaming proxy. StreamError carries a Kind so callers
// can map failures to HTTP statuses and retry hints.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a StreamError.
type Kind string

// Error kinds
const (
	KindProviderUnavailable      Kind = "PROVIDER_UNAVAILABLE"
	KindUpstreamRejected         Kind = "UPSTREAM_REJECTED"
	KindTorrentStatusUnavailable Kind = "TORRENT_STATUS_UNAVAILABLE"
	KindNonStreamable            Kind = "NON_STREAMABLE"
	KindProxyUpstreamUnreachable Kind = "PROXY_UPSTREAM_UNREACHABLE"
	KindProxyUpstreamReset       Kind = "PROXY_UPSTREAM_RESET"
	KindProxyTransferFailed      Kind = "PROXY_TRANSFER_FAILED"
	KindTranscodeFailed          Kind = "TRANSCODE_FAILED"
	KindConfigurationInvalid     Kind = "CONFIGURATION_INVALID"
	KindAPIKeyMissing            Kind = "API_KEY_MISSING"
	KindInvalidRequest           Kind = "INVALID_REQUEST"
	KindHostNotAllowed           Kind = "HOST_NOT_ALLOWED"
	KindSessionNotFound          Kind = "SESSION_NOT_FOUND"
	KindTimeout                  Kind = "TIMEOUT"
	KindInternal                 Kind = "INTERNAL"
)

// StreamError represents errors that occur while finding or delivering a stream
type StreamError struct {
	Kind       Kind
	Message    string
	Suggestion string
	Cause      error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// WithSuggestion attaches a user-facing next action.
func (e *StreamError) WithSuggestion(s string) *StreamError {
	e.Suggestion = s
	return e
}

// New creates a new StreamError
func New(kind Kind, message string, cause error) *StreamError {
	return &StreamError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// NewProviderUnavailableError marks a single provider as down for this call
func NewProviderUnavailableError(provider string, cause error) *StreamError {
	return New(KindProviderUnavailable, fmt.Sprintf("provider %s unavailable", provider), cause)
}

// NewUpstreamRejectedError reports a refusal from the debrid service
func NewUpstreamRejectedError(message string, cause error) *StreamError {
	return New(KindUpstreamRejected, message, cause).WithSuggestion("try another source")
}

// NewTorrentStatusUnavailableError reports a polling failure after retries
func NewTorrentStatusUnavailableError(id string, cause error) *StreamError {
	return New(KindTorrentStatusUnavailable, fmt.Sprintf("status unavailable for torrent %s", id), cause).
		WithSuggestion("poll the status endpoint again")
}

func NewNonStreamableError(reason string) *StreamError {
	return New(KindNonStreamable, reason, nil).WithSuggestion("try another source or download externally")
}

func NewProxyUnreachableError(host string, cause error) *StreamError {
	return New(KindProxyUpstreamUnreachable, fmt.Sprintf("upstream %s unreachable", host), cause)
}

func NewProxyResetError(host string, cause error) *StreamError {
	return New(KindProxyUpstreamReset, fmt.Sprintf("upstream %s reset the connection", host), cause)
}

func NewProxyTransferError(cause error) *StreamError {
	return New(KindProxyTransferFailed, "stream transfer failed", cause)
}

// NewTranscodeFailedError reports a failed ffmpeg session
func NewTranscodeFailedError(sessionID string, cause error) *StreamError {
	return New(KindTranscodeFailed, fmt.Sprintf("transcode session %s failed", sessionID), cause).
		WithSuggestion("try another source")
}

// NewConfigurationError creates a configuration-related error
func NewConfigurationError(message string, cause error) *StreamError {
	return New(KindConfigurationInvalid, message, cause)
}

// NewAPIKeyMissingError creates an API key missing error
func NewAPIKeyMissingError(service string) *StreamError {
	return New(KindAPIKeyMissing, fmt.Sprintf("API key missing for %s", service), nil)
}

func NewInvalidRequestError(message string) *StreamError {
	return New(KindInvalidRequest, message, nil)
}

func NewHostNotAllowedError(host string) *StreamError {
	return New(KindHostNotAllowed, fmt.Sprintf("host %s is not allowed", host), nil)
}

func NewSessionNotFoundError(id string) *StreamError {
	return New(KindSessionNotFound, fmt.Sprintf("session %s not found", id), nil)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string) *StreamError {
	return New(KindTimeout, fmt.Sprintf("operation timeout: %s", operation), nil)
}

// KindOf returns the kind of the first StreamError in err's chain.
func KindOf(err error) Kind {
	var se *StreamError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the status code returned by the API.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindAPIKeyMissing:
		return http.StatusUnauthorized
	case KindHostNotAllowed:
		return http.StatusForbidden
	case KindSessionNotFound:
		return http.StatusNotFound
	case KindUpstreamRejected:
		return http.StatusUnprocessableEntity
	case KindProxyUpstreamUnreachable:
		return http.StatusBadGateway
	case KindProxyUpstreamReset, KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Body renders err as the JSON body used by the handlers.
func Body(err error) map[string]interface{} {
	body := map[string]interface{}{
		"error": err.Error(),
		"kind":  KindOf(err),
	}
	var se *StreamError
	if stderrors.As(err, &se) {
		body["error"] = se.Message
		if se.Suggestion != "" {
			body["suggestion"] = se.Suggestion
		}
	}
	return body
}
