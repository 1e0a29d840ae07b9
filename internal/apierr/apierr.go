// Package apierr defines the error taxonomy surfaced by the HTTP API.
// Every failure a handler returns to a client is one of these kinds; anything
// else maps to a generic 500.
package apierr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an API error into its HTTP status family.
type Kind int

const (
	KindValidation   Kind = iota // 400: missing or malformed input
	KindUnauthorized             // 401: missing or invalid credentials
	KindForbidden                // 403: network, geofence, ownership or license failure
	KindNotFound                 // 404: entity absent or expired
	KindUpstream                 // 502: collaborator service failure
)

// Error is a client-visible error with an HTTP status mapping.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func Validation(msg string) *Error   { return &Error{Kind: KindValidation, Message: msg} }
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) *Error    { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }

// Upstream wraps a collaborator failure, keeping the cause for logs.
func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// Abort writes err as a JSON response and aborts the gin chain. Unclassified
// errors become a 500 with a generic message so internals never leak.
func Abort(c *gin.Context, err error) {
	var ae *Error
	if errors.As(err, &ae) {
		c.AbortWithStatusJSON(ae.Status(), gin.H{"error": ae.Message})
		return
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
