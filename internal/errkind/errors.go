// Package errkind implements the error taxonomy of spec §7: a small set of
// named kinds, each with a fixed HTTP status and retry policy, rather than a
// type hierarchy per error site.
package errkind

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the taxonomy entries of §7.
type Kind string

const (
	InvalidArgument Kind = "InvalidArgument"
	NotFound        Kind = "NotFound"
	Conflict        Kind = "Conflict"
	Busy            Kind = "Busy"
	Transient       Kind = "Transient"
	Unrecoverable   Kind = "Unrecoverable"
	Cancelled       Kind = "Cancelled"
	Internal        Kind = "Internal"
)

var httpStatus = map[Kind]int{
	InvalidArgument: http.StatusBadRequest,
	NotFound:        http.StatusNotFound,
	Conflict:        http.StatusConflict,
	Busy:            http.StatusConflict,
	Transient:       http.StatusServiceUnavailable,
	Unrecoverable:   http.StatusUnprocessableEntity,
	Cancelled:       http.StatusGone,
	Internal:        http.StatusInternalServerError,
}

// Error wraps an underlying cause with a taxonomy Kind, mirroring the
// teacher's APIError shape (errors/errors.go) but generalized beyond HTTP.
type Error struct {
	K   Kind
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.K, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.K, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged error of the given kind.
func New(k Kind, msg string, cause error) error {
	return &Error{K: k, Msg: msg, Err: cause}
}

// KindOf extracts the Kind from err, defaulting to Internal if err was not
// constructed through this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.K
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}

// HTTPStatus maps a Kind to the status code the control surface should
// return for it.
func HTTPStatus(k Kind) int {
	if s, ok := httpStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WriteHTTP renders err as a JSON error body with the status derived from
// its Kind, following the teacher's writeHttpError convention.
func WriteHTTP(w http.ResponseWriter, err error) {
	k := KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(k))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(k),
		"message": err.Error(),
	})
}

// Retryable reports whether a caller should retry this error in place
// (Transient) per §7.
func Retryable(err error) bool {
	return Is(err, Transient)
}
