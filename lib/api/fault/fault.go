package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Fault is an error with an HTTP status attached. Core operations return
// faults for every expected failure; handlers map anything else to 500.
type Fault struct {
	Code    int
	Message string
}

func (f *Fault) Error() string {
	return f.Message
}

func New(code int, format string, args ...any) *Fault {
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) *Fault {
	return New(http.StatusUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Fault {
	return New(http.StatusForbidden, format, args...)
}

func BadRequest(format string, args ...any) *Fault {
	return New(http.StatusBadRequest, format, args...)
}

func NotFound(format string, args ...any) *Fault {
	return New(http.StatusNotFound, format, args...)
}

func Conflict(format string, args ...any) *Fault {
	return New(http.StatusConflict, format, args...)
}

func Internal(format string, args ...any) *Fault {
	return New(http.StatusInternalServerError, format, args...)
}

// StatusOf returns the HTTP status carried by err, unwrapping as needed,
// or 500 when err carries none.
func StatusOf(err error) int {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code
	}
	return http.StatusInternalServerError
}
