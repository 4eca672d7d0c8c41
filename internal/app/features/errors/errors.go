// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/features/shared/respond"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"go.uber.org/zap"
)

// body is the JSON shape of every error response.
type body struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch apperr.KindOf(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrForbidden:
		return http.StatusForbidden
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ErrorLogger writes error responses and logs the ones the server is
// responsible for.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{Log: logger}
}

// Write renders err as {"ok":false,"error":code,"detail":message}.
func (e *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	if status >= http.StatusInternalServerError {
		e.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", apperr.Code(err)),
			zap.Error(err))
	}
	respond.JSON(w, status, body{
		OK:     false,
		Error:  apperr.Code(err),
		Detail: apperr.Message(err),
	})
}

// RenderUnauthorized writes a 401 with a bearer challenge.
func RenderUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tenanthub"`)
	respond.JSON(w, http.StatusUnauthorized, body{Error: "unauthenticated", Detail: detail})
}

// NotFound handles unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusNotFound, body{Error: "not_found", Detail: "no route for " + r.URL.Path})
}

// MethodNotAllowed handles known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusMethodNotAllowed, body{Error: "method_not_allowed", Detail: r.Method + " is not allowed on " + r.URL.Path})
}
