// internal/app/features/shared/respond/respond.go
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/tenanthub/internal/domain/apperr"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decode reads a JSON request body into v. A missing or malformed body is a
// validation error.
func Decode(r *http.Request, v any) error {
	if r.Body == nil {
		return apperr.New(apperr.ErrValidation, "request body is required")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.ErrValidation, "request body is required")
		}
		return apperr.Wrap(apperr.ErrValidation, err, "malformed JSON body")
	}
	return nil
}
