package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/BorisDmv/blog-platform/internal/models"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object from the request body. Unknown
// fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", models.ErrValidation)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body too large", models.ErrValidation)
		default:
			return fmt.Errorf("%w: invalid body", models.ErrValidation)
		}
	}
	return nil
}
