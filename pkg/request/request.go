package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
)

var ErrEmptyBody = errors.New("request body is empty")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator; it reports json field names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonTagName)
	})
	return validate
}

// DecodeJSON decodes a single JSON object from r.Body into dst and rejects
// fields dst does not declare.
func DecodeJSON(r *http.Request, dst any) error {
	const op = "request.DecodeJSON"

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: %w", op, ErrEmptyBody)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if dec.More() {
		return fmt.Errorf("%s: unexpected data after JSON object", op)
	}

	return nil
}
