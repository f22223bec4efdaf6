package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("article not found")
	ErrDuplicateSlug      = errors.New("article with this slug already exists")
	ErrEmptyGeneration    = errors.New("model returned empty content")
	ErrRateLimited        = errors.New("rate limited by remote")
	ErrExtraction         = errors.New("no content could be extracted")
	ErrNoUsableReferences = errors.New("no usable reference content")
	ErrValidation         = errors.New("validation failed")
)

// Validationf builds an error that matches ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// TransientNetworkError marks a remote failure worth retrying.
type TransientNetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries a TransientNetworkError.
func IsTransient(err error) bool {
	var tne *TransientNetworkError
	return errors.As(err, &tne)
}
