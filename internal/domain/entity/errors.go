package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the domain layer.
var (
	// ErrNotFound means the requested entity does not exist. The corpus
	// store returns it when a run or record lookup misses.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput means a caller-supplied value failed a precondition.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed means an entity failed its own validation.
	ErrValidationFailed = errors.New("validation failed")

	// ErrRecordRejected marks a raw record the Normalizer dropped because it
	// carries neither a title nor a URL. Rejections are counted, never fatal.
	ErrRecordRejected = errors.New("record rejected")

	// ErrInvalidMapping marks a source kind whose field mapping is missing or
	// declares neither a title field nor a URL field. This is the one fatal
	// configuration condition of a run.
	ErrInvalidMapping = errors.New("invalid field mapping")
)

// ValidationError reports which field failed validation and why.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
