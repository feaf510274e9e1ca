package analyses

import (
	"errors"
	"fmt"

	"seo-analysis-backend/internal/provider"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownType     = errors.New("unknown analysis type")
	ErrAlreadyTerminal = errors.New("analysis already terminal")
	ErrValidation      = errors.New("validation error")
	ErrPersistence     = errors.New("analysis store failure")
	// ErrEmptyResult is returned by normalizers when the provider sent no results.
	ErrEmptyResult = fmt.Errorf("%w: empty result", provider.ErrProvider)
)

// ErrProviderUnavailable is returned by Poll when the provider could not be
// reached. The analysis stays processing.
var ErrProviderUnavailable = errors.New("provider temporarily unavailable")

// ValidationError describes the first invalid input field.
type ValidationError struct {
	Field string
	Issue string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Issue)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// emptyResultError carries the per-type message shown to the user.
type emptyResultError struct {
	message string
}

func (e *emptyResultError) Error() string {
	return e.message
}

func (e *emptyResultError) Is(target error) bool {
	return target == ErrEmptyResult || target == provider.ErrProvider
}

// FailedError reports an analysis that ended in the failed state. Message is
// the provider's reason verbatim.
type FailedError struct {
	AnalysisID string
	Message    string
}

func (e *FailedError) Error() string {
	return e.Message
}

func (e *FailedError) Is(target error) bool {
	return target == provider.ErrProvider
}

func persistenceErr(op string, err error) error {
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}
