package generation

import (
	"errors"
	"fmt"

	"photo-generator/internal/models"
)

var (
	// ErrNoPhotos is an input validation error raised before any record exists.
	ErrNoPhotos = fmt.Errorf("%w: no uploaded photos found", models.ErrInvalidInput)

	// Model contract violations: the call succeeded but returned nothing usable.
	ErrNoCandidate       = errors.New("no candidate produced")
	ErrEmptyImagePayload = errors.New("empty image payload")

	// ErrGenerationCall wraps transport, auth and quota failures of the model call.
	ErrGenerationCall = errors.New("generation call failed")
)

// Kind labels an outcome for logs and metrics.
type Kind string

const (
	KindCompleted     Kind = "completed"
	KindInvalidInput  Kind = "invalid_input"
	KindModelContract Kind = "model_contract"
	KindDependency    Kind = "dependency"
)

// Classify maps an error returned by Generate to its Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindCompleted
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrNotFound):
		return KindInvalidInput
	case errors.Is(err, ErrNoCandidate), errors.Is(err, ErrEmptyImagePayload):
		return KindModelContract
	default:
		return KindDependency
	}
}
