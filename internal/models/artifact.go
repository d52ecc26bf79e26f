package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ArtifactStatus string

const (
	ArtifactStatusGenerating ArtifactStatus = "generating"
	ArtifactStatusCompleted  ArtifactStatus = "completed"
	ArtifactStatusFailed     ArtifactStatus = "failed"
)

// Terminal reports whether no further automatic transition can happen.
func (s ArtifactStatus) Terminal() bool {
	return s == ArtifactStatusCompleted || s == ArtifactStatusFailed
}

// VariantURLs holds the four renditions of one generated image.
type VariantURLs struct {
	FullRes string `json:"url_4k"`
	Square  string `json:"url_instagram"`
	Banner  string `json:"url_facebook"`
	Story   string `json:"url_whatsapp"`
}

func (v VariantURLs) Complete() bool {
	return v.FullRes != "" && v.Square != "" && v.Banner != "" && v.Story != ""
}

type GeneratedArtifact struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	OrderID      uuid.UUID      `json:"order_id" db:"order_id"`
	ThemeID      string         `json:"theme_id" db:"theme_id"`
	Status       ArtifactStatus `json:"status" db:"status"`
	ModelUsed    string         `json:"model_used" db:"model_used"`
	Variants     *VariantURLs   `json:"variants,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty" db:"error_message"`
	StartedAt    time.Time      `json:"generation_started_at" db:"generation_started_at"`
	CompletedAt  *time.Time     `json:"generation_completed_at,omitempty" db:"generation_completed_at"`
}

// Validate enforces that variants exist exactly when the artifact completed.
func (a GeneratedArtifact) Validate() error {
	if a.ID == uuid.Nil || a.OrderID == uuid.Nil {
		return fmt.Errorf("%w: artifact without id or order", ErrDecode)
	}
	switch a.Status {
	case ArtifactStatusGenerating, ArtifactStatusFailed:
		if a.Variants != nil {
			return fmt.Errorf("%w: %s artifact %s carries variant urls", ErrDecode, a.Status, a.ID)
		}
	case ArtifactStatusCompleted:
		if a.Variants == nil || !a.Variants.Complete() {
			return fmt.Errorf("%w: completed artifact %s without all variant urls", ErrDecode, a.ID)
		}
	default:
		return fmt.Errorf("%w: artifact %s has unknown status %q", ErrDecode, a.ID, a.Status)
	}
	return nil
}

// ArtifactUpdate is the single terminal write issued for an artifact.
type ArtifactUpdate struct {
	Status       ArtifactStatus
	Variants     *VariantURLs
	ErrorMessage string
	CompletedAt  *time.Time
}

// CompletedUpdate builds the success transition.
func CompletedUpdate(urls VariantURLs, at time.Time) ArtifactUpdate {
	return ArtifactUpdate{
		Status:      ArtifactStatusCompleted,
		Variants:    &urls,
		CompletedAt: &at,
	}
}

// FailedUpdate builds the failure transition. An empty message is replaced so
// failed rows always explain themselves.
func FailedUpdate(err error) ArtifactUpdate {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return ArtifactUpdate{
		Status:       ArtifactStatusFailed,
		ErrorMessage: msg,
	}
}
