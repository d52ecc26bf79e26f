package models

import "fmt"

// Theme is immutable reference data steering the composition.
type Theme struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name_en" db:"name_en"`
	Prompt string `json:"prompt" db:"prompt"`
}

func (t Theme) Validate() error {
	if t.ID == "" || t.Prompt == "" {
		return fmt.Errorf("%w: theme %q without prompt", ErrDecode, t.ID)
	}
	return nil
}
