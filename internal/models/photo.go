package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type UploadedPhoto struct {
	ID               uuid.UUID `json:"id" db:"id"`
	OrderID          uuid.UUID `json:"order_id" db:"order_id"`
	URL              string    `json:"url" db:"url"`
	ObjectID         string    `json:"object_id" db:"object_id"`
	OriginalFilename string    `json:"original_filename" db:"original_filename"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

func (p UploadedPhoto) Validate() error {
	if p.ID == uuid.Nil || p.OrderID == uuid.Nil {
		return fmt.Errorf("%w: uploaded photo without id or order", ErrDecode)
	}
	if p.URL == "" {
		return fmt.Errorf("%w: uploaded photo %s without url", ErrDecode, p.ID)
	}
	return nil
}
