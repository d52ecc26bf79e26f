package models

import "errors"

var (
	// ErrInvalidInput marks client-fault errors detected before any work starts.
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("record not found")
	// ErrDecode is returned when a stored row does not match its record shape.
	ErrDecode = errors.New("record decode failed")
)
