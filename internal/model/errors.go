package model

import (
	"time"
)

// ErrorKind classifies a caught failure for retry decisions and diagnostics
type ErrorKind string

const (
	ErrKindNetwork  ErrorKind = "network"
	ErrKindAPILimit ErrorKind = "api_limit"
	ErrKindAuth     ErrorKind = "auth"
	ErrKindData     ErrorKind = "data"
	ErrKindStorage  ErrorKind = "storage"
	ErrKindTimeout  ErrorKind = "timeout"
	ErrKindUnknown  ErrorKind = "unknown"
)

// Retryable reports whether a failure of this kind may succeed on retry.
// Auth and data errors indicate the request itself is wrong; unknown is
// treated conservatively as non-retryable.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindNetwork, ErrKindAPILimit, ErrKindTimeout, ErrKindStorage:
		return true
	default:
		return false
	}
}

// ErrorRecord is one append-only diagnostic entry for a failed attempt
type ErrorRecord struct {
	ID        int64     `json:"id" db:"id"`
	Operation string    `json:"operation" db:"operation"`
	Kind      ErrorKind `json:"kind" db:"kind"`
	Message   string    `json:"message" db:"message"`
	Attempt   int       `json:"attempt" db:"attempt"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
