// Package ident mints the identifiers that link detail records to summaries.
package ident

import (
	"fmt"

	"github.com/google/uuid"
)

// Assigner produces fresh opaque identifiers for new records.
type Assigner interface {
	SummaryID() (string, error)
	DetailID() (string, error)
}

// UUID assigns random (v4) UUID strings.
type UUID struct{}

// NewUUID creates a UUID assigner.
func NewUUID() UUID {
	return UUID{}
}

// SummaryID returns the id for a new summary record.
func (UUID) SummaryID() (string, error) {
	return newV4("summary")
}

// DetailID returns the post_id for a new detail record.
func (UUID) DetailID() (string, error) {
	return newV4("detail")
}

func newV4(kind string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate %s id: %w", kind, err)
	}
	return id.String(), nil
}
