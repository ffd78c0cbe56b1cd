package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID is an opaque 128-bit identifier for users and conversations.
type ID = uuid.UUID

// ErrNilID is returned by ParseID for the all-zero UUID.
var ErrNilID = errors.New("domain: id must not be the nil uuid")

// NewID returns a random (version 4) identifier.
func NewID() ID {
	return uuid.New()
}

// ParseID parses the canonical textual form of an identifier.
func ParseID(s string) (ID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("domain: parse id %q: %w", s, err)
	}
	if id == uuid.Nil {
		return uuid.Nil, ErrNilID
	}
	return id, nil
}
