// Package session stores dialogue state between requests.
package session

import (
	"context"
	"errors"

	"github.com/MikeSquared-Agency/safety-intake/internal/dialogue"
)

var ErrNotFound = errors.New("session not found")

// Store persists one dialogue.State per session id. Get returns ErrNotFound
// for unknown or expired sessions.
type Store interface {
	Get(ctx context.Context, id string) (dialogue.State, error)
	Save(ctx context.Context, s dialogue.State) error
	Delete(ctx context.Context, id string) error
}
