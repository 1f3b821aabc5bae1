// Package session keeps server-side session state keyed by a signed
// identifier held in a client cookie.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when a session does not exist or has
// expired.
var ErrNotFound = errors.New("session not found")

// Data is the session payload. It must be JSON serializable.
type Data map[string]interface{}

// Store abstracts session persistence. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the payload for id, or ErrNotFound.
	Get(ctx context.Context, id string) (Data, error)
	// Set creates or replaces the session and its expiry.
	Set(ctx context.Context, id string, data Data, expires time.Time) error
	// Touch extends the expiry of an existing session without rewriting
	// its payload. Returns ErrNotFound when there is nothing to touch.
	Touch(ctx context.Context, id string, expires time.Time) error
	// Destroy removes the session. Removing a missing session is not an error.
	Destroy(ctx context.Context, id string) error
}
