package timebank

import (
	"context"

	"github.com/google/uuid"
)

// Store persists ledger snapshots as serialized blobs keyed by user.
// Load returns (nil, nil) when no snapshot exists yet, and an error wrapping
// ErrCorruptState when a snapshot exists but cannot be decoded.
type Store interface {
	Load(ctx context.Context, userID uuid.UUID) (*LedgerState, error)
	Save(ctx context.Context, userID uuid.UUID, state *LedgerState) error
}

// Archiver receives every transaction for retention beyond the bounded
// in-state log. Archive failures never block a ledger operation.
type Archiver interface {
	Append(ctx context.Context, userID uuid.UUID, tx Transaction) error
}

// Publisher pushes ledger updates to connected clients.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, event string, payload interface{})
}
