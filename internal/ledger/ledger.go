// Package ledger provides durable per-user records of display name and
// completed-operation count. The orchestrator is the only writer.
package ledger

import (
	"context"
	"errors"
)

// ErrCorrupt indicates an unreadable backing store. At startup this is fatal:
// the process cannot safely operate without a trustworthy ledger.
var ErrCorrupt = errors.New("ledger store corrupt")

// Record is one user's ledger entry.
type Record struct {
	Name       string `json:"name" dynamodbav:"name"`
	Operations int    `json:"operations" dynamodbav:"operations"`
}

// Store is the ledger contract. IncrementOperations must persist
// synchronously before returning so the persisted count is never behind a
// fulfillment the user already received.
type Store interface {
	// Get returns the user's record and whether it exists.
	Get(ctx context.Context, userID int64) (Record, bool, error)
	// UpsertName creates a record with count 0 if absent; otherwise it
	// updates the name only when a non-empty name is supplied.
	UpsertName(ctx context.Context, userID int64, name string) error
	// IncrementOperations creates-then-sets-to-1 if absent (using the given
	// display name), else increments, and returns the new count.
	IncrementOperations(ctx context.Context, userID int64, name string) (int, error)
}
