// Package ledger persists chip balances and append-only hand histories.
//
// Two tables: users (chip balances) and hand_histories (one row per settled
// hand). Both backends below share this interface and its error set so the
// table loop never needs to know which driver is behind a given deployment.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	// DefaultStartingBalance seeds a user row the first time it is seen.
	DefaultStartingBalance = 1000
	// CallTimeout bounds every ledger call issued from a table loop
	// (per the concurrency model: ledger waits serialise the owning
	// table but must never hang it indefinitely).
	CallTimeout = 2 * time.Second
)

var (
	ErrNotFound          = errors.New("ledger: user not found")
	ErrInsufficientChips = errors.New("ledger: insufficient-chips")
	ErrEmptyAdjustment   = errors.New("ledger: adjustMany requires at least one delta")
)

// HandRecord is the append-only row written once per settled hand. HandID
// is a caller-assigned UUID (github.com/google/uuid) rather than a
// sequential key, so hand histories stay addressable across a future
// multi-writer/sharded ledger without coordination.
type HandRecord struct {
	HandID      string
	TableID     string
	HandSeq     uint64
	StartedAt   time.Time
	EndedAt     time.Time
	Winners     []uint64
	PotTotal    int64
	RecordJSON  []byte // opaque structured blob: per-player log, community cards, etc.
}

// Service persists chip balances and hand histories behind a single
// interface so callers can swap the backing store without touching the
// table loop.
type Service interface {
	Close() error

	// findOrCreate returns the existing user row or inserts one seeded at
	// DefaultStartingBalance, updating the display name if it changed.
	FindOrCreate(ctx context.Context, userID uint64, displayName string) (balance int64, err error)

	// balance returns the current balance, or ErrNotFound if the user has
	// never been seen.
	Balance(ctx context.Context, userID uint64) (int64, error)

	// adjust applies delta inside a serialisable, row-locked transaction.
	// Fails with ErrInsufficientChips (no mutation) if the resulting
	// balance would go negative.
	Adjust(ctx context.Context, userID uint64, delta int64) (newBalance int64, err error)

	// adjustMany locks every affected row in ascending-userID order in a
	// single transaction, validates all deltas, then applies them atomically.
	AdjustMany(ctx context.Context, deltas map[uint64]int64) error

	// saveHand inserts one hand_histories row and returns its assigned id.
	SaveHand(ctx context.Context, rec HandRecord) (id int64, err error)
}

// NewFromURL selects a backend by URL scheme:
//   - "" or "sqlite://path" or a bare filesystem path -> SQLite (pure Go,
//     default/dev driver).
//   - "postgres://..." or "postgresql://..." -> Postgres via lib/pq.
func NewFromURL(databaseURL string) (Service, error) {
	trimmed := strings.TrimSpace(databaseURL)
	switch {
	case trimmed == "":
		return NewSQLiteService("poker-prestige.db")
	case strings.HasPrefix(trimmed, "postgres://"), strings.HasPrefix(trimmed, "postgresql://"):
		return NewPostgresService(trimmed)
	case strings.HasPrefix(trimmed, "sqlite://"):
		return NewSQLiteService(strings.TrimPrefix(trimmed, "sqlite://"))
	default:
		return NewSQLiteService(trimmed)
	}
}

func sortedKeys(deltas map[uint64]int64) []uint64 {
	keys := make([]uint64, 0, len(deltas))
	for k := range deltas {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
