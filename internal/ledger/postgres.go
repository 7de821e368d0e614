package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

type postgresService struct {
	db *sql.DB
}

// NewPostgresService opens a Postgres-backed ledger and ensures the schema
// exists. Row locking for Adjust/AdjustMany uses SELECT ... FOR UPDATE
// inside a transaction, with AdjustMany locking rows in ascending userID
// order to avoid deadlocks against concurrent hands touching overlapping
// players.
func NewPostgresService(dsn string) (Service, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensurePostgresSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &postgresService{db: db}, nil
}

func ensurePostgresSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS users (
    id           BIGINT PRIMARY KEY,
    display_name TEXT NOT NULL,
    chips        BIGINT NOT NULL CHECK (chips >= 0),
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS hand_histories (
    id          BIGSERIAL PRIMARY KEY,
    hand_id     TEXT NOT NULL UNIQUE,
    table_id    TEXT NOT NULL,
    hand_seq    BIGINT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL,
    winner_ids  BIGINT[] NOT NULL,
    pot_total   BIGINT NOT NULL,
    record_json JSONB NOT NULL
);
`)
	return err
}

func (s *postgresService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *postgresService) FindOrCreate(ctx context.Context, userID uint64, displayName string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int64
	var name string
	err = tx.QueryRowContext(ctx, `SELECT chips, display_name FROM users WHERE id = $1`, userID).Scan(&balance, &name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		balance = DefaultStartingBalance
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id, display_name, chips) VALUES ($1, $2, $3)`,
			userID, displayName, balance); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		if name != displayName {
			if _, err := tx.ExecContext(ctx, `UPDATE users SET display_name = $1, updated_at = now() WHERE id = $2`,
				displayName, userID); err != nil {
				return 0, err
			}
		}
	}
	return balance, tx.Commit()
}

func (s *postgresService) Balance(ctx context.Context, userID uint64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `SELECT chips FROM users WHERE id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return balance, err
}

func (s *postgresService) Adjust(ctx context.Context, userID uint64, delta int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	newBalance, err := adjustRowLocked(ctx, tx, userID, delta)
	if err != nil {
		return 0, err
	}
	return newBalance, tx.Commit()
}

func (s *postgresService) AdjustMany(ctx context.Context, deltas map[uint64]int64) error {
	if len(deltas) == 0 {
		return ErrEmptyAdjustment
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, userID := range sortedKeys(deltas) {
		if _, err := adjustRowLocked(ctx, tx, userID, deltas[userID]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func adjustRowLocked(ctx context.Context, tx *sql.Tx, userID uint64, delta int64) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx, `SELECT chips FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	newBalance := balance + delta
	if newBalance < 0 {
		return 0, ErrInsufficientChips
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET chips = $1, updated_at = now() WHERE id = $2`,
		newBalance, userID); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *postgresService) SaveHand(ctx context.Context, rec HandRecord) (int64, error) {
	handID := rec.HandID
	if handID == "" {
		handID = uuid.NewString()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO hand_histories (hand_id, table_id, hand_seq, started_at, ended_at, winner_ids, pot_total, record_json)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
RETURNING id
`, handID, rec.TableID, rec.HandSeq, rec.StartedAt, rec.EndedAt, pqInt64Array(rec.Winners), rec.PotTotal, string(rec.RecordJSON)).Scan(&id)
	return id, err
}

func pqInt64Array(vals []uint64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
