package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type sqliteService struct {
	db *sql.DB
}

// NewSQLiteService opens (creating if needed) a pure-Go SQLite-backed
// ledger. A single connection is kept open deliberately: SQLite allows only
// one writer at a time, so serializing through one *sql.DB connection gives
// the same row-locking discipline Adjust/AdjustMany require without extra
// machinery.
func NewSQLiteService(dbPath string) (Service, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		if parent := filepath.Dir(dbPath); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteService{db: db}, nil
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS users (
    id           INTEGER PRIMARY KEY,
    display_name TEXT NOT NULL,
    chips        INTEGER NOT NULL CHECK (chips >= 0),
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS hand_histories (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    hand_id     TEXT NOT NULL UNIQUE,
    table_id    TEXT NOT NULL,
    hand_seq    INTEGER NOT NULL,
    started_at  TIMESTAMP NOT NULL,
    ended_at    TIMESTAMP NOT NULL,
    winner_ids  TEXT NOT NULL,
    pot_total   INTEGER NOT NULL,
    record_json TEXT NOT NULL
);
`)
	return err
}

func (s *sqliteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteService) FindOrCreate(ctx context.Context, userID uint64, displayName string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int64
	var name string
	err = tx.QueryRowContext(ctx, `SELECT chips, display_name FROM users WHERE id = ?`, userID).Scan(&balance, &name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		balance = DefaultStartingBalance
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id, display_name, chips) VALUES (?, ?, ?)`,
			userID, displayName, balance); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		if name != displayName {
			if _, err := tx.ExecContext(ctx, `UPDATE users SET display_name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
				displayName, userID); err != nil {
				return 0, err
			}
		}
	}
	return balance, tx.Commit()
}

func (s *sqliteService) Balance(ctx context.Context, userID uint64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `SELECT chips FROM users WHERE id = ?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return balance, err
}

func (s *sqliteService) Adjust(ctx context.Context, userID uint64, delta int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	newBalance, err := adjustLocked(ctx, tx, userID, delta)
	if err != nil {
		return 0, err
	}
	return newBalance, tx.Commit()
}

func (s *sqliteService) AdjustMany(ctx context.Context, deltas map[uint64]int64) error {
	if len(deltas) == 0 {
		return ErrEmptyAdjustment
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, userID := range sortedKeys(deltas) {
		if _, err := adjustLocked(ctx, tx, userID, deltas[userID]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// adjustLocked applies delta to userID within an already-open transaction.
// SQLite has no row-level FOR UPDATE; the single shared connection enforced
// by sqliteService serialises every transaction against every other, which
// is the equivalent guarantee for this backend.
func adjustLocked(ctx context.Context, tx *sql.Tx, userID uint64, delta int64) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx, `SELECT chips FROM users WHERE id = ?`, userID).Scan(&balance)
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
	if _, err := tx.ExecContext(ctx, `UPDATE users SET chips = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newBalance, userID); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *sqliteService) SaveHand(ctx context.Context, rec HandRecord) (int64, error) {
	handID := rec.HandID
	if handID == "" {
		handID = uuid.NewString()
	}
	winnerIDs := joinUint64(rec.Winners)
	res, err := s.db.ExecContext(ctx, `
INSERT INTO hand_histories (hand_id, table_id, hand_seq, started_at, ended_at, winner_ids, pot_total, record_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, handID, rec.TableID, rec.HandSeq, rec.StartedAt, rec.EndedAt, winnerIDs, rec.PotTotal, string(rec.RecordJSON))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func joinUint64(vals []uint64) string {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", v)
	}
	return b.String()
}
