// Package lobby is a directory of live tables: on-demand table creation
// behind a shared default config, player->table binding, a cleanup ticker
// for idle tables, and a single-valued player->table binding enforcing that
// a player can never be bound to more than one table at once.
package lobby

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sabar2001/poker-prestige/internal/ledger"
	"github.com/sabar2001/poker-prestige/internal/table"
)

const (
	defaultIdleTableTTL    = 5 * time.Minute
	defaultCleanupInterval = 30 * time.Second
)

// ErrAlreadyBound is returned by BindPlayer when the player is already
// bound to a different table: a player may never be seated at two tables
// at once.
var ErrAlreadyBound = fmt.Errorf("lobby: player already bound to another table")

// TableSummary is the public listing entry for one table: id, seats
// filled, and current phase.
type TableSummary struct {
	ID          string
	SeatsFilled int
	MaxSeats    uint16
	Phase       table.TablePhase
}

// Lobby tracks every live table and the players bound to them.
type Lobby struct {
	mu     sync.RWMutex
	tables map[string]*table.Table

	// player -> table, enforcing single-table seating.
	playerTable map[uint64]string

	defaultConfig table.TableConfig

	idleTableTTL    time.Duration
	cleanupInterval time.Duration
	done            chan struct{}
	stopOnce        sync.Once

	ledger ledger.Service
	log    zerolog.Logger
}

// New creates a Lobby and starts its idle-table cleanup loop.
func New(defaultConfig table.TableConfig, ledgerService ledger.Service, logger zerolog.Logger) *Lobby {
	l := &Lobby{
		tables:          make(map[string]*table.Table),
		playerTable:     make(map[uint64]string),
		defaultConfig:   defaultConfig,
		idleTableTTL:    defaultIdleTableTTL,
		cleanupInterval: defaultCleanupInterval,
		done:            make(chan struct{}),
		ledger:          ledgerService,
		log:             logger.With().Str("component", "lobby").Logger(),
	}
	go l.cleanupLoop()
	return l
}

// CreateTable creates a table with cfg (or the lobby's default config if
// cfg is the zero value).
func (l *Lobby) CreateTable(cfg table.TableConfig, broadcastFn table.BroadcastFunc) (*table.Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cfg.MaxPlayers == 0 {
		cfg = l.defaultConfig
	}
	tableID := uuid.NewString()

	t := table.New(tableID, cfg, broadcastFn, l.ledger, l.log)
	if t == nil {
		return nil, fmt.Errorf("lobby: failed to create table %s", tableID)
	}
	l.tables[tableID] = t
	l.log.Info().Str("tableId", tableID).Msg("table created")
	return t, nil
}

// Table returns a table by ID.
func (l *Lobby) Table(tableID string) (*table.Table, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tables[tableID]
	return t, ok
}

// List returns a public summary of every live table.
func (l *Lobby) List() []TableSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]TableSummary, 0, len(l.tables))
	for id, t := range l.tables {
		out = append(out, TableSummary{
			ID:          id,
			SeatsFilled: t.SeatCount(),
			MaxSeats:    t.Config.MaxPlayers,
			Phase:       t.Phase(),
		})
	}
	return out
}

// Destroy unseats any bound players and removes/stops a table.
func (l *Lobby) Destroy(tableID string) error {
	l.mu.Lock()
	t, ok := l.tables[tableID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("lobby: table %s not found", tableID)
	}
	delete(l.tables, tableID)
	for playerID, bound := range l.playerTable {
		if bound == tableID {
			delete(l.playerTable, playerID)
		}
	}
	l.mu.Unlock()

	t.Stop()
	l.log.Info().Str("tableId", tableID).Msg("table destroyed")
	return nil
}

// BindPlayer records that playerID is now seated at tableID. It refuses
// to rebind a player already bound to a different table.
func (l *Lobby) BindPlayer(playerID uint64, tableID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.playerTable[playerID]; ok && existing != tableID {
		return ErrAlreadyBound
	}
	l.playerTable[playerID] = tableID
	return nil
}

// UnbindPlayer removes a player's table binding, if any.
func (l *Lobby) UnbindPlayer(playerID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.playerTable, playerID)
}

// BoundTable returns the table a player is currently bound to, if any.
func (l *Lobby) BoundTable(playerID uint64) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tableID, ok := l.playerTable[playerID]
	return tableID, ok
}

func (l *Lobby) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.CleanupIdleTables()
		case <-l.done:
			return
		}
	}
}

// CleanupIdleTables removes tables that have been idle beyond TTL.
func (l *Lobby) CleanupIdleTables() int {
	l.mu.Lock()
	idleTables := make([]*table.Table, 0)
	for tableID, t := range l.tables {
		if t.IsClosed() || t.IsIdleFor(l.idleTableTTL) {
			delete(l.tables, tableID)
			for playerID, bound := range l.playerTable {
				if bound == tableID {
					delete(l.playerTable, playerID)
				}
			}
			idleTables = append(idleTables, t)
		}
	}
	l.mu.Unlock()

	for _, t := range idleTables {
		t.Stop()
		l.log.Info().Str("tableId", t.ID).Msg("removed idle/closed table")
	}
	return len(idleTables)
}

// Stop shuts down lobby housekeeping and all remaining tables.
func (l *Lobby) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)

		l.mu.Lock()
		tables := make([]*table.Table, 0, len(l.tables))
		for _, t := range l.tables {
			tables = append(tables, t)
		}
		l.tables = make(map[string]*table.Table)
		l.playerTable = make(map[uint64]string)
		l.mu.Unlock()

		for _, t := range tables {
			t.Stop()
		}
	})
}
