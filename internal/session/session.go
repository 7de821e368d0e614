// Package session binds a verified player identity to at most one logical
// seat across transport reconnections within a bounded grace window.
// Identity verification itself is an external collaborator's job,
// represented here only by the IdentityProvider interface; this package
// owns the in-memory token map, CSPRNG token minting, and the reconnect
// grace window.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"
)

const tokenBytes = 32

var (
	ErrInvalidTicket = errors.New("session: invalid auth ticket")
	ErrNoSession     = errors.New("session: no session for that identity")
	ErrOutsideGrace  = errors.New("session: reconnect window has expired")
)

// IdentityProvider verifies an opaque auth ticket and returns the stable
// player identifier and display name it represents. A mock implementation
// is provided below for tests and local development where no real identity
// backend is wired.
type IdentityProvider interface {
	Verify(authTicket string) (playerID uint64, displayName string, err error)
}

// MockIdentityProvider maps fixed tickets to players, for tests and local
// development where no real identity backend is wired.
type MockIdentityProvider struct {
	mu      sync.Mutex
	Tickets map[string]struct {
		PlayerID    uint64
		DisplayName string
	}
}

func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		Tickets: make(map[string]struct {
			PlayerID    uint64
			DisplayName string
		}),
	}
}

// Register associates a ticket with a player identity for later Verify calls.
func (m *MockIdentityProvider) Register(ticket string, playerID uint64, displayName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tickets[ticket] = struct {
		PlayerID    uint64
		DisplayName string
	}{PlayerID: playerID, DisplayName: displayName}
}

func (m *MockIdentityProvider) Verify(ticket string) (uint64, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Tickets[ticket]
	if !ok {
		return 0, "", ErrInvalidTicket
	}
	return rec.PlayerID, rec.DisplayName, nil
}

// Transport is an opaque handle identifying one connected client channel.
// The gateway supplies a concrete value (e.g. a *websocket.Conn wrapper);
// session only ever compares these handles for identity.
type Transport any

// Session is the bound identity/table/transport state tracked per player.
type Session struct {
	PlayerID        uint64
	DisplayName     string
	TableID         string // empty if not currently seated anywhere
	Transport       Transport
	LastSeenSeq     uint64
	Connected       bool
	LastActivity    time.Time
	disconnectedAt  time.Time
}

// UnseatFunc is invoked when a session's grace window expires while still
// disconnected, so the table registry can unseat the player.
type UnseatFunc func(playerID uint64, tableID string)

// Manager is the SessionManager.
type Manager struct {
	mu         sync.Mutex
	identity   IdentityProvider
	grace      time.Duration
	onExpire   UnseatFunc
	sessions   map[uint64]*Session    // playerID -> session
	byToken    map[string]uint64      // session token -> playerID
	timers     map[uint64]*time.Timer // playerID -> pending grace-expiry timer
}

// NewManager constructs a SessionManager. grace is the disconnect grace
// window (60s is the usual default); onExpire may be nil in tests that
// don't care about unseating side effects.
func NewManager(identity IdentityProvider, grace time.Duration, onExpire UnseatFunc) *Manager {
	return &Manager{
		identity: identity,
		grace:    grace,
		onExpire: onExpire,
		sessions: make(map[uint64]*Session),
		byToken:  make(map[string]uint64),
		timers:   make(map[uint64]*time.Timer),
	}
}

// Open verifies the ticket and creates (or rebinds) a session for the
// identity it resolves to.
func (m *Manager) Open(transport Transport, authTicket string) (*Session, string, error) {
	playerID, displayName, err := m.identity.Verify(authTicket)
	if err != nil {
		return nil, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelExpiryLocked(playerID)

	sess, exists := m.sessions[playerID]
	if !exists {
		sess = &Session{PlayerID: playerID, DisplayName: displayName}
		m.sessions[playerID] = sess
	}
	sess.DisplayName = displayName
	sess.Transport = transport
	sess.Connected = true
	sess.LastActivity = time.Now()

	token := mustToken()
	m.byToken[token] = playerID
	return sess, token, nil
}

// Rebind reattaches a new transport to an existing, still-gracious session.
// lastSeenSequence is recorded for the caller's own replay bookkeeping; the
// core does not otherwise act on it.
func (m *Manager) Rebind(transport Transport, authTicket string, lastSeenSequence uint64) (*Session, error) {
	playerID, _, err := m.identity.Verify(authTicket)
	if err != nil {
		return nil, ErrInvalidTicket
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.sessions[playerID]
	if !exists {
		return nil, ErrNoSession
	}
	if !sess.Connected && time.Since(sess.disconnectedAt) > m.grace {
		return nil, ErrOutsideGrace
	}

	m.cancelExpiryLocked(playerID)
	sess.Transport = transport
	sess.Connected = true
	sess.LastActivity = time.Now()
	if lastSeenSequence > sess.LastSeenSeq {
		sess.LastSeenSeq = lastSeenSequence
	}
	return sess, nil
}

// Close marks the session disconnected and schedules grace expiry. On
// expiry while still disconnected, onExpire is invoked and the session is
// destroyed.
func (m *Manager) Close(transport Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sess *Session
	for _, s := range m.sessions {
		if s.Transport == transport {
			sess = s
			break
		}
	}
	if sess == nil {
		return
	}
	sess.Connected = false
	sess.disconnectedAt = time.Now()

	playerID := sess.PlayerID
	tableID := sess.TableID
	m.cancelExpiryLocked(playerID)
	m.timers[playerID] = time.AfterFunc(m.grace, func() {
		m.expire(playerID, tableID)
	})
}

func (m *Manager) expire(playerID uint64, tableID string) {
	m.mu.Lock()
	sess, exists := m.sessions[playerID]
	stillDisconnected := exists && !sess.Connected
	if stillDisconnected {
		delete(m.sessions, playerID)
	}
	delete(m.timers, playerID)
	onExpire := m.onExpire
	m.mu.Unlock()

	if stillDisconnected && onExpire != nil {
		onExpire(playerID, tableID)
	}
}

func (m *Manager) cancelExpiryLocked(playerID uint64) {
	if t, ok := m.timers[playerID]; ok {
		t.Stop()
		delete(m.timers, playerID)
	}
}

// BindTable records which table a session's player is currently seated at,
// so Close's eventual expiry knows what to unseat from.
func (m *Manager) BindTable(playerID uint64, tableID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[playerID]; ok {
		sess.TableID = tableID
	}
}

// RecordDelivered stores the sequence counter of the last view delivered
// to this player's session.
func (m *Manager) RecordDelivered(playerID uint64, sequence uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[playerID]; ok && sequence > sess.LastSeenSeq {
		sess.LastSeenSeq = sequence
	}
}

// Lookup returns the current session for playerID, if any.
func (m *Manager) Lookup(playerID uint64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[playerID]
	return sess, ok
}

func mustToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
