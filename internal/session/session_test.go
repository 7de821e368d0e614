package session

import (
	"testing"
	"time"
)

func newTestManager(grace time.Duration, onExpire UnseatFunc) (*Manager, *MockIdentityProvider) {
	idp := NewMockIdentityProvider()
	idp.Register("ticket-1", 1001, "Alice")
	return NewManager(idp, grace, onExpire), idp
}

func TestOpen_CreatesSessionForVerifiedTicket(t *testing.T) {
	m, _ := newTestManager(60*time.Second, nil)

	sess, token, err := m.Open("conn-a", "ticket-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.PlayerID != 1001 || sess.DisplayName != "Alice" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if token == "" {
		t.Fatalf("expected non-empty session token")
	}
	if !sess.Connected {
		t.Fatalf("expected session to be connected")
	}
}

func TestOpen_InvalidTicketFails(t *testing.T) {
	m, _ := newTestManager(60*time.Second, nil)
	if _, _, err := m.Open("conn-a", "bogus"); err == nil {
		t.Fatalf("expected error for invalid ticket")
	}
}

func TestRebind_WithinGraceSucceeds(t *testing.T) {
	m, _ := newTestManager(60*time.Second, nil)
	m.Open("conn-a", "ticket-1")
	m.Close("conn-a")

	sess, err := m.Rebind("conn-b", "ticket-1", 5)
	if err != nil {
		t.Fatalf("unexpected rebind error: %v", err)
	}
	if sess.Transport != "conn-b" {
		t.Fatalf("expected transport swapped to conn-b")
	}
	if !sess.Connected {
		t.Fatalf("expected session reconnected")
	}
	if sess.LastSeenSeq != 5 {
		t.Fatalf("expected last seen sequence 5, got %d", sess.LastSeenSeq)
	}
}

func TestClose_ExpiresAfterGraceAndUnseats(t *testing.T) {
	unseated := make(chan uint64, 1)
	m, _ := newTestManager(20*time.Millisecond, func(playerID uint64, tableID string) {
		unseated <- playerID
	})
	m.Open("conn-a", "ticket-1")
	m.BindTable(1001, "table-1")
	m.Close("conn-a")

	select {
	case playerID := <-unseated:
		if playerID != 1001 {
			t.Fatalf("unexpected expired player id: %d", playerID)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("expected grace expiry to fire")
	}

	if _, ok := m.Lookup(1001); ok {
		t.Fatalf("expected session destroyed after grace expiry")
	}
}

func TestRebind_OutsideGraceFails(t *testing.T) {
	m, _ := newTestManager(10*time.Millisecond, nil)
	m.Open("conn-a", "ticket-1")
	m.Close("conn-a")

	time.Sleep(50 * time.Millisecond)
	if _, err := m.Rebind("conn-b", "ticket-1", 0); err == nil {
		t.Fatalf("expected rebind to fail outside grace window")
	}
}
