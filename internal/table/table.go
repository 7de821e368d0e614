// Package table is the authoritative, single-goroutine-per-table hand
// lifecycle: an actor loop (events chan Event, a heartbeat ticker,
// request/response submission) driving the full eleven-phase
// Lobby->Waiting->Starting->Dealing->PreFlop->Flop->Turn->River->
// ShowdownReveal->PayoutAnimation->SocialBanter cycle, with ready-checks,
// a countdown before dealing, and a banter/cooldown phase between hands.
// Broadcast is a small callback handed internal/view projections, which the
// gateway encodes onto the wire.
package table

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sabar2001/poker-prestige/card"
	"github.com/sabar2001/poker-prestige/holdem"
	"github.com/sabar2001/poker-prestige/internal/ledger"
	"github.com/sabar2001/poker-prestige/internal/view"
)

// TablePhase is the outer lobby-to-banter cycle wrapping holdem.Phase.
type TablePhase string

const (
	PhaseLobby           TablePhase = "Lobby"
	PhaseWaiting         TablePhase = "Waiting"
	PhaseStarting        TablePhase = "Starting"
	PhaseDealing         TablePhase = "Dealing"
	PhasePreFlop         TablePhase = "PreFlop"
	PhaseFlop            TablePhase = "Flop"
	PhaseTurn            TablePhase = "Turn"
	PhaseRiver           TablePhase = "River"
	PhaseShowdownReveal  TablePhase = "ShowdownReveal"
	PhasePayoutAnimation TablePhase = "PayoutAnimation"
	PhaseSocialBanter    TablePhase = "SocialBanter"
)

func tablePhaseFromHoldem(p holdem.Phase) TablePhase {
	switch p {
	case holdem.PhaseTypeAnte, holdem.PhaseTypePreflop:
		return PhasePreFlop
	case holdem.PhaseTypeFlop:
		return PhaseFlop
	case holdem.PhaseTypeTurn:
		return PhaseTurn
	case holdem.PhaseTypeRiver:
		return PhaseRiver
	default:
		return PhasePreFlop
	}
}

// TableConfig contains table settings, including every timer duration
// that governs the phase clock.
type TableConfig struct {
	MaxPlayers uint16
	SmallBlind int64
	BigBlind   int64
	Ante       int64
	MinBuyIn   int64
	MaxBuyIn   int64

	TurnTimeout       time.Duration
	CountdownDuration time.Duration
	PayoutDuration    time.Duration
	BanterDuration    time.Duration
}

// PlayerConn is a player's seat and connectivity bookkeeping for one table.
type PlayerConn struct {
	UserID      uint64
	DisplayName string
	Chair       uint16
	Stack       int64
	Wallet      int64 // chips bought in but not yet seated
	Ready       bool
	Online      bool
	LastSeen    time.Time
}

// EventType enumerates messages the table actor accepts.
type EventType int

const (
	EventJoin EventType = iota
	EventSit
	EventReady
	EventStandUp
	EventAction
	EventSocial
	EventConnLost
	EventConnResume
	EventClose
)

// Event is a message submitted to the table actor.
type Event struct {
	Type        EventType
	UserID      uint64
	DisplayName string
	Chair       uint16
	Amount      int64
	Action      holdem.ActionType
	SocialType  string
	TargetSeat  uint16
	Timestamp   time.Time
	Response    chan error
}

// HandEndInfo is emitted when a hand settlement is finalized.
type HandEndInfo struct {
	TableID  string
	Round    uint32
	Snapshot holdem.Snapshot
	Result   *holdem.SettlementResult
}

// HandEndHook is a post-settlement callback (e.g. ledger persistence,
// metrics, or test instrumentation).
type HandEndHook func(info HandEndInfo)

var (
	ErrTableClosed  = errors.New("table closed")
	ErrTableFull    = errors.New("table full")
	ErrSeatTaken    = errors.New("seat taken")
	ErrNotSeated    = errors.New("player not seated")
	ErrNotYourTurn  = errors.New("action out of turn")
	ErrInvalidBuyIn = errors.New("buy-in outside table limits")
)

const (
	defaultTurnTimeout    = 30 * time.Second
	defaultCountdown      = 3 * time.Second
	defaultPayoutDuration = 5 * time.Second
	defaultBanterDuration = 15 * time.Second
	offlineSeatTTL        = 90 * time.Second
	ledgerCallTimeout     = 2 * time.Second
)

// BroadcastFunc delivers one semantic event+payload to one recipient. The
// gateway owns wire encoding (event name constants, JSON envelope shape);
// the table only ever hands it a Go value.
type BroadcastFunc func(userID uint64, event string, payload any)

// Wire event names sent from the table to connected clients.
const (
	EvtGameSnapshot = "GAME_SNAPSHOT"
	EvtStatePatch   = "STATE_PATCH"
	EvtPlayerAction = "PLAYER_ACTION"
	EvtHandResult   = "HAND_RESULT"
	EvtError        = "ERROR"
)

// PlayerActionNotice is the PLAYER_ACTION broadcast payload.
type PlayerActionNotice struct {
	PlayerID uint64 `json:"steamId"`
	Action   string `json:"action"`
	Amount   int64  `json:"amount,omitempty"`
	NewPot   int64  `json:"newPot"`
}

// HandWinner is one entry of HAND_RESULT's winners list.
type HandWinner struct {
	PlayerID uint64   `json:"steamId"`
	Cards    []string `json:"cards"`
	HandRank string   `json:"handRank"`
	Amount   int64    `json:"amount"`
}

// HandPotResult is one entry of HAND_RESULT's pots list.
type HandPotResult struct {
	Amount   int64    `json:"amount"`
	Eligible []uint64 `json:"eligible"`
}

// HandResultNotice is the HAND_RESULT broadcast payload.
type HandResultNotice struct {
	Winners []HandWinner    `json:"winners"`
	Pots    []HandPotResult `json:"pots"`
}

// Table is one authoritative poker table, run by a single actor goroutine.
type Table struct {
	ID     string
	Config TableConfig

	mu     sync.RWMutex
	game   *holdem.Game
	phase  TablePhase
	closed bool

	players map[uint64]*PlayerConn // userID -> connection
	seats   map[uint16]uint64      // chair -> userID
	round   uint32

	// Stack baseline at hand start, for the ledger's ending-minus-starting
	// delta rule.
	handStartStacks map[uint16]int64

	// Users who asked to stand up mid-hand; the engine refuses seat
	// mutation while a hand is in progress (holdem.ErrHandInProgress), so
	// the stand-up is deferred and replayed once the hand ends.
	pendingStandUps map[uint64]bool

	events   chan Event
	done     chan struct{}
	stopOnce sync.Once

	sequence uint64

	clock         quartz.Clock
	phaseDeadline time.Time

	actionTimeoutChair uint16
	actionDeadline     time.Time
	emptySince         time.Time

	lastView map[uint64]view.View // last sanitized view delivered per recipient

	broadcast BroadcastFunc
	ledger    ledger.Service
	handID    string

	// ledgerHalted freezes the table after a failed ledger commit at hand
	// end: the dealer button does not advance and no new hand starts until
	// a retry succeeds or an admin clears the halt explicitly.
	ledgerHalted      bool
	ledgerRetryDeltas map[uint64]int64
	ledgerRetryCount  int
	ledgerRetryAt     time.Time

	log zerolog.Logger

	handEndHooks []HandEndHook
}

const maxLedgerAutoRetries = 5

var ledgerRetryBackoff = 10 * time.Second

// New creates a table and starts its actor goroutine.
func New(id string, cfg TableConfig, broadcastFn BroadcastFunc, ledgerService ledger.Service, logger zerolog.Logger) *Table {
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = defaultTurnTimeout
	}
	if cfg.CountdownDuration <= 0 {
		cfg.CountdownDuration = defaultCountdown
	}
	if cfg.PayoutDuration <= 0 {
		cfg.PayoutDuration = defaultPayoutDuration
	}
	if cfg.BanterDuration <= 0 {
		cfg.BanterDuration = defaultBanterDuration
	}

	t := &Table{
		ID:                 id,
		Config:             cfg,
		phase:              PhaseLobby,
		players:            make(map[uint64]*PlayerConn),
		seats:              make(map[uint16]uint64),
		handStartStacks:    make(map[uint16]int64),
		pendingStandUps:    make(map[uint64]bool),
		events:             make(chan Event, 256),
		done:               make(chan struct{}),
		clock:              quartz.NewReal(),
		broadcast:          broadcastFn,
		ledger:             ledgerService,
		actionTimeoutChair: holdem.InvalidChair,
		emptySince:         time.Now(),
		lastView:           make(map[uint64]view.View),
		log:                logger.With().Str("table", id).Logger(),
	}

	game, err := holdem.NewGame(holdem.Config{
		MaxPlayers: int(cfg.MaxPlayers),
		MinPlayers: 2,
		SmallBlind: cfg.SmallBlind,
		BigBlind:   cfg.BigBlind,
		Ante:       cfg.Ante,
	})
	if err != nil {
		logger.Error().Err(err).Str("table", id).Msg("failed to create game engine")
		return nil
	}
	t.game = game

	go t.run()
	t.log.Info().Uint16("maxPlayers", cfg.MaxPlayers).Int64("sb", cfg.SmallBlind).Int64("bb", cfg.BigBlind).Msg("table created")
	return t
}

// WithClock overrides the table's clock (tests only), before any event is
// submitted.
func (t *Table) WithClock(c quartz.Clock) *Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock = c
	return t
}

// run is the actor loop: one goroutine owns all mutable table state.
func (t *Table) run() {
	ticker := t.clock.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case event := <-t.events:
			err := t.handleEvent(event)
			if event.Response != nil {
				event.Response <- err
			}
		case <-ticker.C:
			t.tick()
		case <-t.done:
			t.log.Info().Msg("table actor stopped")
			return
		}
	}
}

func (t *Table) handleEvent(e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed && e.Type != EventClose {
		return ErrTableClosed
	}

	switch e.Type {
	case EventJoin:
		return t.handleJoin(e.UserID, e.DisplayName)
	case EventSit:
		return t.handleSit(e.UserID, e.Chair, e.Amount)
	case EventReady:
		return t.handleReady(e.UserID)
	case EventStandUp:
		return t.handleStandUp(e.UserID)
	case EventAction:
		return t.handleAction(e.UserID, e.Action, e.Amount)
	case EventSocial:
		t.handleSocial(e.UserID, e.SocialType, e.TargetSeat)
		return nil
	case EventConnLost:
		return t.handleConnLost(e.UserID, e.Timestamp)
	case EventConnResume:
		return t.handleConnResume(e.UserID, e.Timestamp)
	case EventClose:
		t.stopLocked()
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

// handleJoin registers a connected player at the table without seating
// them: it binds a transport to the table's channel, while seating is a
// separate request.
func (t *Table) handleJoin(userID uint64, displayName string) error {
	now := time.Now()
	if player, exists := t.players[userID]; exists {
		player.Online = true
		player.LastSeen = now
		if displayName != "" {
			player.DisplayName = displayName
		}
		t.sendSnapshotLocked(userID)
		return nil
	}
	t.players[userID] = &PlayerConn{
		UserID:      userID,
		DisplayName: displayName,
		Chair:       holdem.InvalidChair,
		Online:      true,
		LastSeen:    now,
	}
	t.log.Info().Uint64("userId", userID).Msg("player joined table")
	t.sendSnapshotLocked(userID)
	return nil
}

// handleSit seats a player at an explicit chair with an explicit buy-in.
func (t *Table) handleSit(userID uint64, chair uint16, buyIn int64) error {
	player := t.players[userID]
	if player == nil {
		return ErrNotSeated
	}
	if player.Chair != holdem.InvalidChair {
		return fmt.Errorf("already seated at chair %d", player.Chair)
	}
	if chair >= t.Config.MaxPlayers {
		return ErrTableFull
	}
	if t.seats[chair] != 0 {
		return ErrSeatTaken
	}
	if buyIn < t.Config.MinBuyIn || buyIn > t.Config.MaxBuyIn {
		return ErrInvalidBuyIn
	}

	if err := t.game.SitDown(chair, userID, buyIn); err != nil {
		return err
	}

	player.Chair = chair
	player.Stack = buyIn
	player.Ready = false
	player.Online = true
	player.LastSeen = time.Now()
	t.seats[chair] = userID
	t.updateEmptySinceLocked(player.LastSeen)

	if t.phase == PhaseLobby {
		t.phase = PhaseWaiting
	}

	t.log.Info().Uint64("userId", userID).Uint16("chair", chair).Int64("buyIn", buyIn).Msg("player seated")
	t.broadcastSnapshotToAllLocked()
	return nil
}

// handleReady marks a seated player ready. A Waiting table with >=2 seated
// chip-positive players, all ready, advances to Starting on the next tick.
func (t *Table) handleReady(userID uint64) error {
	player := t.players[userID]
	if player == nil || player.Chair == holdem.InvalidChair {
		return ErrNotSeated
	}
	player.Ready = true
	t.log.Info().Uint64("userId", userID).Msg("player ready")
	t.broadcastSnapshotToAllLocked()
	return nil
}

// handleStandUp unseats a player. If a hand is in progress the engine
// refuses seat mutation (holdem.ErrHandInProgress); in that case the
// stand-up is deferred and replayed once the hand ends.
func (t *Table) handleStandUp(userID uint64) error {
	player := t.players[userID]
	if player == nil || player.Chair == holdem.InvalidChair {
		return nil
	}

	chair := player.Chair
	if err := t.game.StandUp(chair); err != nil {
		if errors.Is(err, holdem.ErrHandInProgress) {
			t.pendingStandUps[userID] = true
			t.log.Info().Uint64("userId", userID).Uint16("chair", chair).Msg("stand-up deferred until hand end")
			return nil
		}
		return err
	}

	t.removeSeatLocked(userID, chair)
	t.log.Info().Uint64("userId", userID).Uint16("chair", chair).Msg("player stood up")
	t.broadcastSnapshotToAllLocked()
	return nil
}

func (t *Table) removeSeatLocked(userID uint64, chair uint16) {
	player := t.players[userID]
	delete(t.seats, chair)
	if player != nil {
		player.Chair = holdem.InvalidChair
		player.Ready = false
		player.Wallet += player.Stack
		player.Stack = 0
		player.LastSeen = time.Now()
	}
	t.updateEmptySinceLocked(time.Now())

	if len(t.seats) == 0 {
		t.phase = PhaseLobby
	} else if t.phase == PhaseWaiting || t.phase == PhaseStarting {
		t.phase = PhaseWaiting
	}
}

// processPendingStandUpsLocked replays any stand-ups requested mid-hand,
// now that the hand has ended and the engine accepts seat mutation again.
func (t *Table) processPendingStandUpsLocked() {
	if len(t.pendingStandUps) == 0 {
		return
	}
	for userID := range t.pendingStandUps {
		player := t.players[userID]
		if player == nil || player.Chair == holdem.InvalidChair {
			delete(t.pendingStandUps, userID)
			continue
		}
		chair := player.Chair
		if err := t.game.StandUp(chair); err != nil {
			t.log.Warn().Uint64("userId", userID).Err(err).Msg("deferred stand-up failed")
			continue
		}
		t.removeSeatLocked(userID, chair)
		delete(t.pendingStandUps, userID)
		t.log.Info().Uint64("userId", userID).Uint16("chair", chair).Msg("deferred stand-up processed")
	}
}

// handleSocial fans out a social gesture without touching the state
// machine or going through the hand lifecycle at all.
func (t *Table) handleSocial(userID uint64, socialType string, targetSeat uint16) {
	type socialNotice struct {
		PlayerID   uint64 `json:"steamId"`
		Type       string `json:"type"`
		TargetSeat uint16 `json:"targetSeat,omitempty"`
	}
	notice := socialNotice{PlayerID: userID, Type: socialType, TargetSeat: targetSeat}
	for peer := range t.players {
		t.broadcast(peer, "SOCIAL", notice)
	}
}

func (t *Table) handleAction(userID uint64, action holdem.ActionType, amount int64) error {
	player := t.players[userID]
	if player == nil || player.Chair == holdem.InvalidChair {
		return ErrNotSeated
	}

	before := t.game.Snapshot()
	if before.ActionChair != player.Chair {
		return ErrNotYourTurn
	}
	if action == holdem.PlayerActionTypeCall {
		amount = before.CurBet
	}

	result, err := t.game.Act(player.Chair, action, amount)
	if err != nil {
		return err
	}
	if t.actionTimeoutChair == player.Chair {
		t.clearActionTimeoutLocked()
	}
	after := t.game.Snapshot()
	t.syncPlayerStacksFromSnapshotLocked(after)

	t.log.Info().Uint64("userId", userID).Str("action", holdem.PlayerActionTypeDictionary[action]).Int64("amount", amount).Msg("player action")

	newPot := potTotal(after)
	t.broadcastAll(EvtPlayerAction, PlayerActionNotice{
		PlayerID: userID,
		Action:   holdem.PlayerActionTypeDictionary[action],
		Amount:   amount,
		NewPot:   newPot,
	})

	if result != nil {
		t.settleHandLocked(result)
		return nil
	}

	t.phase = tablePhaseFromHoldem(after.Phase)
	if after.ActionChair != holdem.InvalidChair {
		t.setActionTimeoutLocked(after.ActionChair, t.clock.Now())
	}
	t.broadcastSnapshotToAllLocked()
	return nil
}

func potTotal(snap holdem.Snapshot) int64 {
	var total int64
	for _, pot := range snap.Pots {
		total += pot.Amount
	}
	for _, ps := range snap.Players {
		total += ps.Bet
	}
	return total
}

// isFoldWin reports whether a settlement was decided by every-but-one
// player folding, versus an actual showdown evaluation.
func isFoldWin(result *holdem.SettlementResult) bool {
	return len(result.PlayerResults) == 1 && len(result.PlayerResults[0].HandCards) == 0
}

// settleHandLocked transitions into ShowdownReveal (or straight to
// PayoutAnimation for a fold win), persists the ledger delta, and
// broadcasts HAND_RESULT.
func (t *Table) settleHandLocked(result *holdem.SettlementResult) {
	after := t.game.Snapshot()
	t.syncPlayerStacksFromSnapshotLocked(after)

	if isFoldWin(result) {
		t.phase = PhasePayoutAnimation
	} else {
		t.phase = PhaseShowdownReveal
	}

	t.log.Info().Interface("potResults", result.PotResults).Msg("hand settled")

	t.broadcastHandResultLocked(result)
	// Broadcast once while phase is still ShowdownReveal so recipients'
	// views carry every still-in player's revealed hand (view.ShowdownView).
	t.broadcastSnapshotToAllLocked()

	t.persistLedgerLocked(after)
	t.dispatchHandEndHooksLocked(result)
	t.handID = ""
	t.processPendingStandUpsLocked()

	t.phase = PhasePayoutAnimation
	t.phaseDeadline = t.clock.Now().Add(t.Config.PayoutDuration)

	if len(t.seats) < 2 {
		t.phase = PhaseSocialBanter
		t.phaseDeadline = t.clock.Now()
	}
}

func (t *Table) persistLedgerLocked(after holdem.Snapshot) {
	if t.ledger == nil {
		return
	}
	deltas := make(map[uint64]int64, len(after.Players))
	for _, ps := range after.Players {
		start, ok := t.handStartStacks[ps.Chair]
		if !ok {
			continue
		}
		userID := t.seats[ps.Chair]
		if userID == 0 {
			continue
		}
		deltas[userID] = ps.Stack - start
	}
	if len(deltas) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ledgerCallTimeout)
	defer cancel()
	if err := t.ledger.AdjustMany(ctx, deltas); err != nil {
		t.log.Error().Err(err).Msg("ledger adjustMany failed at hand end")
		t.broadcastAll(EvtError, map[string]string{"code": "INSUFFICIENT_CHIPS", "message": err.Error()})
		t.haltForLedgerFailureLocked(deltas)
		return
	}

	record := ledger.HandRecord{
		HandID:    uuid.NewString(),
		TableID:   t.ID,
		HandSeq:   uint64(t.round),
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
		PotTotal:  potTotal(after),
	}
	for userID, delta := range deltas {
		if delta > 0 {
			record.Winners = append(record.Winners, userID)
		}
	}
	sort.Slice(record.Winners, func(i, j int) bool { return record.Winners[i] < record.Winners[j] })

	ctx2, cancel2 := context.WithTimeout(context.Background(), ledgerCallTimeout)
	defer cancel2()
	if _, err := t.ledger.SaveHand(ctx2, record); err != nil {
		t.log.Error().Err(err).Msg("ledger saveHand failed at hand end")
	}
}

// haltForLedgerFailureLocked freezes the table so the dealer button cannot
// advance past a hand whose chip deltas never committed. The frozen deltas
// are retried on a fixed backoff up to maxLedgerAutoRetries; once that cap
// is hit only AdminClearLedgerHalt (operator intervention) can resume play.
func (t *Table) haltForLedgerFailureLocked(deltas map[uint64]int64) {
	t.ledgerHalted = true
	t.ledgerRetryDeltas = deltas
	t.ledgerRetryCount = 0
	t.ledgerRetryAt = t.clock.Now().Add(ledgerRetryBackoff)
}

// retryLedgerHaltLocked is polled from tick() while the table is halted. It
// reattempts the failed AdjustMany and clears the halt on success.
func (t *Table) retryLedgerHaltLocked(now time.Time) {
	if !t.ledgerHalted || t.ledger == nil {
		return
	}
	if now.Before(t.ledgerRetryAt) {
		return
	}
	if t.ledgerRetryCount >= maxLedgerAutoRetries {
		return
	}
	t.ledgerRetryCount++

	ctx, cancel := context.WithTimeout(context.Background(), ledgerCallTimeout)
	defer cancel()
	if err := t.ledger.AdjustMany(ctx, t.ledgerRetryDeltas); err != nil {
		t.log.Error().Err(err).Int("attempt", t.ledgerRetryCount).Msg("ledger adjustMany retry failed")
		t.ledgerRetryAt = now.Add(ledgerRetryBackoff)
		return
	}

	t.log.Info().Int("attempt", t.ledgerRetryCount).Msg("ledger adjustMany retry succeeded, resuming table")
	t.clearLedgerHaltLocked()
}

// AdminClearLedgerHalt resumes a table frozen by haltForLedgerFailureLocked
// without re-attempting the ledger commit, for operators who have reconciled
// the failure out of band.
func (t *Table) AdminClearLedgerHalt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearLedgerHaltLocked()
}

func (t *Table) clearLedgerHaltLocked() {
	t.ledgerHalted = false
	t.ledgerRetryDeltas = nil
	t.ledgerRetryCount = 0
	t.ledgerRetryAt = time.Time{}
}

func (t *Table) broadcastHandResultLocked(result *holdem.SettlementResult) {
	handTypeOf := make(map[uint16]byte, len(result.PlayerResults))
	cardsOf := make(map[uint16][]string, len(result.PlayerResults))
	for _, pr := range result.PlayerResults {
		handTypeOf[pr.Chair] = pr.HandType
		for _, c := range pr.HandCards {
			cardsOf[pr.Chair] = append(cardsOf[pr.Chair], c.String())
		}
	}

	notice := HandResultNotice{}
	for _, pot := range result.PotResults {
		hp := HandPotResult{Amount: pot.Amount}
		for _, chair := range pot.Winners {
			if userID := t.seats[chair]; userID != 0 {
				hp.Eligible = append(hp.Eligible, userID)
			}
		}
		notice.Pots = append(notice.Pots, hp)
		for i, chair := range pot.Winners {
			userID := t.seats[chair]
			if userID == 0 {
				continue
			}
			amount := int64(0)
			if i < len(pot.WinAmounts) {
				amount = pot.WinAmounts[i]
			}
			notice.Winners = append(notice.Winners, HandWinner{
				PlayerID: userID,
				Cards:    cardsOf[chair],
				HandRank: holdem.HandTypeName(handTypeOf[chair]),
				Amount:   amount,
			})
		}
	}
	t.broadcastAll(EvtHandResult, notice)
}

func (t *Table) dispatchHandEndHooksLocked(result *holdem.SettlementResult) {
	if len(t.handEndHooks) == 0 {
		return
	}
	info := HandEndInfo{
		TableID:  t.ID,
		Round:    t.round,
		Snapshot: t.game.Snapshot(),
		Result:   result,
	}
	hooks := append([]HandEndHook(nil), t.handEndHooks...)
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		go func(cb HandEndHook) {
			defer func() {
				if r := recover(); r != nil {
					t.log.Error().Interface("panic", r).Msg("hand end hook panic")
				}
			}()
			cb(info)
		}(hook)
	}
}

// tick drives the table's phase-timer edges.
func (t *Table) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	now := t.clock.Now()

	if err := t.handleActionTimeoutLocked(now); err != nil {
		t.log.Error().Err(err).Msg("action timeout handling failed")
	}
	t.releaseOfflineSeatsLocked(now)
	t.retryLedgerHaltLocked(now)

	switch t.phase {
	case PhaseWaiting:
		if !t.ledgerHalted && t.canStartLocked() {
			t.phase = PhaseStarting
			t.phaseDeadline = now.Add(t.Config.CountdownDuration)
			t.broadcastSnapshotToAllLocked()
		}
	case PhaseStarting:
		if !t.phaseDeadline.IsZero() && !now.Before(t.phaseDeadline) {
			if err := t.startHandLocked(); err != nil {
				t.log.Error().Err(err).Msg("start hand failed")
				t.phase = PhaseWaiting
			}
		}
	case PhasePayoutAnimation:
		if !t.phaseDeadline.IsZero() && !now.Before(t.phaseDeadline) {
			t.phase = PhaseSocialBanter
			t.phaseDeadline = now.Add(t.Config.BanterDuration)
			t.broadcastSnapshotToAllLocked()
		}
	case PhaseSocialBanter:
		if !t.phaseDeadline.IsZero() && !now.Before(t.phaseDeadline) {
			t.resetReadyFlagsLocked()
			if len(t.seats) >= 2 {
				t.phase = PhaseWaiting
			} else {
				t.phase = PhaseLobby
			}
			t.phaseDeadline = time.Time{}
			t.broadcastSnapshotToAllLocked()
		}
	}
}

func (t *Table) canStartLocked() bool {
	if len(t.seats) < 2 {
		return false
	}
	for _, userID := range t.seats {
		player := t.players[userID]
		if player == nil || player.Stack <= 0 || !player.Ready {
			return false
		}
	}
	return true
}

func (t *Table) resetReadyFlagsLocked() {
	for _, player := range t.players {
		if player.Chair != holdem.InvalidChair {
			player.Ready = false
		}
	}
}

func (t *Table) startHandLocked() error {
	if t.closed {
		return ErrTableClosed
	}
	if len(t.seats) < 2 {
		t.phase = PhaseWaiting
		return nil
	}

	before := t.game.Snapshot()
	t.handStartStacks = make(map[uint16]int64, len(before.Players))
	for _, ps := range before.Players {
		t.handStartStacks[ps.Chair] = ps.Stack
	}

	if err := t.game.StartHand(); err != nil {
		return err
	}
	t.round++
	t.handID = fmt.Sprintf("%s_r%d", t.ID, t.round)

	snap := t.game.Snapshot()
	t.syncPlayerStacksFromSnapshotLocked(snap)
	t.phase = tablePhaseFromHoldem(snap.Phase)
	t.phaseDeadline = time.Time{}

	t.log.Info().Uint32("round", t.round).Uint16("dealer", snap.DealerChair).Uint16("action", snap.ActionChair).Msg("hand started")

	t.broadcastSnapshotToAllLocked()
	if snap.ActionChair != holdem.InvalidChair {
		t.setActionTimeoutLocked(snap.ActionChair, t.clock.Now())
	}
	return nil
}

func (t *Table) handleActionTimeoutLocked(now time.Time) error {
	if t.actionTimeoutChair == holdem.InvalidChair || t.actionDeadline.IsZero() {
		return nil
	}
	if now.Before(t.actionDeadline) {
		return nil
	}

	chair := t.actionTimeoutChair
	userID := t.seats[chair]
	t.clearActionTimeoutLocked()
	if userID == 0 {
		return nil
	}

	snap := t.game.Snapshot()
	if snap.ActionChair != chair {
		return nil
	}

	action, amount, err := t.pickTimeoutActionLocked(chair, snap)
	if err != nil {
		return err
	}
	t.log.Info().Uint16("chair", chair).Uint64("userId", userID).Str("auto", holdem.PlayerActionTypeDictionary[action]).Msg("action timed out")
	return t.handleAction(userID, action, amount)
}

// pickTimeoutActionLocked resolves the action taken when a turn timer fires
// with no player input: always fold, never a free check, regardless of
// whether checking would have been legal.
func (t *Table) pickTimeoutActionLocked(chair uint16, snap holdem.Snapshot) (holdem.ActionType, int64, error) {
	legalActions, _, err := t.game.LegalActions(chair)
	if err != nil {
		return 0, 0, err
	}
	if hasAction(legalActions, holdem.PlayerActionTypeFold) {
		return holdem.PlayerActionTypeFold, 0, nil
	}
	if len(legalActions) == 0 {
		return 0, 0, fmt.Errorf("no legal actions for timeout")
	}
	return legalActions[0], snap.CurBet, nil
}

func hasAction(actions []holdem.ActionType, target holdem.ActionType) bool {
	for _, a := range actions {
		if a == target {
			return true
		}
	}
	return false
}

func (t *Table) releaseOfflineSeatsLocked(now time.Time) {
	for userID, player := range t.players {
		if player == nil || player.Online || player.Chair == holdem.InvalidChair {
			continue
		}
		if now.Sub(player.LastSeen) < offlineSeatTTL {
			continue
		}
		if err := t.handleStandUp(userID); err != nil {
			player.LastSeen = now
			t.log.Warn().Uint64("userId", userID).Err(err).Msg("auto-standup of offline player failed")
			continue
		}
	}
}

func (t *Table) handleConnLost(userID uint64, ts time.Time) error {
	player := t.players[userID]
	if player == nil {
		return nil
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	player.Online = false
	player.LastSeen = ts
	return nil
}

func (t *Table) handleConnResume(userID uint64, ts time.Time) error {
	player := t.players[userID]
	if player == nil {
		return nil
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	player.Online = true
	player.LastSeen = ts
	t.sendSnapshotLocked(userID)
	return nil
}

// SubmitEvent enqueues an event and waits for the actor's response.
func (t *Table) SubmitEvent(e Event) error {
	e.Timestamp = time.Now()
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrTableClosed
	}

	select {
	case t.events <- e:
	case <-t.done:
		return ErrTableClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-t.done:
		return ErrTableClosed
	}
}

// Stop shuts down the table actor.
func (t *Table) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Table) stopLocked() {
	t.closed = true
	t.clearActionTimeoutLocked()
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

func (t *Table) setActionTimeoutLocked(chair uint16, now time.Time) {
	t.actionTimeoutChair = chair
	t.actionDeadline = now.Add(t.Config.TurnTimeout)
}

func (t *Table) clearActionTimeoutLocked() {
	t.actionTimeoutChair = holdem.InvalidChair
	t.actionDeadline = time.Time{}
}

func (t *Table) updateEmptySinceLocked(now time.Time) {
	if len(t.seats) == 0 {
		if t.emptySince.IsZero() {
			t.emptySince = now
		}
		return
	}
	t.emptySince = time.Time{}
}

func (t *Table) syncPlayerStacksFromSnapshotLocked(snap holdem.Snapshot) {
	for _, ps := range snap.Players {
		userID := t.seats[ps.Chair]
		if player, ok := t.players[userID]; ok {
			player.Stack = ps.Stack
		}
	}
}

// IsIdleFor reports whether the table has been seatless for at least ttl.
func (t *Table) IsIdleFor(ttl time.Duration) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return true
	}
	if len(t.seats) > 0 {
		return false
	}
	if t.emptySince.IsZero() {
		return false
	}
	return time.Since(t.emptySince) >= ttl
}

func (t *Table) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// Snapshot returns the underlying engine snapshot (thread-safe).
func (t *Table) Snapshot() holdem.Snapshot {
	return t.game.Snapshot()
}

// Phase returns the current outer table phase.
func (t *Table) Phase() TablePhase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase
}

// SeatCount returns the number of occupied seats.
func (t *Table) SeatCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seats)
}

// AddHandEndHook registers a post-settlement callback.
func (t *Table) AddHandEndHook(hook HandEndHook) {
	if hook == nil {
		return
	}
	t.mu.Lock()
	t.handEndHooks = append(t.handEndHooks, hook)
	t.mu.Unlock()
}

// --- god state / view plumbing ---

func (t *Table) buildGodStateLocked() view.GodState {
	snap := t.game.Snapshot()
	god := view.GodState{
		TableID:        t.ID,
		Phase:          string(t.phase),
		PotTotal:       potTotal(snap),
		CurrentBet:     snap.CurBet,
		DealerSeat:     snap.DealerChair,
		ActingSeat:     snap.ActionChair,
		CommunityCards: append([]card.Card(nil), snap.CommunityCards...),
	}

	statsByChair := make(map[uint16]holdem.PlayerSnapshot, len(snap.Players))
	for _, ps := range snap.Players {
		statsByChair[ps.Chair] = ps
	}

	for chair, userID := range t.seats {
		player := t.players[userID]
		if player == nil {
			continue
		}
		ps := statsByChair[chair]
		god.Players = append(god.Players, view.PlayerState{
			SeatIndex:   chair,
			PlayerID:    userID,
			DisplayName: player.DisplayName,
			Stack:       player.Stack,
			Wager:       ps.Bet,
			Folded:      ps.Folded,
			AllIn:       ps.AllIn,
			Ready:       player.Ready,
			HoleCards:   ps.HandCards,
		})
	}
	sort.Slice(god.Players, func(i, j int) bool { return god.Players[i].SeatIndex < god.Players[j].SeatIndex })
	return god
}

func (t *Table) viewForLocked(userID uint64) view.View {
	god := t.buildGodStateLocked()
	t.sequence++
	god.Sequence = t.sequence
	if t.phase == PhaseShowdownReveal || t.phase == PhasePayoutAnimation {
		// A hand won by folds has one live player and no showdown to reveal.
		live := 0
		for _, p := range god.Players {
			if !p.Folded && len(p.HoleCards) > 0 {
				live++
			}
		}
		if live > 1 {
			return view.ShowdownView(god)
		}
	}
	return view.PersonalView(god, userID)
}

// sendSnapshotLocked delivers a full GAME_SNAPSHOT to one recipient (used
// on join and reconnect).
func (t *Table) sendSnapshotLocked(userID uint64) {
	v := t.viewForLocked(userID)
	t.lastView[userID] = v
	t.broadcast(userID, EvtGameSnapshot, v)
}

// broadcastSnapshotToAllLocked sends each connected player either a full
// snapshot (first delivery) or an incremental STATE_PATCH.
func (t *Table) broadcastSnapshotToAllLocked() {
	for userID, player := range t.players {
		if player == nil || !player.Online {
			continue
		}
		next := t.viewForLocked(userID)
		prev, seen := t.lastView[userID]
		t.lastView[userID] = next
		if !seen {
			t.broadcast(userID, EvtGameSnapshot, next)
			continue
		}
		t.broadcast(userID, EvtStatePatch, view.Delta(prev, next))
	}
}

func (t *Table) broadcastAll(event string, payload any) {
	for userID, player := range t.players {
		if player == nil || !player.Online {
			continue
		}
		t.broadcast(userID, event, payload)
	}
}
