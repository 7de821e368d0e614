// Package gateway is the wire-protocol edge: WebSocket transport framing
// (upgrade/read-pump/write-pump/ping-pong) carrying JSON-tagged client and
// server envelopes over a single connection per player.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sabar2001/poker-prestige/holdem"
	"github.com/sabar2001/poker-prestige/internal/lobby"
	"github.com/sabar2001/poker-prestige/internal/session"
	"github.com/sabar2001/poker-prestige/internal/table"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client -> server event names.
const (
	ReqJoin      = "REQ_JOIN"
	ReqReconnect = "REQ_RECONNECT"
	ReqSit       = "REQ_SIT"
	ReqReady     = "REQ_READY"
	ReqAction    = "REQ_ACTION"
	ReqSocial    = "REQ_SOCIAL"
	ReqLeave     = "REQ_LEAVE"
)

// Server -> client event names.
const (
	EvtAuthSuccess = "AUTH_SUCCESS"
	EvtAuthFailure = "AUTH_FAILURE"
)

// Error codes sent back to clients in ERROR payloads.
const (
	CodeAuthFailed         = "AUTH_FAILED"
	CodeInvalidTicket      = "INVALID_TICKET"
	CodeTableFull          = "TABLE_FULL"
	CodeSeatTaken          = "SEAT_TAKEN"
	CodeInvalidAction      = "INVALID_ACTION"
	CodeNotYourTurn        = "NOT_YOUR_TURN"
	CodeInsufficientChips  = "INSUFFICIENT_CHIPS"
	CodeAlreadyInTable     = "ALREADY_IN_TABLE"
	CodeTableNotFound      = "TABLE_NOT_FOUND"
)

// clientEnvelope is the inbound wire shape: an event tag plus a
// lazily-decoded payload.
type clientEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// serverEnvelope is the outbound wire shape.
type serverEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

type joinPayload struct {
	AuthTicket string `json:"authTicket"`
	TableID    string `json:"tableId"`
}

type reconnectPayload struct {
	AuthTicket     string `json:"authTicket"`
	TableID        string `json:"tableId"`
	LastSequenceID uint64 `json:"lastSequenceId"`
}

type sitPayload struct {
	SeatIndex uint16 `json:"seatIndex"`
	BuyIn     int64  `json:"buyIn"`
}

type actionPayload struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount,omitempty"`
}

type socialPayload struct {
	Type       string `json:"type"`
	TargetSeat uint16 `json:"targetSeat,omitempty"`
}

type authResultPayload struct {
	Code         string `json:"code,omitempty"`
	Message      string `json:"message,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// socialOutboxSize bounds the pure pub-sub social channel: it must never
// touch god state or block the table loop, so it gets its own small
// drop-oldest ring rather than sharing the reliable Send queue.
const socialOutboxSize = 32

// Connection is one WebSocket client channel.
type Connection struct {
	ID       string
	PlayerID uint64
	Conn     *websocket.Conn
	Send     chan []byte
	Social   chan []byte
	Gateway  *Gateway
	LastPing time.Time

	TableID string
	Table   *table.Table
}

// Gateway owns WebSocket connections, identity sessions, and the table
// registry they're routed through.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	byPlayer    map[uint64]*Connection
	nextConnID  uint64

	lobby    *lobby.Lobby
	sessions *session.Manager
	log      zerolog.Logger
}

// New creates a Gateway. sessionGrace is the reconnect grace window
// (60s is the usual default).
func New(lby *lobby.Lobby, identity session.IdentityProvider, sessionGrace time.Duration, logger zerolog.Logger) *Gateway {
	g := &Gateway{
		connections: make(map[string]*Connection),
		byPlayer:    make(map[uint64]*Connection),
		lobby:       lby,
		log:         logger.With().Str("component", "gateway").Logger(),
	}
	g.sessions = session.NewManager(identity, sessionGrace, g.handleSessionExpired)
	return g
}

// handleSessionExpired unseats a player whose disconnect grace window
// lapsed without a reconnect.
func (g *Gateway) handleSessionExpired(playerID uint64, tableID string) {
	if tableID == "" {
		return
	}
	t, ok := g.lobby.Table(tableID)
	if !ok {
		return
	}
	if err := t.SubmitEvent(table.Event{Type: table.EventStandUp, UserID: playerID}); err != nil {
		g.log.Warn().Uint64("playerId", playerID).Err(err).Msg("expired-session stand-up failed")
	}
	g.lobby.UnbindPlayer(playerID)
}

// HandleWebSocket upgrades an HTTP request to a WebSocket connection.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	g.mu.Lock()
	g.nextConnID++
	connID := fmt.Sprintf("conn_%d", g.nextConnID)
	c := &Connection{
		ID:       connID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Social:   make(chan []byte, socialOutboxSize),
		Gateway:  g,
		LastPing: time.Now(),
	}
	g.connections[connID] = c
	g.mu.Unlock()

	g.log.Info().Str("connId", connID).Int("total", len(g.connections)).Msg("client connected")

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(65536)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Gateway.log.Warn().Err(err).Str("connId", c.ID).Msg("websocket read error")
			}
			break
		}
		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	var env clientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.sendError(CodeInvalidAction, "malformed envelope")
		return
	}

	switch env.Event {
	case ReqJoin:
		c.handleJoin(env.Payload)
	case ReqReconnect:
		c.handleReconnect(env.Payload)
	case ReqSit:
		c.handleSit(env.Payload)
	case ReqReady:
		c.handleReady()
	case ReqAction:
		c.handleAction(env.Payload)
	case ReqSocial:
		c.handleSocial(env.Payload)
	case ReqLeave:
		c.handleLeave()
	default:
		c.sendError(CodeInvalidAction, fmt.Sprintf("unknown event %q", env.Event))
	}
}

func (c *Connection) handleJoin(raw json.RawMessage) {
	var req joinPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		c.sendError(CodeInvalidAction, "malformed REQ_JOIN payload")
		return
	}

	sess, token, err := c.Gateway.sessions.Open(c, req.AuthTicket)
	if err != nil {
		c.send(serverEnvelope{Event: EvtAuthFailure, Payload: authResultPayload{Code: CodeInvalidTicket, Message: err.Error()}})
		return
	}

	t, ok := c.Gateway.lobby.Table(req.TableID)
	if !ok {
		c.sendError(CodeTableNotFound, "no such table")
		return
	}
	if err := c.Gateway.lobby.BindPlayer(sess.PlayerID, req.TableID); err != nil {
		c.sendError(CodeAlreadyInTable, err.Error())
		return
	}
	c.Gateway.sessions.BindTable(sess.PlayerID, req.TableID)

	c.PlayerID = sess.PlayerID
	c.TableID = req.TableID
	c.Table = t
	c.Gateway.mu.Lock()
	c.Gateway.byPlayer[sess.PlayerID] = c
	c.Gateway.mu.Unlock()

	if err := t.SubmitEvent(table.Event{Type: table.EventJoin, UserID: sess.PlayerID, DisplayName: sess.DisplayName}); err != nil {
		c.sendError(CodeInvalidAction, err.Error())
		return
	}
	c.send(serverEnvelope{Event: EvtAuthSuccess, Payload: authResultPayload{SessionToken: token}})
}

func (c *Connection) handleReconnect(raw json.RawMessage) {
	var req reconnectPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		c.sendError(CodeInvalidAction, "malformed REQ_RECONNECT payload")
		return
	}

	sess, err := c.Gateway.sessions.Rebind(c, req.AuthTicket, req.LastSequenceID)
	if err != nil {
		c.send(serverEnvelope{Event: EvtAuthFailure, Payload: authResultPayload{Code: CodeInvalidTicket, Message: err.Error()}})
		return
	}

	tableID := req.TableID
	if tableID == "" {
		tableID = sess.TableID
	}
	t, ok := c.Gateway.lobby.Table(tableID)
	if !ok {
		c.sendError(CodeTableNotFound, "no such table")
		return
	}

	c.PlayerID = sess.PlayerID
	c.TableID = tableID
	c.Table = t
	c.Gateway.mu.Lock()
	c.Gateway.byPlayer[sess.PlayerID] = c
	c.Gateway.mu.Unlock()

	if err := t.SubmitEvent(table.Event{Type: table.EventConnResume, UserID: sess.PlayerID}); err != nil {
		c.sendError(CodeInvalidAction, err.Error())
		return
	}
	c.send(serverEnvelope{Event: EvtAuthSuccess, Payload: authResultPayload{SessionToken: ""}})
}

func (c *Connection) handleSit(raw json.RawMessage) {
	if c.Table == nil {
		c.sendError(CodeTableNotFound, "not bound to a table")
		return
	}
	var req sitPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		c.sendError(CodeInvalidAction, "malformed REQ_SIT payload")
		return
	}
	err := c.Table.SubmitEvent(table.Event{
		Type:   table.EventSit,
		UserID: c.PlayerID,
		Chair:  req.SeatIndex,
		Amount: req.BuyIn,
	})
	if err != nil {
		c.sendError(codeForTableErr(err), err.Error())
	}
}

func (c *Connection) handleReady() {
	if c.Table == nil {
		c.sendError(CodeTableNotFound, "not bound to a table")
		return
	}
	if err := c.Table.SubmitEvent(table.Event{Type: table.EventReady, UserID: c.PlayerID}); err != nil {
		c.sendError(codeForTableErr(err), err.Error())
	}
}

func (c *Connection) handleAction(raw json.RawMessage) {
	if c.Table == nil {
		c.sendError(CodeTableNotFound, "not bound to a table")
		return
	}
	var req actionPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		c.sendError(CodeInvalidAction, "malformed REQ_ACTION payload")
		return
	}
	action, err := actionFromWire(req.Type)
	if err != nil {
		c.sendError(CodeInvalidAction, err.Error())
		return
	}
	if err := c.Table.SubmitEvent(table.Event{
		Type:   table.EventAction,
		UserID: c.PlayerID,
		Action: action,
		Amount: req.Amount,
	}); err != nil {
		c.sendError(codeForTableErr(err), err.Error())
	}
}

func (c *Connection) handleSocial(raw json.RawMessage) {
	if c.Table == nil {
		return
	}
	var req socialPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		return
	}
	c.Table.SubmitEvent(table.Event{
		Type:       table.EventSocial,
		UserID:     c.PlayerID,
		SocialType: req.Type,
		TargetSeat: req.TargetSeat,
	})
}

func (c *Connection) handleLeave() {
	if c.Table == nil {
		return
	}
	c.Table.SubmitEvent(table.Event{Type: table.EventStandUp, UserID: c.PlayerID})
	c.Gateway.lobby.UnbindPlayer(c.PlayerID)
	c.Table = nil
	c.TableID = ""
}

func actionFromWire(s string) (holdem.ActionType, error) {
	switch s {
	case "FOLD":
		return holdem.PlayerActionTypeFold, nil
	case "CHECK":
		return holdem.PlayerActionTypeCheck, nil
	case "CALL":
		return holdem.PlayerActionTypeCall, nil
	case "RAISE":
		return holdem.PlayerActionTypeRaise, nil
	case "ALL_IN":
		return holdem.PlayerActionTypeAllin, nil
	default:
		return 0, fmt.Errorf("unknown action type %q", s)
	}
}

func codeForTableErr(err error) string {
	switch {
	case errors.Is(err, table.ErrTableFull):
		return CodeTableFull
	case errors.Is(err, table.ErrSeatTaken):
		return CodeSeatTaken
	case errors.Is(err, table.ErrNotYourTurn):
		return CodeNotYourTurn
	case errors.Is(err, table.ErrInvalidBuyIn):
		return CodeInsufficientChips
	case errors.Is(err, table.ErrNotSeated):
		return CodeInvalidAction
	default:
		return CodeInvalidAction
	}
}

func (c *Connection) send(env serverEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.Gateway.log.Error().Err(err).Msg("failed to marshal envelope")
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Connection) sendError(code, message string) {
	c.send(serverEnvelope{Event: "ERROR", Payload: errorPayload{Code: code, Message: message}})
}

// sendSocial delivers a SOCIAL event through the drop-oldest outbox: a
// full social channel drops its oldest entry rather than blocking the
// table loop.
func (c *Connection) sendSocial(env serverEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case c.Social <- data:
		return
	default:
	}
	select {
	case <-c.Social:
	default:
	}
	select {
	case c.Social <- data:
	default:
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case message := <-c.Social:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.ID)
	if c.PlayerID != 0 {
		delete(g.byPlayer, c.PlayerID)
	}
	total := len(g.connections)
	g.mu.Unlock()

	g.sessions.Close(c)
	g.log.Info().Str("connId", c.ID).Int("total", total).Msg("client disconnected")
}

// broadcastToUser is the table.BroadcastFunc handed to every table this
// gateway creates: it delivers one event+payload to one player's current
// connection, dropping it silently if the player isn't currently online
// (their session survives the disconnect until its grace window lapses).
func (g *Gateway) broadcastToUser(userID uint64, event string, payload any) {
	g.mu.RLock()
	c := g.byPlayer[userID]
	g.mu.RUnlock()
	if c == nil {
		return
	}
	if event == "SOCIAL" {
		c.sendSocial(serverEnvelope{Event: event, Payload: payload})
		return
	}
	g.sessions.RecordDelivered(userID, 0)
	c.send(serverEnvelope{Event: event, Payload: payload})
}

// BroadcastFunc returns the callback to pass to lobby.CreateTable.
func (g *Gateway) BroadcastFunc() table.BroadcastFunc {
	return g.broadcastToUser
}
