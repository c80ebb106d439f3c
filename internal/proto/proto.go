// internal/proto/proto.go
//
// Wire-level vocabulary shared by the session core and the transport.
// Defines:
//   - Envelope: the single JSON message shape in both directions.
//   - Event name constants for everything the core consumes and produces.
//   - Typed payload structs for the produced events.
//   - Client: the authenticated-connection handle the engines send through.
//
// Notes:
//   - Encoding is plain JSON; the transport (internal/ws) does the marshaling.
//   - The core never sees a raw socket, only a Client.

package proto

import "github.com/quorbit/quoridor-server/internal/game"

// Envelope is the message frame for every event in either direction.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Mode selects a matchmaking pool and whether a game affects ratings.
type Mode string

const (
	ModeRanked Mode = "ranked"
	ModeCustom Mode = "custom"
)

// Events consumed by the core.
const (
	EventMove        = "move"
	EventPlaceWall   = "placeWall"
	EventForfeit     = "forfeit"
	EventTurnTimeout = "turnTimeout"
	EventJoinRanked  = "joinRankedQueue"
	EventJoinCustom  = "joinCustomQueue"
	EventLeaveQueue  = "leaveQueue"
)

// Events produced by the core.
const (
	EventGameStarted     = "gameStarted"
	EventGameStateUpdate = "gameStateUpdate"
	EventGameEnded       = "gameEnded"
	EventQueueJoined     = "queueJoined"
	EventQueueLeft       = "queueLeft"
	EventMatchFound      = "matchFound"
	EventError           = "error"
)

// OpponentSummary is the perspective-appropriate view of the other player.
type OpponentSummary struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
	Tier   string `json:"tier"`
}

// GameStarted is sent to each participant with their own role.
type GameStarted struct {
	Role      game.Role       `json:"role"`
	GameState game.State      `json:"gameState"`
	Opponent  OpponentSummary `json:"opponentSummary"`
}

// GameStateUpdate is broadcast to a room after every accepted action.
type GameStateUpdate struct {
	GameState game.State `json:"gameState"`
}

// GameEnded is broadcast to a room when its game reaches a terminal state.
type GameEnded struct {
	Winner     game.Role      `json:"winner"`
	Reason     game.EndReason `json:"reason"`
	DurationMs int64          `json:"durationMs"`
}

// QueueJoined doubles as the still-waiting notice: same shape, fresher size.
type QueueJoined struct {
	Mode      Mode `json:"mode"`
	QueueSize int  `json:"queueSize"`
}

// MatchFound is sent to both sides the moment a pairing is confirmed.
type MatchFound struct {
	OpponentName string `json:"opponentName"`
}

// ErrorPayload carries action-rejection text to the invoker only.
type ErrorPayload struct {
	Message string `json:"message"`
}

// MovePayload / WallPayload are the inbound action bodies.
type MovePayload struct {
	Target game.Position `json:"target"`
}
type WallPayload struct {
	Wall game.Wall `json:"wall"`
}

// Client is an authenticated live connection as the core sees it.
// Produced once at handshake time by the transport and threaded through
// every call; identity is trusted (the transport already validated it).
type Client interface {
	// ConnID is unique per socket, UserID per account.
	ConnID() string
	UserID() string
	DisplayName() string
	Rating() int

	// Send enqueues an event; it never blocks the caller.
	Send(env Envelope)

	// Alive reports whether the underlying socket is still usable.
	Alive() bool

	// Close tears the socket down. Safe to call more than once.
	Close()
}
