// internal/ws/handler.go
//
// Websocket endpoint and connection lifecycle supervision.
// Responsibilities:
//   - Upgrade authenticated requests and build the per-connection client
//     (identity plus rating snapshot from the user store).
//   - Dispatch inbound events to the arena and matchmaking engines; rules
//     rejections go back to the invoker only.
//   - Duplicate-login reconciliation: a second live connection for the same
//     account forfeits the stale connection's game, clears its queue slot,
//     notifies it, and closes it, as one sequence under the registry lock
//     so the stale connection cannot race the new one.
//   - Disconnect cleanup: queue removal and room forfeit.

package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/quorbit/quoridor-server/internal/arena"
	"github.com/quorbit/quoridor-server/internal/game"
	"github.com/quorbit/quoridor-server/internal/matchmaking"
	"github.com/quorbit/quoridor-server/internal/proto"
	"github.com/quorbit/quoridor-server/internal/store"
)

// Handler serves /ws and owns the live-session registry.
type Handler struct {
	arena *arena.Manager
	queue *matchmaking.Engine
	store store.Store

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*client // userID -> current connection
}

// NewHandler wires the transport to the engines and the user store.
func NewHandler(ar *arena.Manager, q *matchmaking.Engine, st store.Store) *Handler {
	return &Handler{
		arena: ar,
		queue: q,
		store: st,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser origin is enforced by the CORS layer; the socket
			// itself is gated by the auth middleware upstream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*client),
	}
}

// Handle upgrades an already-authenticated request. userID and username
// come from the JWT middleware; the core trusts them from here on.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request, userID, username string) {
	ratingValue, displayName, err := h.store.RatingAndName(r.Context(), userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("load user for socket")
		http.Error(w, `{"error":"unknown_user"}`, http.StatusUnauthorized)
		return
	}
	if displayName == "" {
		displayName = username
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	c := newClient(conn, uuid.New().String(), userID, displayName, ratingValue)
	h.register(c)
	log.Info().Str("conn", c.connID).Str("user", userID).Msg("websocket connected")

	go c.writePump()
	c.readPump(h.dispatch)

	h.disconnect(c)
}

// register installs the connection as the account's single live session,
// evicting any stale one first.
func (h *Handler) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.sessions[c.userID]; ok && old != c {
		h.evictLocked(old)
	}
	h.sessions[c.userID] = c
}

// evictLocked reconciles a superseded session: forfeit its game, clear its
// queue slot, tell it why, close it. Caller holds h.mu.
func (h *Handler) evictLocked(old *client) {
	log.Info().Str("conn", old.connID).Str("user", old.userID).Msg("duplicate login, evicting stale session")
	h.arena.HandleDisconnect(old.connID)
	h.queue.DropConnection(old.connID)
	old.Send(proto.Envelope{Type: proto.EventError, Data: proto.ErrorPayload{
		Message: "logged in from another session",
	}})
	old.Close()
}

// disconnect runs transport-level teardown after the read loop exits.
func (h *Handler) disconnect(c *client) {
	h.mu.Lock()
	if h.sessions[c.userID] == c {
		delete(h.sessions, c.userID)
	}
	h.mu.Unlock()

	c.Close()
	h.queue.DropConnection(c.connID)
	h.arena.HandleDisconnect(c.connID)
	log.Info().Str("conn", c.connID).Str("user", c.userID).Msg("websocket disconnected")
}

// dispatch routes one inbound frame. Only the invoker ever sees an error.
func (h *Handler) dispatch(c *client, msg inbound) {
	var err error
	switch msg.Type {
	case proto.EventMove:
		var p proto.MovePayload
		if err = decode(msg, &p); err == nil {
			err = h.arena.HandleMove(c.connID, p.Target)
		}
	case proto.EventPlaceWall:
		var p proto.WallPayload
		if err = decode(msg, &p); err == nil {
			err = h.arena.HandleWall(c.connID, p.Wall)
		}
	case proto.EventForfeit:
		err = h.arena.HandleForfeit(c.connID)
	case proto.EventTurnTimeout:
		err = h.arena.HandleTimeout(c.connID)
	case proto.EventJoinRanked:
		h.queue.Enqueue(c, proto.ModeRanked)
	case proto.EventJoinCustom:
		h.queue.Enqueue(c, proto.ModeCustom)
	case proto.EventLeaveQueue:
		h.queue.Dequeue(c.connID)
	default:
		log.Debug().Str("conn", c.connID).Str("type", msg.Type).Msg("unknown event")
		return
	}

	if err != nil {
		c.Send(proto.Envelope{Type: proto.EventError, Data: proto.ErrorPayload{Message: err.Error()}})
	}
}

// decode unmarshals a frame payload, mapping bad input onto the rules
// errors so clients see one rejection vocabulary.
func decode(msg inbound, v any) error {
	if len(msg.Data) == 0 {
		return badPayload(msg.Type)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return badPayload(msg.Type)
	}
	return nil
}

func badPayload(eventType string) error {
	switch eventType {
	case proto.EventPlaceWall:
		return game.ErrIllegalWall
	default:
		return game.ErrIllegalMove
	}
}

// SessionCount reports live authenticated sessions (diagnostics).
func (h *Handler) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown closes every live session (server stop).
func (h *Handler) Shutdown(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.sessions {
		c.Close()
	}
	h.sessions = make(map[string]*client)
}
