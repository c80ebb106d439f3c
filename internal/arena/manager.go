// internal/arena/manager.go
//
// Session/Room Manager: owns every live room, routes player actions through
// the rules engine, arms the turn timer, and settles forfeits, timeouts, and
// disconnects.
// Responsibilities:
//   - CreateRoom for confirmed pairings; per-participant gameStarted events.
//   - HandleMove / HandleWall: turn checks, rules delegation, broadcast on
//     success, error back to the invoker only on failure.
//   - HandleForfeit / HandleTimeout / HandleDisconnect terminal transitions.
//   - Grace-delayed teardown so clients can read the final state.
//   - Ranked results handed to the rating service off the action path.
//
// Concurrency: the rooms index is guarded by the manager RWMutex; each
// room's state by the room mutex. No action path takes two room locks.

package arena

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quorbit/quoridor-server/internal/game"
	"github.com/quorbit/quoridor-server/internal/proto"
	"github.com/quorbit/quoridor-server/internal/rating"
)

// Default timings; see SetTimings.
const (
	DefaultTurnTimeout = 60 * time.Second
	DefaultGraceDelay  = 10 * time.Second
)

// Action rejections surfaced to the invoker.
var (
	ErrNotYourTurn   = errors.New("not your turn")
	ErrRoomNotActive = errors.New("room is not active")
	ErrNoRoom        = errors.New("not in a room")
)

// Manager owns the live room set.
type Manager struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	roomByConn map[string]string // connID -> roomID

	ratings     *rating.Service
	turnTimeout time.Duration
	graceDelay  time.Duration
}

// NewManager creates a manager with production timings.
func NewManager(ratings *rating.Service) *Manager {
	return &Manager{
		rooms:       make(map[string]*Room),
		roomByConn:  make(map[string]string),
		ratings:     ratings,
		turnTimeout: DefaultTurnTimeout,
		graceDelay:  DefaultGraceDelay,
	}
}

// SetTimings overrides the turn timeout and teardown grace delay.
// Intended for configuration and tests; call before any room exists.
func (m *Manager) SetTimings(turnTimeout, graceDelay time.Duration) {
	m.turnTimeout = turnTimeout
	m.graceDelay = graceDelay
}

// CreateRoom seats a confirmed pairing, arms the turn timer, and tells each
// participant their own role with a summary of the other side.
func (m *Manager) CreateRoom(a, b proto.Client, mode proto.Mode) *Room {
	r := newRoom(a, b, mode)

	m.mu.Lock()
	m.rooms[r.ID] = r
	m.roomByConn[a.ConnID()] = r.ID
	m.roomByConn[b.ConnID()] = r.ID
	m.mu.Unlock()

	r.mu.Lock()
	m.armTimerLocked(r)
	st := r.state
	r.mu.Unlock()

	a.Send(proto.Envelope{Type: proto.EventGameStarted, Data: proto.GameStarted{
		Role: game.RolePlayer1, GameState: st, Opponent: summarize(b),
	}})
	b.Send(proto.Envelope{Type: proto.EventGameStarted, Data: proto.GameStarted{
		Role: game.RolePlayer2, GameState: st, Opponent: summarize(a),
	}})

	log.Info().
		Str("room", r.ID).Str("mode", string(mode)).
		Str("player1", a.UserID()).Str("player2", b.UserID()).
		Msg("room created")
	return r
}

func summarize(c proto.Client) proto.OpponentSummary {
	return proto.OpponentSummary{
		Name:   c.DisplayName(),
		Rating: c.Rating(),
		Tier:   rating.TierFor(c.Rating()),
	}
}

// RoomFor resolves the room a connection is seated in.
func (m *Manager) RoomFor(connID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.roomByConn[connID]
	if !ok {
		return nil, false
	}
	r, ok := m.rooms[id]
	return r, ok
}

// HandleMove applies a pawn move for connID's seat.
func (m *Manager) HandleMove(connID string, target game.Position) error {
	return m.applyAction(connID, func(s game.State) (game.State, error) {
		return game.ApplyMove(s, target)
	})
}

// HandleWall applies a wall placement for connID's seat.
func (m *Manager) HandleWall(connID string, w game.Wall) error {
	return m.applyAction(connID, func(s game.State) (game.State, error) {
		return game.ApplyWall(s, w)
	})
}

// applyAction runs one state-changing action under the room lock: turn and
// liveness checks, rules delegation, then broadcast + timer re-arm on
// success. A rules rejection leaves the room untouched and is returned to
// the caller (the transport sends it to the invoker only).
func (m *Manager) applyAction(connID string, apply func(game.State) (game.State, error)) error {
	r, ok := m.RoomFor(connID)
	if !ok {
		return ErrNoRoom
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return ErrRoomNotActive
	}
	p := r.players[connID]
	if p == nil {
		return ErrNoRoom
	}
	if p.role != r.state.CurrentTurn {
		return ErrNotYourTurn
	}

	next, err := apply(r.state)
	if err != nil {
		return err
	}
	r.state = next

	if next.GameOver.IsOver {
		m.endLocked(r, next.GameOver.Winner, next.GameOver.Reason)
		return nil
	}
	m.armTimerLocked(r)
	r.broadcastLocked(proto.Envelope{Type: proto.EventGameStateUpdate, Data: proto.GameStateUpdate{GameState: next}})
	return nil
}

// HandleForfeit ends the room immediately with the opposing seat as winner.
func (m *Manager) HandleForfeit(connID string) error {
	r, ok := m.RoomFor(connID)
	if !ok {
		return ErrNoRoom
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return ErrRoomNotActive
	}
	p := r.players[connID]
	if p == nil {
		return ErrNoRoom
	}
	m.endLocked(r, p.role.Opponent(), game.ReasonForfeit)
	return nil
}

// HandleTimeout is the client-observed timeout hint. The authoritative
// timer enforces the same outcome independently; whichever fires first
// wins, the other is a no-op against the ended room.
func (m *Manager) HandleTimeout(connID string) error {
	r, ok := m.RoomFor(connID)
	if !ok {
		return ErrNoRoom
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil
	}
	if r.players[connID] == nil {
		return ErrNoRoom
	}
	m.endLocked(r, r.state.CurrentTurn.Opponent(), game.ReasonTimeout)
	return nil
}

// HandleDisconnect settles a dropped connection: if it was seated in an
// active room, the remaining player wins by forfeit.
func (m *Manager) HandleDisconnect(connID string) {
	r, ok := m.RoomFor(connID)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	p := r.players[connID]
	if p == nil {
		return
	}
	log.Info().Str("room", r.ID).Str("conn", connID).Msg("participant disconnected, forfeiting")
	m.endLocked(r, p.role.Opponent(), game.ReasonForfeit)
}

// armTimerLocked (re)arms the single-shot turn timer. Caller holds r.mu.
func (m *Manager) armTimerLocked(r *Room) {
	r.stopTimerLocked()
	roomID := r.ID
	r.turnTimer = time.AfterFunc(m.turnTimeout, func() { m.timerExpired(roomID) })
}

// timerExpired fires from the timer goroutine; a stale fire against an
// already-ended room must be a no-op.
func (m *Manager) timerExpired(roomID string) {
	m.mu.RLock()
	r, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	loser := r.state.CurrentTurn
	log.Info().Str("room", r.ID).Str("role", string(loser)).Msg("turn timer expired")
	m.endLocked(r, loser.Opponent(), game.ReasonTimeout)
}

// endLocked freezes the game, broadcasts the result, settles ratings for
// ranked games, and schedules teardown after the grace delay. Caller holds
// r.mu.
func (m *Manager) endLocked(r *Room, winner game.Role, reason game.EndReason) {
	r.active = false
	r.stopTimerLocked()
	r.state = game.Finish(r.state, winner, reason)

	duration := time.Since(r.startedAt)
	r.broadcastLocked(proto.Envelope{Type: proto.EventGameEnded, Data: proto.GameEnded{
		Winner:     winner,
		Reason:     reason,
		DurationMs: duration.Milliseconds(),
	}})
	log.Info().
		Str("room", r.ID).Str("winner", string(winner)).Str("reason", string(reason)).
		Dur("duration", duration).
		Msg("game ended")

	// Ratings only for ranked games between two identified accounts.
	// The store write is async so it can never block the room path.
	if r.Mode == proto.ModeRanked {
		winnerSeat, loserSeat := r.byRole(winner), r.byRole(winner.Opponent())
		if winnerSeat != nil && loserSeat != nil &&
			winnerSeat.client.UserID() != "" && loserSeat.client.UserID() != "" {
			go m.ratings.RecordResult(winnerSeat.client.UserID(), loserSeat.client.UserID())
		}
	}

	roomID := r.ID
	time.AfterFunc(m.graceDelay, func() { m.removeRoom(roomID) })
}

// removeRoom drops the room and its connection index entries.
func (m *Manager) removeRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return
	}
	for connID := range r.players {
		if m.roomByConn[connID] == roomID {
			delete(m.roomByConn, connID)
		}
	}
	delete(m.rooms, roomID)
	log.Debug().Str("room", roomID).Msg("room removed")
}

// RoomCount reports the number of live rooms (diagnostics and tests).
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Stats summarizes the live room set for the diagnostics endpoint.
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	active := 0
	for _, r := range m.rooms {
		if r.Active() {
			active++
		}
	}
	return map[string]any{
		"rooms":       len(m.rooms),
		"activeRooms": active,
	}
}
