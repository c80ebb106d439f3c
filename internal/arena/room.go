// internal/arena/room.go
//
// A Room is one live game: two participants, the authoritative game state,
// and the turn timer. Rooms are created by the Manager and mutated only
// under their own mutex; once the game is over the state is frozen and
// every further action is rejected.

package arena

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quorbit/quoridor-server/internal/game"
	"github.com/quorbit/quoridor-server/internal/proto"
)

// participant binds a connection to its seat.
type participant struct {
	client proto.Client
	role   game.Role
}

// Room is exclusively owned by the Manager.
type Room struct {
	ID   string
	Mode proto.Mode

	mu        sync.Mutex
	state     game.State
	players   map[string]*participant // connID -> seat
	turnTimer *time.Timer
	active    bool
	startedAt time.Time
}

// newRoom seats a as player1 and b as player2 over a fresh initial state.
func newRoom(a, b proto.Client, mode proto.Mode) *Room {
	r := &Room{
		ID:        uuid.New().String(),
		Mode:      mode,
		state:     game.NewState(),
		players:   make(map[string]*participant, 2),
		active:    true,
		startedAt: time.Now(),
	}
	r.players[a.ConnID()] = &participant{client: a, role: game.RolePlayer1}
	r.players[b.ConnID()] = &participant{client: b, role: game.RolePlayer2}
	return r
}

// State returns a copy of the current game state.
func (r *Room) State() game.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Active reports whether the room still accepts actions.
func (r *Room) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// byRole finds the participant seated at role. Caller holds r.mu.
func (r *Room) byRole(role game.Role) *participant {
	for _, p := range r.players {
		if p.role == role {
			return p
		}
	}
	return nil
}

// broadcastLocked sends env to every participant. Caller holds r.mu;
// Client.Send never blocks, so holding the lock here is safe.
func (r *Room) broadcastLocked(env proto.Envelope) {
	for _, p := range r.players {
		p.client.Send(env)
	}
}

// stopTimerLocked disarms the turn timer. Caller holds r.mu. A timer that
// already fired is harmless: its callback re-checks active.
func (r *Room) stopTimerLocked() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
}
