package arena_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorbit/quoridor-server/internal/arena"
	"github.com/quorbit/quoridor-server/internal/game"
	"github.com/quorbit/quoridor-server/internal/proto"
	"github.com/quorbit/quoridor-server/internal/rating"
	"github.com/quorbit/quoridor-server/internal/store"
)

type fakeClient struct {
	id     string
	userID string

	mu   sync.Mutex
	sent []proto.Envelope
}

func newFake(id, userID string) *fakeClient {
	return &fakeClient{id: id, userID: userID}
}

func (f *fakeClient) ConnID() string      { return f.id }
func (f *fakeClient) UserID() string      { return f.userID }
func (f *fakeClient) DisplayName() string { return f.id }
func (f *fakeClient) Rating() int         { return 1200 }
func (f *fakeClient) Alive() bool         { return true }
func (f *fakeClient) Close()              {}
func (f *fakeClient) Send(env proto.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
}

func (f *fakeClient) envelopes() []proto.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]proto.Envelope, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeClient) lastOfType(typ string) (proto.Envelope, bool) {
	for _, e := range f.envelopes() {
		if e.Type == typ {
			return e, true
		}
	}
	return proto.Envelope{}, false
}

func newTestManager(t *testing.T) *arena.Manager {
	t.Helper()
	m := arena.NewManager(rating.NewService(store.NewMemoryStore()))
	// Short timings so timeout and teardown paths run inside the test.
	m.SetTimings(time.Hour, time.Hour)
	return m
}

func TestCreateRoom(t *testing.T) {
	m := newTestManager(t)
	a := newFake("conn-a", "u1")
	b := newFake("conn-b", "u2")

	r := m.CreateRoom(a, b, proto.ModeCustom)
	require.NotNil(t, r)
	assert.Equal(t, 1, m.RoomCount())

	got, ok := m.RoomFor("conn-a")
	require.True(t, ok)
	assert.Same(t, r, got)

	envA, ok := a.lastOfType(proto.EventGameStarted)
	require.True(t, ok)
	startedA := envA.Data.(proto.GameStarted)
	assert.Equal(t, game.RolePlayer1, startedA.Role)
	assert.Equal(t, "conn-b", startedA.Opponent.Name)
	assert.Equal(t, game.RolePlayer1, startedA.GameState.CurrentTurn)

	envB, ok := b.lastOfType(proto.EventGameStarted)
	require.True(t, ok)
	startedB := envB.Data.(proto.GameStarted)
	assert.Equal(t, game.RolePlayer2, startedB.Role)
	assert.Equal(t, "conn-a", startedB.Opponent.Name)
}

func TestHandleMove(t *testing.T) {
	m := newTestManager(t)
	a := newFake("conn-a", "u1")
	b := newFake("conn-b", "u2")
	m.CreateRoom(a, b, proto.ModeCustom)

	// Out of turn: player2 may not act first.
	err := m.HandleMove("conn-b", game.Position{Row: 7, Col: 4})
	assert.ErrorIs(t, err, arena.ErrNotYourTurn)

	// Unknown connection.
	err = m.HandleMove("nobody", game.Position{Row: 1, Col: 4})
	assert.ErrorIs(t, err, arena.ErrNoRoom)

	// Legal move broadcasts to both seats.
	require.NoError(t, m.HandleMove("conn-a", game.Position{Row: 1, Col: 4}))
	for _, c := range []*fakeClient{a, b} {
		env, ok := c.lastOfType(proto.EventGameStateUpdate)
		require.True(t, ok, "%s missed the update", c.id)
		upd := env.Data.(proto.GameStateUpdate)
		assert.Equal(t, game.Position{Row: 1, Col: 4}, upd.GameState.Player1.Position)
		assert.Equal(t, game.RolePlayer2, upd.GameState.CurrentTurn)
	}

	// Illegal move is rejected without a broadcast.
	updatesBefore := len(b.envelopes())
	err = m.HandleMove("conn-b", game.Position{Row: 4, Col: 4})
	assert.ErrorIs(t, err, game.ErrIllegalMove)
	assert.Len(t, b.envelopes(), updatesBefore)
}

func TestHandleWall(t *testing.T) {
	m := newTestManager(t)
	a := newFake("conn-a", "u1")
	b := newFake("conn-b", "u2")
	m.CreateRoom(a, b, proto.ModeCustom)

	w := game.Wall{Position: game.Position{Row: 3, Col: 3}, Orientation: game.Horizontal}
	require.NoError(t, m.HandleWall("conn-a", w))

	env, ok := b.lastOfType(proto.EventGameStateUpdate)
	require.True(t, ok)
	upd := env.Data.(proto.GameStateUpdate)
	require.Len(t, upd.GameState.Walls, 1)
	assert.Equal(t, w, upd.GameState.Walls[0])
	assert.Equal(t, game.WallsPerPlayer-1, upd.GameState.Player1.WallsRemaining)

	// Duplicate intersection from the other seat is rejected.
	err := m.HandleWall("conn-b", w)
	assert.ErrorIs(t, err, game.ErrIllegalWall)
}

func TestHandleForfeit(t *testing.T) {
	m := newTestManager(t)
	a := newFake("conn-a", "u1")
	b := newFake("conn-b", "u2")
	m.CreateRoom(a, b, proto.ModeCustom)

	require.NoError(t, m.HandleForfeit("conn-a"))

	for _, c := range []*fakeClient{a, b} {
		env, ok := c.lastOfType(proto.EventGameEnded)
		require.True(t, ok)
		ended := env.Data.(proto.GameEnded)
		assert.Equal(t, game.RolePlayer2, ended.Winner)
		assert.Equal(t, game.ReasonForfeit, ended.Reason)
	}

	// The room no longer accepts actions.
	err := m.HandleMove("conn-a", game.Position{Row: 1, Col: 4})
	assert.ErrorIs(t, err, arena.ErrRoomNotActive)
	err = m.HandleForfeit("conn-b")
	assert.ErrorIs(t, err, arena.ErrRoomNotActive)
}

func TestHandleTimeoutHint(t *testing.T) {
	m := newTestManager(t)
	a := newFake("conn-a", "u1")
	b := newFake("conn-b", "u2")
	m.CreateRoom(a, b, proto.ModeCustom)

	// Player1 is on turn; either side may report the timeout.
	require.NoError(t, m.HandleTimeout("conn-b"))

	env, ok := a.lastOfType(proto.EventGameEnded)
	require.True(t, ok)
	ended := env.Data.(proto.GameEnded)
	assert.Equal(t, game.RolePlayer2, ended.Winner)
	assert.Equal(t, game.ReasonTimeout, ended.Reason)

	// A late duplicate hint against the ended room is a quiet no-op.
	require.NoError(t, m.HandleTimeout("conn-a"))
}

func TestTurnTimerExpires(t *testing.T) {
	m := arena.NewManager(rating.NewService(store.NewMemoryStore()))
	m.SetTimings(30*time.Millisecond, 30*time.Millisecond)

	a := newFake("conn-a", "u1")
	b := newFake("conn-b", "u2")
	m.CreateRoom(a, b, proto.ModeCustom)

	require.Eventually(t, func() bool {
		_, ok := a.lastOfType(proto.EventGameEnded)
		return ok
	}, time.Second, 5*time.Millisecond)

	env, _ := a.lastOfType(proto.EventGameEnded)
	ended := env.Data.(proto.GameEnded)
	assert.Equal(t, game.RolePlayer2, ended.Winner, "player1 was on turn and timed out")
	assert.Equal(t, game.ReasonTimeout, ended.Reason)

	// Teardown follows after the grace delay.
	assert.Eventually(t, func() bool { return m.RoomCount() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := m.RoomFor("conn-a")
	assert.False(t, ok)
}

func TestActionReArmsTimer(t *testing.T) {
	m := arena.NewManager(rating.NewService(store.NewMemoryStore()))
	m.SetTimings(80*time.Millisecond, time.Hour)

	a := newFake("conn-a", "u1")
	b := newFake("conn-b", "u2")
	m.CreateRoom(a, b, proto.ModeCustom)

	// Keep acting faster than the timeout; the game must stay alive.
	moves := []struct {
		conn   string
		target game.Position
	}{
		{"conn-a", game.Position{Row: 1, Col: 4}},
		{"conn-b", game.Position{Row: 7, Col: 4}},
		{"conn-a", game.Position{Row: 2, Col: 4}},
		{"conn-b", game.Position{Row: 6, Col: 4}},
	}
	for _, mv := range moves {
		time.Sleep(40 * time.Millisecond)
		require.NoError(t, m.HandleMove(mv.conn, mv.target))
	}

	_, ended := a.lastOfType(proto.EventGameEnded)
	assert.False(t, ended, "re-armed timer must not have fired")
}

func TestHandleDisconnectForfeits(t *testing.T) {
	m := newTestManager(t)
	a := newFake("conn-a", "u1")
	b := newFake("conn-b", "u2")
	m.CreateRoom(a, b, proto.ModeCustom)

	m.HandleDisconnect("conn-a")

	env, ok := b.lastOfType(proto.EventGameEnded)
	require.True(t, ok)
	ended := env.Data.(proto.GameEnded)
	assert.Equal(t, game.RolePlayer2, ended.Winner)
	assert.Equal(t, game.ReasonForfeit, ended.Reason)

	// Disconnect of an unknown connection is ignored.
	m.HandleDisconnect("nobody")
}

func TestRankedGameUpdatesRatings(t *testing.T) {
	st := store.NewMemoryStore()
	u1, err := st.CreateUser(context.Background(), "alice", "x")
	require.NoError(t, err)
	u2, err := st.CreateUser(context.Background(), "bob", "x")
	require.NoError(t, err)

	m := arena.NewManager(rating.NewService(st))
	m.SetTimings(time.Hour, time.Hour)

	a := newFake("conn-a", u1.ID)
	b := newFake("conn-b", u2.ID)
	m.CreateRoom(a, b, proto.ModeRanked)

	require.NoError(t, m.HandleForfeit("conn-b"))

	// The write is async off the room path.
	require.Eventually(t, func() bool {
		r, _, err := st.RatingAndName(context.Background(), u1.ID)
		return err == nil && r != rating.DefaultRating
	}, time.Second, 5*time.Millisecond)

	winner, _ := st.FindByID(context.Background(), u1.ID)
	loser, _ := st.FindByID(context.Background(), u2.ID)
	assert.Equal(t, 1216, winner.Rating)
	assert.Equal(t, 1184, loser.Rating)
	assert.Equal(t, 1, winner.GamesPlayed)
	assert.Equal(t, 1, winner.GamesWon)
	assert.Equal(t, 1, loser.GamesPlayed)
	assert.Equal(t, 0, loser.GamesWon)
}

func TestCustomGameLeavesRatingsAlone(t *testing.T) {
	st := store.NewMemoryStore()
	u1, err := st.CreateUser(context.Background(), "carol", "x")
	require.NoError(t, err)
	u2, err := st.CreateUser(context.Background(), "dave", "x")
	require.NoError(t, err)

	m := arena.NewManager(rating.NewService(st))
	m.SetTimings(time.Hour, time.Hour)

	a := newFake("conn-a", u1.ID)
	b := newFake("conn-b", u2.ID)
	m.CreateRoom(a, b, proto.ModeCustom)

	require.NoError(t, m.HandleForfeit("conn-a"))

	time.Sleep(50 * time.Millisecond)
	winner, _ := st.FindByID(context.Background(), u2.ID)
	assert.Equal(t, rating.DefaultRating, winner.Rating)
	assert.Equal(t, 0, winner.GamesPlayed)
}

func TestGoalReachEndsRoom(t *testing.T) {
	m := newTestManager(t)
	a := newFake("conn-a", "u1")
	b := newFake("conn-b", "u2")
	m.CreateRoom(a, b, proto.ModeCustom)

	// Walk player1 straight down while player2 shuffles sideways out of the
	// lane. Player1's last step lands on row 8.
	p1Row, p2 := 0, game.Position{Row: 8, Col: 4}
	for p1Row < 7 {
		p1Row++
		require.NoError(t, m.HandleMove("conn-a", game.Position{Row: p1Row, Col: 4}))
		if p2.Col == 4 {
			p2.Col = 3
		} else if p2.Col == 3 {
			p2.Col = 2
		} else {
			p2.Col = 3
		}
		require.NoError(t, m.HandleMove("conn-b", p2))
	}
	require.NoError(t, m.HandleMove("conn-a", game.Position{Row: 8, Col: 4}))

	env, ok := b.lastOfType(proto.EventGameEnded)
	require.True(t, ok)
	ended := env.Data.(proto.GameEnded)
	assert.Equal(t, game.RolePlayer1, ended.Winner)
	assert.Equal(t, game.ReasonGoalReached, ended.Reason)
	assert.GreaterOrEqual(t, ended.DurationMs, int64(0))
}
