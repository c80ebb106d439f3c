package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorbit/quoridor-server/internal/arena"
	"github.com/quorbit/quoridor-server/internal/matchmaking"
	"github.com/quorbit/quoridor-server/internal/proto"
	"github.com/quorbit/quoridor-server/internal/rating"
	"github.com/quorbit/quoridor-server/internal/store"
	"github.com/quorbit/quoridor-server/internal/ws"
)

// envelope mirrors the wire frame with the payload kept raw for the test
// to decode per event type.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type harness struct {
	store  store.Store
	server *httptest.Server
}

// newHarness wires store, engines, and transport the way main does, and
// serves /ws with identity taken from the username query parameter.
func newHarness(t *testing.T) *harness {
	t.Helper()
	st := store.NewMemoryStore()

	rooms := arena.NewManager(rating.NewService(st))
	rooms.SetTimings(time.Hour, time.Hour)

	queue := matchmaking.NewEngine(func(a, b proto.Client, mode proto.Mode) {
		a.Send(proto.Envelope{Type: proto.EventMatchFound, Data: proto.MatchFound{OpponentName: b.DisplayName()}})
		b.Send(proto.Envelope{Type: proto.EventMatchFound, Data: proto.MatchFound{OpponentName: a.DisplayName()}})
		rooms.CreateRoom(a, b, mode)
	})
	t.Cleanup(queue.Stop)

	h := ws.NewHandler(rooms, queue, st)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := r.URL.Query().Get("username")
		u, err := st.FindByUsername(r.Context(), username)
		if err != nil {
			http.Error(w, "unknown user", http.StatusUnauthorized)
			return
		}
		h.Handle(w, r, u.ID, u.Username)
	}))
	t.Cleanup(srv.Close)

	return &harness{store: st, server: srv}
}

func (h *harness) createUser(t *testing.T, username string) {
	t.Helper()
	_, err := h.store.CreateUser(context.Background(), username, "hash")
	require.NoError(t, err)
}

func (h *harness) dial(t *testing.T, username string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/?username=" + username
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// await reads frames until one of the wanted type arrives, skipping
// interleaved events (still-waiting notices, state updates).
func await(t *testing.T, conn *websocket.Conn, wanted string) envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var env envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", wanted)
		if env.Type == wanted {
			return env
		}
	}
	t.Fatalf("no %s frame before deadline", wanted)
	return envelope{}
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": typ, "data": data}))
}

func TestQueueToGameOverSocket(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "alice")
	h.createUser(t, "bob")

	alice := h.dial(t, "alice")
	bob := h.dial(t, "bob")

	send(t, alice, proto.EventJoinCustom, nil)
	env := await(t, alice, proto.EventQueueJoined)
	var joined proto.QueueJoined
	require.NoError(t, json.Unmarshal(env.Data, &joined))
	assert.Equal(t, proto.ModeCustom, joined.Mode)
	assert.Equal(t, 1, joined.QueueSize)

	send(t, bob, proto.EventJoinCustom, nil)

	for _, conn := range []*websocket.Conn{alice, bob} {
		env := await(t, conn, proto.EventMatchFound)
		var found proto.MatchFound
		require.NoError(t, json.Unmarshal(env.Data, &found))
		assert.NotEmpty(t, found.OpponentName)
	}

	env = await(t, alice, proto.EventGameStarted)
	var startedA proto.GameStarted
	require.NoError(t, json.Unmarshal(env.Data, &startedA))
	env = await(t, bob, proto.EventGameStarted)
	var startedB proto.GameStarted
	require.NoError(t, json.Unmarshal(env.Data, &startedB))

	require.NotEqual(t, startedA.Role, startedB.Role)
	assert.Equal(t, startedA.Opponent.Name, "bob")
	assert.Equal(t, startedB.Opponent.Name, "alice")

	// The player1 seat moves; both sockets see the update.
	first, second := alice, bob
	if startedB.Role == "player1" {
		first, second = bob, alice
	}
	send(t, first, proto.EventMove, map[string]any{"target": map[string]int{"row": 1, "col": 4}})
	for _, conn := range []*websocket.Conn{first, second} {
		env := await(t, conn, proto.EventGameStateUpdate)
		var upd proto.GameStateUpdate
		require.NoError(t, json.Unmarshal(env.Data, &upd))
		assert.Equal(t, 1, upd.GameState.Player1.Position.Row)
	}

	// Forfeit finishes the game for both.
	send(t, second, proto.EventForfeit, nil)
	for _, conn := range []*websocket.Conn{first, second} {
		env := await(t, conn, proto.EventGameEnded)
		var ended proto.GameEnded
		require.NoError(t, json.Unmarshal(env.Data, &ended))
		assert.Equal(t, "forfeit", string(ended.Reason))
	}
}

func TestErrorGoesToInvokerOnly(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "alice")
	h.createUser(t, "bob")

	alice := h.dial(t, "alice")
	bob := h.dial(t, "bob")
	send(t, alice, proto.EventJoinCustom, nil)
	send(t, bob, proto.EventJoinCustom, nil)

	env := await(t, alice, proto.EventGameStarted)
	var started proto.GameStarted
	require.NoError(t, json.Unmarshal(env.Data, &started))
	await(t, bob, proto.EventGameStarted)

	offTurn := bob
	if started.Role != "player1" {
		offTurn = alice
	}

	// Acting out of turn earns the invoker an error frame.
	send(t, offTurn, proto.EventMove, map[string]any{"target": map[string]int{"row": 1, "col": 4}})
	errEnv := await(t, offTurn, proto.EventError)
	var perr proto.ErrorPayload
	require.NoError(t, json.Unmarshal(errEnv.Data, &perr))
	assert.Contains(t, perr.Message, "turn")
}

func TestLeaveQueue(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "alice")
	alice := h.dial(t, "alice")

	send(t, alice, proto.EventJoinRanked, nil)
	await(t, alice, proto.EventQueueJoined)

	send(t, alice, proto.EventLeaveQueue, nil)
	await(t, alice, proto.EventQueueLeft)
}

func TestDuplicateLoginEvictsOldSession(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "alice")

	old := h.dial(t, "alice")
	fresh := h.dial(t, "alice")

	// The stale socket is told why and then closed by the server.
	env := await(t, old, proto.EventError)
	var perr proto.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &perr))
	assert.Contains(t, perr.Message, "another session")

	_ = old.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var discard envelope
		if err := old.ReadJSON(&discard); err != nil {
			break // closed as expected
		}
	}

	// The fresh session keeps working.
	send(t, fresh, proto.EventJoinRanked, nil)
	await(t, fresh, proto.EventQueueJoined)
}

func TestMalformedPayloadIsRejectedPerEvent(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "alice")
	h.createUser(t, "bob")

	alice := h.dial(t, "alice")
	bob := h.dial(t, "bob")
	send(t, alice, proto.EventJoinCustom, nil)
	send(t, bob, proto.EventJoinCustom, nil)
	await(t, alice, proto.EventGameStarted)
	await(t, bob, proto.EventGameStarted)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"placeWall","data":"nonsense"}`)))
	env := await(t, alice, proto.EventError)
	var perr proto.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &perr))
	assert.Contains(t, perr.Message, "wall")
}
