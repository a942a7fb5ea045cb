package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/tickforge/tickforge/internal/config"
	"github.com/tickforge/tickforge/internal/core/ecs"
	"github.com/tickforge/tickforge/internal/core/engine"
	"github.com/tickforge/tickforge/internal/core/events/bus"
	"github.com/tickforge/tickforge/internal/core/systems"
)

type testWorld struct {
	srv   *Server
	store *ecs.Store
	ts    *httptest.Server
}

func newTestWorld(t *testing.T, mutate func(*config.ServerConfig)) *testWorld {
	t.Helper()

	cfg := config.Default().Server
	cfg.ClientTimeout = 0 // no read deadlines or pings in tests
	if mutate != nil {
		mutate(&cfg)
	}

	b := bus.New(nil)
	store := ecs.NewStore(b, nil)
	loop := engine.NewLoop(store, b, nil)
	srv := New(cfg, store, b, loop, nil)

	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(ts.Close)

	return &testWorld{srv: srv, store: store, ts: ts}
}

func (w *testWorld) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(w.ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Outbound
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func (w *testWorld) queuedInputs() int {
	w.srv.mu.Lock()
	defer w.srv.mu.Unlock()
	return w.srv.pending.Len()
}

func join(t *testing.T, conn *websocket.Conn, playerID string) Outbound {
	t.Helper()
	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgJoin, PlayerID: playerID}))
	return readMessage(t, conn)
}

func TestJoinCreatesPlayerEntity(t *testing.T) {
	w := newTestWorld(t, nil)
	conn := w.dial(t)

	msg := join(t, conn, "alice")
	require.Equal(t, MsgPlayerJoined, msg.Type)
	require.Equal(t, "alice", msg.PlayerID)
	require.NotZero(t, msg.EntityID)

	require.True(t, w.store.HasEntity(msg.EntityID))
	require.True(t, w.store.HasComponent(msg.EntityID, ecs.ComponentTransform))
	require.True(t, w.store.HasComponent(msg.EntityID, ecs.ComponentInput))

	col, ok := ecs.Get[*ecs.Collider](w.store, msg.EntityID)
	require.True(t, ok)
	require.Equal(t, ecs.LayerPlayer, col.Layer)
}

func TestJoinRejectsDuplicatePlayerID(t *testing.T) {
	w := newTestWorld(t, nil)

	first := w.dial(t)
	require.Equal(t, MsgPlayerJoined, join(t, first, "alice").Type)

	second := w.dial(t)
	msg := join(t, second, "alice")
	require.Equal(t, MsgError, msg.Type)
	require.Contains(t, msg.Message, "already connected")
}

func TestJoinRequiresPlayerID(t *testing.T) {
	w := newTestWorld(t, nil)
	conn := w.dial(t)

	msg := join(t, conn, "")
	require.Equal(t, MsgError, msg.Type)
}

func TestStaleInputIsDropped(t *testing.T) {
	w := newTestWorld(t, nil)
	conn := w.dial(t)
	join(t, conn, "alice")

	send := func(ts int64, key string) {
		require.NoError(t, conn.WriteJSON(Inbound{
			Type:      MsgInput,
			Timestamp: ts,
			Keys:      map[string]bool{key: true},
		}))
	}

	send(100, "right")
	require.Eventually(t, func() bool { return w.queuedInputs() == 1 },
		time.Second, 5*time.Millisecond)

	send(100, "up") // same timestamp: stale, dropped
	send(150, "left")
	require.Eventually(t, func() bool { return w.queuedInputs() == 2 },
		time.Second, 5*time.Millisecond)
	require.Equal(t, 2, w.queuedInputs())
}

func TestDrainAppliesInputsToComponent(t *testing.T) {
	w := newTestWorld(t, nil)
	conn := w.dial(t)
	joined := join(t, conn, "alice")

	require.NoError(t, conn.WriteJSON(Inbound{
		Type:      MsgInput,
		Timestamp: 100,
		Keys:      map[string]bool{"right": true, "space": true},
	}))
	require.Eventually(t, func() bool { return w.queuedInputs() == 1 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, w.srv.drainInputs(0, nil))
	require.Zero(t, w.queuedInputs())

	in, ok := ecs.Get[*ecs.Input](w.store, joined.EntityID)
	require.True(t, ok)
	require.True(t, in.Keys["right"])
	require.True(t, in.Keys["space"])

	// the next drained input replaces the key set, it does not merge
	require.NoError(t, conn.WriteJSON(Inbound{
		Type:      MsgInput,
		Timestamp: 200,
		Keys:      map[string]bool{"left": true},
	}))
	require.Eventually(t, func() bool { return w.queuedInputs() == 1 },
		time.Second, 5*time.Millisecond)
	require.NoError(t, w.srv.drainInputs(0, nil))

	require.True(t, in.Keys["left"])
	require.False(t, in.Keys["right"])
}

func TestInputBeforeJoinIsAnError(t *testing.T) {
	w := newTestWorld(t, nil)
	conn := w.dial(t)

	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgInput, Timestamp: 1}))
	msg := readMessage(t, conn)
	require.Equal(t, MsgError, msg.Type)
}

func TestMalformedMessageKeepsConnectionAlive(t *testing.T) {
	w := newTestWorld(t, nil)
	conn := w.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readMessage(t, conn)
	require.Equal(t, MsgError, msg.Type)

	// the connection survives and a join still works
	require.Equal(t, MsgPlayerJoined, join(t, conn, "alice").Type)
}

func TestLeaveDestroysEntityAndBroadcasts(t *testing.T) {
	w := newTestWorld(t, nil)

	watcher := w.dial(t)
	require.Equal(t, MsgPlayerJoined, join(t, watcher, "watcher").Type)

	conn := w.dial(t)
	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgJoin, PlayerID: "alice"}))

	joined := readMessage(t, watcher) // watcher sees alice arrive
	require.Equal(t, MsgPlayerJoined, joined.Type)
	require.Equal(t, "alice", joined.PlayerID)

	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgLeave}))

	left := readMessage(t, watcher)
	require.Equal(t, MsgPlayerLeft, left.Type)
	require.Equal(t, "alice", left.PlayerID)

	require.Eventually(t, func() bool { return !w.store.HasEntity(joined.EntityID) },
		time.Second, 5*time.Millisecond)
}

func TestDisconnectCleansUpPlayer(t *testing.T) {
	w := newTestWorld(t, nil)

	conn := w.dial(t)
	joined := join(t, conn, "alice")
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return !w.store.HasEntity(joined.EntityID) },
		time.Second, 5*time.Millisecond)

	// the player id is free again for a new connection
	again := w.dial(t)
	require.Equal(t, MsgPlayerJoined, join(t, again, "alice").Type)
}

func TestMaxClients(t *testing.T) {
	w := newTestWorld(t, func(cfg *config.ServerConfig) { cfg.MaxClients = 1 })

	first := w.dial(t)
	require.Equal(t, MsgPlayerJoined, join(t, first, "alice").Type)

	second := w.dial(t)
	msg := readMessage(t, second)
	require.Equal(t, MsgError, msg.Type)
	require.Contains(t, msg.Message, "maximum clients")
}

func TestBroadcastStateReachesClients(t *testing.T) {
	w := newTestWorld(t, nil)

	conn := w.dial(t)
	joined := join(t, conn, "alice")

	w.srv.captureState() // loop is stopped, so extracting here is safe
	w.srv.broadcastState()

	msg := readMessage(t, conn)
	require.Equal(t, MsgGameState, msg.Type)
	require.NotNil(t, msg.Data)
	require.NotEmpty(t, msg.Data.Checksum)
	require.Len(t, msg.Data.Entities, 1)
	require.Equal(t, joined.EntityID, msg.Data.Entities[0].ID)
}

func TestInputSyncSystemRegisteredFirst(t *testing.T) {
	w := newTestWorld(t, nil)
	require.Equal(t, []string{InputSyncName}, w.srv.loop.Systems())
}

func TestLeaveBeforeJoinIsAnError(t *testing.T) {
	w := newTestWorld(t, nil)
	conn := w.dial(t)

	require.NoError(t, conn.WriteJSON(Inbound{Type: MsgLeave}))
	msg := readMessage(t, conn)
	require.Equal(t, MsgError, msg.Type)
	require.Contains(t, msg.Message, "player not found")
}

func TestBroadcastWithoutSnapshotSendsNothing(t *testing.T) {
	w := newTestWorld(t, nil)
	conn := w.dial(t)
	join(t, conn, "alice")

	// no tick has run, so there is no snapshot to send yet
	w.srv.broadcastState()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestSnapshotCapturedOnEngineTick(t *testing.T) {
	w := newTestWorld(t, nil)
	conn := w.dial(t)
	joined := join(t, conn, "alice")

	w.srv.loop.Start()
	require.Eventually(t, func() bool {
		w.srv.stateMu.RLock()
		defer w.srv.stateMu.RUnlock()
		return w.srv.latest != nil
	}, time.Second, 5*time.Millisecond)
	w.srv.loop.Stop()

	w.srv.broadcastState()
	msg := readMessage(t, conn)
	require.Equal(t, MsgGameState, msg.Type)
	require.Len(t, msg.Data.Entities, 1)
	require.Equal(t, joined.EntityID, msg.Data.Entities[0].ID)
}

// Broadcasting while the simulation runs must only ever touch the cached
// snapshot, never live components; the snapshots a client sees are
// consistent and advance with the simulation.
func TestBroadcastWhileSimulationRuns(t *testing.T) {
	w := newTestWorld(t, nil)

	id, err := w.store.CreateEntity()
	require.NoError(t, err)
	require.NoError(t, w.store.AddComponent(id, ecs.NewTransform(0, 0)))
	require.NoError(t, w.store.AddComponent(id, &ecs.Velocity{Linear: ecs.Vec2{X: 50}}))
	w.srv.loop.AddSystem(systems.NewMovement(w.store))

	conn := w.dial(t)

	w.srv.loop.Start()
	for i := 0; i < 20; i++ {
		w.srv.broadcastState()
		time.Sleep(5 * time.Millisecond)
	}
	w.srv.loop.Stop()

	// Every broadcast already happened; drain what reached the client.
	var positions []float64
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg Outbound
		require.NoError(t, json.Unmarshal(data, &msg))
		require.Equal(t, MsgGameState, msg.Type)
		require.Len(t, msg.Data.Entities, 1)
		positions = append(positions, msg.Data.Entities[0].Position.X)
	}

	require.GreaterOrEqual(t, len(positions), 2)
	for i := 1; i < len(positions); i++ {
		require.GreaterOrEqual(t, positions[i], positions[i-1])
	}
	require.Greater(t, positions[len(positions)-1], positions[0])
}
