// Package server is the WebSocket boundary around the simulation core. It
// owns client sessions, translates wire messages into component mutations,
// and broadcasts extracted game state on its own cadence, independent of the
// simulation rate.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tickforge/tickforge/internal/config"
	"github.com/tickforge/tickforge/internal/core/ecs"
	"github.com/tickforge/tickforge/internal/core/engine"
	"github.com/tickforge/tickforge/internal/core/events/bus"
	"github.com/tickforge/tickforge/internal/core/observability/log"
	"github.com/tickforge/tickforge/pkg/concurrent"
	"github.com/tickforge/tickforge/pkg/sequence"
)

// InputSyncName is the registration name of the queue-draining system the
// server installs on the loop.
const InputSyncName = "input-sync"

// Player lifecycle events, emitted for gameplay systems listening on the bus.
const (
	EventPlayerJoined = "player:joined"
	EventPlayerLeft   = "player:left"
)

// PlayerEvent is the payload of player:joined and player:left.
type PlayerEvent struct {
	PlayerID string
	EntityID ecs.EntityID
}

// queuedInput is one accepted input message awaiting the next tick.
type queuedInput struct {
	playerID  string
	keys      map[string]bool
	timestamp int64
}

// Server accepts WebSocket clients and bridges them to the engine. Network
// goroutines never touch component data: accepted inputs are queued and
// drained into Input components by a system that runs first each tick, and
// outbound state is extracted by an engine:tick listener on the tick
// goroutine, so the broadcast path only ever sees the cached snapshot.
type Server struct {
	cfg    config.ServerConfig
	logger log.Log

	store *ecs.Store
	bus   *bus.Bus
	loop  *engine.Loop

	mu       sync.Mutex
	sessions map[string]*session // by session id, every open connection
	players  map[string]*session // by player id, joined connections only
	pending  *sequence.PriorityQueue[queuedInput]
	closed   bool

	stateMu sync.RWMutex
	latest  *GameState

	httpServer *http.Server
}

// New creates the server and registers its input-sync system on the loop.
// Call New before registering gameplay systems so queued inputs land in
// components ahead of the systems that read them.
func New(cfg config.ServerConfig, store *ecs.Store, eventBus *bus.Bus, loop *engine.Loop, logger log.Log) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger.With(log.String("component", "server")),
		store:    store,
		bus:      eventBus,
		loop:     loop,
		sessions: make(map[string]*session),
		players:  make(map[string]*session),
		pending: sequence.NewPriorityQueue(func(a, b queuedInput) bool {
			return a.timestamp < b.timestamp
		}),
	}
	loop.AddSystem(engine.Func{SystemName: InputSyncName, UpdateFunc: s.drainInputs})
	// Component reads happen here, on the tick goroutine, after systems ran.
	eventBus.On(engine.EventEngineTick, func(bus.Event) error {
		s.captureState()
		return nil
	})
	return s
}

// captureState extracts the broadcast snapshot from live component data.
// Must only run on the tick goroutine (or while the loop is stopped): the
// core provides no synchronization for component access, so extraction has
// to share the single writer's goroutine.
func (s *Server) captureState() {
	state := Snapshot(s.store, s.loop.Stats())
	s.stateMu.Lock()
	s.latest = state
	s.stateMu.Unlock()
}

// Run starts the engine loop, serves WebSocket clients, and broadcasts state
// until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: s.cfg.ListenAddr, Handler: mux}

	s.loop.Start()
	defer s.loop.Stop()

	s.logger.Info("server listening",
		log.String("addr", s.cfg.ListenAddr),
		log.Int("broadcast_hz", s.cfg.BroadcastHz))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		s.broadcastLoop(ctx)
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		s.shutdown()
		return nil
	})
	return group.Wait()
}

func (s *Server) shutdown() {
	s.mu.Lock()
	s.closed = true
	open := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown", log.Error(err))
	}
	s.logger.Info("server stopped")
}

// broadcastLoop pushes game state to every client at the configured rate.
// The payload is marshaled once per cycle and fanned out concurrently.
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.BroadcastHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcastState()
		}
	}
}

func (s *Server) broadcastState() {
	targets := s.openSessions()
	if len(targets) == 0 {
		return
	}

	s.stateMu.RLock()
	state := s.latest
	s.stateMu.RUnlock()
	if state == nil {
		return // no tick has produced a snapshot yet
	}

	data, err := json.Marshal(Outbound{Type: MsgGameState, Data: state})
	if err != nil {
		s.logger.Error("marshal game state", log.Error(err))
		return
	}

	_ = concurrent.Concurrent(sequence.From(targets), func(sess *session) error {
		if err := sess.sendRaw(data); err != nil {
			s.logger.Debug("dropping slow client",
				log.String("session", sess.id),
				log.Error(err))
			sess.close()
		}
		return nil
	})
}

// broadcast sends a control message to every open session.
func (s *Server) broadcast(msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("marshal broadcast", log.Error(err))
		return
	}
	for _, sess := range s.openSessions() {
		if err := sess.sendRaw(data); err != nil {
			sess.close()
		}
	}
}

func (s *Server) openSessions() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// drainInputs runs first each tick and applies queued inputs, oldest
// timestamp first, to the owning players' Input components.
func (s *Server) drainInputs(_ float64, _ []ecs.EntityID) error {
	s.mu.Lock()
	type apply struct {
		entity ecs.EntityID
		keys   map[string]bool
	}
	var batch []apply
	for {
		in, ok := s.pending.Dequeue()
		if !ok {
			break
		}
		sess, ok := s.players[in.playerID]
		if !ok {
			continue // player left with inputs still queued
		}
		batch = append(batch, apply{entity: sess.entityID, keys: in.keys})
	}
	s.mu.Unlock()

	for _, a := range batch {
		in, ok := ecs.Get[*ecs.Input](s.store, a.entity)
		if !ok {
			continue
		}
		for k := range in.Keys {
			delete(in.Keys, k)
		}
		for k, v := range a.keys {
			in.Keys[k] = v
		}
	}
	return nil
}

func (s *Server) dispatch(sess *session, msg Inbound) {
	switch msg.Type {
	case MsgJoin:
		s.handleJoin(sess, msg)
	case MsgInput:
		s.handleInput(sess, msg)
	case MsgLeave:
		s.handleLeave(sess)
	default:
		sess.sendJSON(errorMessage("unknown message type"))
	}
}

func (s *Server) handleJoin(sess *session, msg Inbound) {
	if msg.PlayerID == "" {
		sess.sendJSON(errorMessage("join requires a playerId"))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sess.sendJSON(errorMessage(ErrServerClosed.Error()))
		return
	}
	if sess.playerID != "" {
		s.mu.Unlock()
		sess.sendJSON(errorMessage("already joined"))
		return
	}
	if _, taken := s.players[msg.PlayerID]; taken {
		s.mu.Unlock()
		sess.sendJSON(errorMessage(ErrPlayerExists.Error()))
		return
	}
	spawn := len(s.players)
	s.mu.Unlock()

	entityID, err := s.spawnPlayer(spawn)
	if err != nil {
		s.logger.Warn("spawn failed", log.String("player", msg.PlayerID), log.Error(err))
		sess.sendJSON(errorMessage(err.Error()))
		return
	}

	s.mu.Lock()
	if _, taken := s.players[msg.PlayerID]; taken {
		s.mu.Unlock()
		s.store.DestroyEntity(entityID)
		sess.sendJSON(errorMessage(ErrPlayerExists.Error()))
		return
	}
	sess.playerID = msg.PlayerID
	sess.entityID = entityID
	s.players[msg.PlayerID] = sess
	s.mu.Unlock()

	s.logger.Info("player joined",
		log.String("player", msg.PlayerID),
		log.Uint64("entity", uint64(entityID)))
	s.bus.Emit(bus.Event{Type: EventPlayerJoined, Data: PlayerEvent{PlayerID: msg.PlayerID, EntityID: entityID}})
	s.broadcast(Outbound{Type: MsgPlayerJoined, PlayerID: msg.PlayerID, EntityID: entityID})
}

// spawnPlayer creates the player's entity. Spawn points fan out on a ring so
// simultaneous joins do not stack on one spot.
func (s *Server) spawnPlayer(index int) (ecs.EntityID, error) {
	id, err := s.store.CreateEntity()
	if err != nil {
		return 0, err
	}

	angle := float64(index) * math.Pi / 4
	pos := ecs.Vec2{
		X: 400 + 120*math.Cos(angle),
		Y: 300 + 120*math.Sin(angle),
	}

	components := []ecs.Component{
		ecs.NewTransform(pos.X, pos.Y),
		&ecs.Velocity{MaxSpeed: 400},
		ecs.NewCollider(32, 32, ecs.LayerPlayer),
		ecs.NewInput(),
		&ecs.Renderable{Width: 32, Height: 32, Color: "#4f9d69", Shape: "rect", RenderLayer: 1},
	}
	for _, c := range components {
		if err := s.store.AddComponent(id, c); err != nil {
			s.store.DestroyEntity(id)
			return 0, err
		}
	}
	return id, nil
}

func (s *Server) handleInput(sess *session, msg Inbound) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.playerID == "" {
		sess.sendJSON(errorMessage("join before sending input"))
		return
	}
	// Stale or replayed input: timestamps must strictly increase per
	// connection.
	if msg.Timestamp <= sess.lastInput {
		return
	}
	sess.lastInput = msg.Timestamp

	keys := make(map[string]bool, len(msg.Keys))
	for k, v := range msg.Keys {
		keys[k] = v
	}
	s.pending.Enqueue(queuedInput{
		playerID:  sess.playerID,
		keys:      keys,
		timestamp: msg.Timestamp,
	})
}

func (s *Server) handleLeave(sess *session) {
	if !s.removePlayer(sess) {
		sess.sendJSON(errorMessage(ErrPlayerNotFound.Error()))
		return
	}
	sess.close()
}

// removePlayer tears down the session's player entity and announces the
// departure. Reports whether the session had a joined player.
func (s *Server) removePlayer(sess *session) bool {
	s.mu.Lock()
	playerID := sess.playerID
	entityID := sess.entityID
	if playerID != "" {
		delete(s.players, playerID)
		sess.playerID = ""
		sess.entityID = 0
	}
	s.mu.Unlock()

	if playerID == "" {
		return false
	}

	s.store.DestroyEntity(entityID)
	s.logger.Info("player left", log.String("player", playerID))
	s.bus.Emit(bus.Event{Type: EventPlayerLeft, Data: PlayerEvent{PlayerID: playerID, EntityID: entityID}})
	s.broadcast(Outbound{Type: MsgPlayerLeft, PlayerID: playerID})
	return true
}

// dropSession removes a closed connection and its player, if any.
func (s *Server) dropSession(sess *session) {
	s.removePlayer(sess)

	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
}
