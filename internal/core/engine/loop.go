package engine

import (
	"sync"
	"time"

	"github.com/tickforge/tickforge/internal/core/ecs"
	"github.com/tickforge/tickforge/internal/core/events/bus"
	"github.com/tickforge/tickforge/internal/core/observability/log"
)

// DefaultTargetFPS is the simulation rate unless overridden.
const DefaultTargetFPS = 60

// Engine lifecycle and tick event types.
const (
	EventEngineStarted = "engine:started"
	EventEngineStopped = "engine:stopped"
	EventEnginePaused  = "engine:paused"
	EventEngineResumed = "engine:resumed"
	EventEngineTick    = "engine:tick"
	EventEngineError   = "engine:error"

	EventSystemAdded       = "system:added"
	EventSystemRemoved     = "system:removed"
	EventSystemUpdateStart = "system:update:start"
	EventSystemUpdateEnd   = "system:update:end"
)

// StartedEvent is the payload of engine:started.
type StartedEvent struct {
	TargetFPS int
}

// TickEvent is the payload of engine:tick.
type TickEvent struct {
	DeltaTime   float64
	FPS         float64
	EntityCount int
}

// SystemUpdateEvent is the payload of system:update:start and
// system:update:end. Duration is only set on the end event.
type SystemUpdateEvent struct {
	System      string
	DeltaTime   float64
	EntityCount int
	Duration    time.Duration
}

// SystemEvent is the payload of system:added and system:removed.
type SystemEvent struct {
	System string
}

// ErrorEvent is the payload of engine:error.
type ErrorEvent struct {
	System string
	Err    error
}

// Stats aggregates loop statistics across ticks.
type Stats struct {
	Frames        int64
	LastDeltaTime float64
	FPS           float64
	SystemTotals  map[string]time.Duration
}

// Loop owns the fixed-cadence timer and the ordered system list.
//
// States: Stopped -> Running -> (Paused <-> Running) -> Stopped. Systems run
// sequentially in registration order; later systems observe earlier systems'
// mutations within the same tick. A system error aborts the tick and stops
// the loop — partially applied updates must not be papered over.
type Loop struct {
	store  *ecs.Store
	bus    *bus.Bus
	logger log.Log

	mu        sync.Mutex
	systems   []System
	targetFPS int
	running   bool
	paused    bool
	stopChan  chan struct{}
	lastTick  time.Time
	lastErr   error
	stats     Stats
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithTargetFPS overrides the simulation rate.
func WithTargetFPS(fps int) LoopOption {
	return func(l *Loop) {
		if fps > 0 {
			l.targetFPS = fps
		}
	}
}

// NewLoop creates a stopped loop over the given store and bus.
func NewLoop(store *ecs.Store, eventBus *bus.Bus, logger log.Log, opts ...LoopOption) *Loop {
	if logger == nil {
		logger = log.NewNop()
	}
	l := &Loop{
		store:     store,
		bus:       eventBus,
		logger:    logger.With(log.String("component", "engine-loop")),
		targetFPS: DefaultTargetFPS,
		stats:     Stats{SystemTotals: make(map[string]time.Duration)},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start begins ticking at 1s/targetFPS. Calling Start on a running loop is a
// no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.paused = false
	l.lastErr = nil
	l.lastTick = time.Now()
	l.stopChan = make(chan struct{})
	stop := l.stopChan
	fps := l.targetFPS
	l.mu.Unlock()

	go l.run(stop, time.Second/time.Duration(fps))

	l.logger.Info("engine started", log.Int("target_fps", fps))
	l.bus.Emit(bus.Event{Type: EventEngineStarted, Data: StartedEvent{TargetFPS: fps}})
}

// Stop cancels future ticks. The in-flight tick, if any, completes. No-op
// when not running.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stopChan)
	l.mu.Unlock()

	l.logger.Info("engine stopped")
	l.bus.Emit(bus.Event{Type: EventEngineStopped})
}

// Pause suspends ticking: time does not advance and no systems run while the
// timer keeps firing. Only valid from Running.
func (l *Loop) Pause() {
	l.mu.Lock()
	if !l.running || l.paused {
		l.mu.Unlock()
		return
	}
	l.paused = true
	l.mu.Unlock()

	l.bus.Emit(bus.Event{Type: EventEnginePaused})
}

// Resume continues ticking after Pause. The first tick after Resume measures
// its delta from the Resume call, not from before the pause.
func (l *Loop) Resume() {
	l.mu.Lock()
	if !l.running || !l.paused {
		l.mu.Unlock()
		return
	}
	l.paused = false
	l.lastTick = time.Now()
	l.mu.Unlock()

	l.bus.Emit(bus.Event{Type: EventEngineResumed})
}

// IsRunning reports whether the loop is between Start and Stop.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// IsPaused reports whether ticks are currently being skipped.
func (l *Loop) IsPaused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// Err returns the system error that stopped the loop, if any.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// AddSystem appends a system to the execution order. A system added while
// running participates from the next tick on.
func (l *Loop) AddSystem(s System) {
	l.mu.Lock()
	l.systems = append(l.systems, s)
	l.mu.Unlock()

	l.logger.Debug("system added", log.String("system", s.Name()))
	l.bus.Emit(bus.Event{Type: EventSystemAdded, Data: SystemEvent{System: s.Name()}})
}

// RemoveSystem removes every system with the given name and reports whether
// anything was removed. The event fires only on an actual removal.
func (l *Loop) RemoveSystem(name string) bool {
	l.mu.Lock()
	kept := l.systems[:0]
	removed := false
	for _, s := range l.systems {
		if s.Name() == name {
			removed = true
			continue
		}
		kept = append(kept, s)
	}
	l.systems = kept
	l.mu.Unlock()

	if removed {
		l.logger.Debug("system removed", log.String("system", name))
		l.bus.Emit(bus.Event{Type: EventSystemRemoved, Data: SystemEvent{System: name}})
	}
	return removed
}

// Systems returns the registered system names in execution order.
func (l *Loop) Systems() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, len(l.systems))
	for i, s := range l.systems {
		names[i] = s.Name()
	}
	return names
}

// Stats returns a copy of the aggregated loop statistics.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	totals := make(map[string]time.Duration, len(l.stats.SystemTotals))
	for k, v := range l.stats.SystemTotals {
		totals[k] = v
	}
	out := l.stats
	out.SystemTotals = totals
	return out
}

func (l *Loop) run(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.tick()
		case <-stop:
			return
		}
	}
}

func (l *Loop) tick() {
	l.mu.Lock()
	if !l.running || l.paused {
		l.mu.Unlock()
		return
	}
	now := time.Now()
	deltaTime := now.Sub(l.lastTick).Seconds()
	l.lastTick = now
	systems := append([]System(nil), l.systems...)
	l.mu.Unlock()

	entities := l.store.Entities()
	entityCount := len(entities)

	for _, s := range systems {
		l.bus.Emit(bus.Event{Type: EventSystemUpdateStart, Data: SystemUpdateEvent{
			System:      s.Name(),
			DeltaTime:   deltaTime,
			EntityCount: entityCount,
		}})

		began := time.Now()
		err := s.Update(deltaTime, entities)
		elapsed := time.Since(began)

		l.bus.Emit(bus.Event{Type: EventSystemUpdateEnd, Data: SystemUpdateEvent{
			System:      s.Name(),
			DeltaTime:   deltaTime,
			EntityCount: entityCount,
			Duration:    elapsed,
		}})

		l.mu.Lock()
		l.stats.SystemTotals[s.Name()] += elapsed
		l.mu.Unlock()

		if err != nil {
			l.logger.Error("system update failed, stopping engine",
				log.String("system", s.Name()),
				log.Error(err))
			l.mu.Lock()
			l.lastErr = err
			l.mu.Unlock()
			l.bus.Emit(bus.Event{Type: EventEngineError, Data: ErrorEvent{System: s.Name(), Err: err}})
			l.Stop()
			return
		}
	}

	fps := 0.0
	if deltaTime > 0 {
		fps = 1 / deltaTime
	}

	l.mu.Lock()
	l.stats.Frames++
	l.stats.LastDeltaTime = deltaTime
	l.stats.FPS = fps
	l.mu.Unlock()

	l.bus.Emit(bus.Event{Type: EventEngineTick, Data: TickEvent{
		DeltaTime:   deltaTime,
		FPS:         fps,
		EntityCount: entityCount,
	}})
}
