// Package injector wires the process together from configuration. The
// provider functions are plain constructors usable directly; injector.go
// composes them for wire.
package injector

import (
	"github.com/tickforge/tickforge/internal/config"
	"github.com/tickforge/tickforge/internal/core/ecs"
	"github.com/tickforge/tickforge/internal/core/engine"
	"github.com/tickforge/tickforge/internal/core/events/bus"
	"github.com/tickforge/tickforge/internal/core/observability/log"
	"github.com/tickforge/tickforge/internal/core/systems"
	"github.com/tickforge/tickforge/internal/core/systems/physics"
	"github.com/tickforge/tickforge/internal/server"
)

func ProvideLogger(cfg config.LogConfig) log.Log {
	return log.New(log.ParseLevel(cfg.Level))
}

func ProvideBus(logger log.Log) *bus.Bus {
	return bus.New(logger)
}

func ProvideStore(cfg config.EngineConfig, eventBus *bus.Bus, logger log.Log) *ecs.Store {
	return ecs.NewStore(eventBus, logger, ecs.WithMaxEntities(cfg.MaxEntities))
}

func ProvideLoop(cfg config.EngineConfig, store *ecs.Store, eventBus *bus.Bus, logger log.Log) *engine.Loop {
	return engine.NewLoop(store, eventBus, logger, engine.WithTargetFPS(cfg.TargetFPS))
}

// ProvideServer builds the server and registers the tick pipeline. Order
// matters: input-sync (installed by server.New) runs first so queued network
// inputs are visible to the input system, then movement integrates, then
// physics detects and resolves.
func ProvideServer(cfg config.Config, store *ecs.Store, eventBus *bus.Bus, loop *engine.Loop, logger log.Log) *server.Server {
	srv := server.New(cfg.Server, store, eventBus, loop, logger)
	loop.AddSystem(systems.NewInput(store, systems.WithMoveSpeed(cfg.Engine.MoveSpeed)))
	loop.AddSystem(systems.NewMovement(store))
	loop.AddSystem(physics.New(store, eventBus, logger))
	return srv
}

// Build assembles the whole application from configuration.
func Build(cfg config.Config) (*server.Server, log.Log) {
	logger := ProvideLogger(cfg.Log)
	eventBus := ProvideBus(logger)
	store := ProvideStore(cfg.Engine, eventBus, logger)
	loop := ProvideLoop(cfg.Engine, store, eventBus, logger)
	return ProvideServer(cfg, store, eventBus, loop, logger), logger
}
