//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/tickforge/tickforge/internal/config"
	"github.com/tickforge/tickforge/internal/server"
)

func InitializeServer(cfg config.Config) *server.Server {
	wire.Build(
		ProvideLogger,
		ProvideBus,
		ProvideStore,
		ProvideLoop,
		ProvideServer,
		wire.FieldsOf(new(config.Config), "Engine", "Log"),
	)
	return nil
}
