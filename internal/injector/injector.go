//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/simscript/simscript/internal/core/observability/log"
	"github.com/simscript/simscript/internal/core/simulation"
)

// InitializeRuntime assembles the simulation runtime for cfg.
func InitializeRuntime(cfg simulation.Config, level log.Level) (*Runtime, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
