// Package injector assembles the simulation runtime with google/wire.
package injector

import (
	"github.com/google/wire"
	"github.com/simscript/simscript/internal/bridge"
	"github.com/simscript/simscript/internal/core/events/bus"
	"github.com/simscript/simscript/internal/core/observability/log"
	"github.com/simscript/simscript/internal/core/simulation"
	"github.com/simscript/simscript/internal/host"
	"github.com/simscript/simscript/internal/transport"
)

// Runtime is the fully wired simulation: engine behind a bridge, driven by a host that
// already has the physics system registered.
type Runtime struct {
	Logger  *log.Logger
	Bus     bus.EventBus
	Engine  *simulation.Engine
	Bridge  *bridge.Bridge
	Hub     *transport.Hub
	Host    *host.Host
	Physics *host.PhysicsSystem
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideBus,
	ProvideEngine,
	ProvideBridge,
	wire.Bind(new(transport.Commander), new(*bridge.Bridge)),
	ProvideHub,
	ProvidePhysicsSystem,
	ProvideHost,
	wire.Struct(new(Runtime), "*"),
)

func ProvideLogger(level log.Level) *log.Logger {
	return log.New(level)
}

func ProvideBus() bus.EventBus {
	return bus.New()
}

func ProvideEngine(cfg simulation.Config, logger log.Log) (*simulation.Engine, error) {
	return simulation.New(cfg, logger.With(log.String("component", "engine")))
}

func ProvideBridge(engine *simulation.Engine, eventBus bus.EventBus, logger log.Log) *bridge.Bridge {
	return bridge.New(engine, eventBus, logger.With(log.String("component", "bridge")))
}

func ProvideHub(commander transport.Commander, logger log.Log) *transport.Hub {
	return transport.NewHub(commander, logger.With(log.String("component", "hub")))
}

func ProvidePhysicsSystem(b *bridge.Bridge, logger log.Log) *host.PhysicsSystem {
	return host.NewPhysicsSystem(b, logger)
}

func ProvideHost(physics *host.PhysicsSystem, logger log.Log) (*host.Host, error) {
	h := host.New(logger.With(log.String("component", "host")))
	if err := h.Register(physics); err != nil {
		return nil, err
	}
	return h, nil
}
