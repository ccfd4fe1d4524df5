// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"errors"

	"github.com/fd1az/spread-monitor/internal/asset"
	"github.com/fd1az/spread-monitor/internal/config"
	"github.com/fd1az/spread-monitor/internal/di"
	"github.com/fd1az/spread-monitor/internal/health"
	"github.com/fd1az/spread-monitor/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	Networks() *asset.Registry
	Services() di.ServiceRegistry
	// Health is nil when the health server is disabled.
	Health() *health.Server
	// OnClose registers a cleanup run by Close in reverse order.
	OnClose(fn func() error)
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

type app struct {
	config    *config.Config
	logger    logger.LoggerInterface
	networks  *asset.Registry
	container di.Container
	health    *health.Server
	closers   []func() error
}

// New creates a new Monolith instance. Nothing is dialed here; modules
// connect lazily or in Startup.
func New(cfg *config.Config, log logger.LoggerInterface, hs *health.Server) *app {
	networks := asset.DefaultRegistry()

	container := di.NewContainer()
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("networks", networks)

	return &app{
		config:    cfg,
		logger:    log,
		networks:  networks,
		container: container,
		health:    hs,
	}
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) Networks() *asset.Registry {
	return a.networks
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

func (a *app) Health() *health.Server {
	return a.health
}

func (a *app) OnClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close runs registered cleanups, last registered first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
