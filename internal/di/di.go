// Package di is a small lazy service container with typed tokens.
//
// Factories are registered up front and resolved on first Get; each service
// is built once and cached. Resolution is safe for concurrent use.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry resolves services by name.
type ServiceRegistry interface {
	Get(name string) any
	Has(name string) bool
}

// Container is a ServiceRegistry that also accepts registrations.
type Container interface {
	ServiceRegistry
	Register(name string, instance any)
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

type entry struct {
	factory  func(ServiceRegistry) any
	instance any
	ready    chan struct{}
	started  bool
}

type container struct {
	mu       sync.Mutex
	services map[string]*entry
}

// NewContainer returns an empty Container.
func NewContainer() Container {
	return &container{services: make(map[string]*entry)}
}

// Register stores a ready instance under name, replacing any previous entry.
func (c *container) Register(name string, instance any) {
	ready := make(chan struct{})
	close(ready)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = &entry{instance: instance, ready: ready, started: true}
}

// RegisterFactory stores a lazy factory under name.
func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = &entry{factory: factory, ready: make(chan struct{})}
}

// Has reports whether name was registered.
func (c *container) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.services[name]
	return ok
}

// Get resolves name, building it on first use. Concurrent callers wait for
// the first build. It panics on unknown names.
func (c *container) Get(name string) any {
	c.mu.Lock()
	e, ok := c.services[name]
	if !ok {
		c.mu.Unlock()
		panic(fmt.Sprintf("di: service %q not registered", name))
	}
	if e.started {
		c.mu.Unlock()
		<-e.ready
		return e.instance
	}
	e.started = true
	c.mu.Unlock()

	// Factories call Get for their own dependencies, so build unlocked.
	e.instance = e.factory(c)
	close(e.ready)

	return e.instance
}

// Token is a typed handle for a service name.
type Token[T any] struct {
	name string
}

// NewToken creates a token for name.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the registry key.
func (t Token[T]) Name() string {
	return t.name
}

// RegisterToken registers a typed factory for token.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves token with its static type.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	v := sr.Get(token.name)
	t, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has type %T", token.name, v))
	}
	return t
}
