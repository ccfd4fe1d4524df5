package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fd1az/spread-monitor/business/blockchain/domain"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/asset"
	"github.com/fd1az/spread-monitor/internal/logger"
)

// Endpoint binds a network to its RPC URL.
type Endpoint struct {
	Network asset.Network
	RPCURL  string
}

// ChainService hands out one RPC client per network. Clients are dialed on
// first use and checked against the network's chain id; failed dials are
// not cached.
type ChainService struct {
	dialer    Dialer
	log       logger.LoggerInterface
	endpoints map[string]Endpoint
	order     []string

	mu      sync.Mutex
	clients map[string]Client
}

// NewChainService creates a new ChainService.
func NewChainService(dialer Dialer, endpoints []Endpoint, log logger.LoggerInterface) *ChainService {
	s := &ChainService{
		dialer:    dialer,
		log:       log,
		endpoints: make(map[string]Endpoint, len(endpoints)),
		clients:   make(map[string]Client),
	}
	for _, ep := range endpoints {
		name := asset.NormalizeName(ep.Network.Name)
		if _, dup := s.endpoints[name]; !dup {
			s.order = append(s.order, name)
		}
		s.endpoints[name] = ep
	}
	return s
}

// Networks returns configured network names in configuration order.
func (s *ChainService) Networks() []string {
	return append([]string(nil), s.order...)
}

// Client returns the RPC client for network, dialing it if needed.
func (s *ChainService) Client(ctx context.Context, network string) (Client, error) {
	name := asset.NormalizeName(network)

	s.mu.Lock()
	if c, ok := s.clients[name]; ok {
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	ep, ok := s.endpoints[name]
	if !ok {
		return nil, apperror.New(apperror.CodeNotFound, apperror.WithContext("no rpc endpoint for network "+name))
	}

	c, err := s.dialer.Dial(ctx, ep.RPCURL)
	if err != nil {
		return nil, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err), apperror.WithContext("dial "+name))
	}

	if want := ep.Network.ChainID; want != 0 {
		got, err := c.ChainID(ctx)
		if err != nil {
			c.Close()
			return nil, apperror.New(apperror.CodeExternalServiceError,
				apperror.WithCause(err), apperror.WithContext("chain id "+name))
		}
		if got.Uint64() != want {
			c.Close()
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext(fmt.Sprintf("%s rpc reports chain id %s, want %d", name, got, want)))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.clients[name]; ok {
		// Lost a dial race.
		c.Close()
		return existing, nil
	}
	s.clients[name] = c
	s.log.Info(ctx, "rpc client connected", "network", name)
	return c, nil
}

// Probe reads the latest block of every configured network concurrently.
func (s *ChainService) Probe(ctx context.Context) []domain.ChainStatus {
	out := make([]domain.ChainStatus, len(s.order))
	var g errgroup.Group
	for i, name := range s.order {
		g.Go(func() error {
			out[i] = s.probe(ctx, name)
			return nil
		})
	}
	g.Wait()
	return out
}

func (s *ChainService) probe(ctx context.Context, name string) domain.ChainStatus {
	st := domain.ChainStatus{Network: name, State: domain.StateDisconnected, CheckedAt: time.Now()}

	c, err := s.Client(ctx, name)
	if err != nil {
		st.State = domain.StateFailed
		st.Err = err
		return st
	}

	start := time.Now()
	block, err := c.BlockNumber(ctx)
	st.Latency = time.Since(start)
	if err != nil {
		st.State = domain.StateFailed
		st.Err = err
		return st
	}
	st.State = domain.StateConnected
	st.Block = block
	return st
}

// Close closes every dialed client.
func (s *ChainService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, c := range s.clients {
		c.Close()
		delete(s.clients, name)
	}
}
