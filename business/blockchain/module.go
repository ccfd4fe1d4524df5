// Package blockchain implements the blockchain bounded context: per-network
// JSON-RPC clients for on-chain quoting.
package blockchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/fd1az/spread-monitor/business/blockchain/app"
	blockchainDI "github.com/fd1az/spread-monitor/business/blockchain/di"
	"github.com/fd1az/spread-monitor/business/blockchain/infra/ethereum"
	"github.com/fd1az/spread-monitor/internal/asset"
	"github.com/fd1az/spread-monitor/internal/config"
	"github.com/fd1az/spread-monitor/internal/di"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.Dialer, func(di.ServiceRegistry) app.Dialer {
		return ethereum.Dialer{}
	})

	di.RegisterToken(c, blockchainDI.ChainService, func(sr di.ServiceRegistry) *app.ChainService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		networks := sr.Get("networks").(*asset.Registry)

		var endpoints []app.Endpoint
		if cfg.Uniswap.Enabled {
			for _, n := range cfg.Uniswap.Networks {
				network, ok := networks.Get(n.Name)
				if !ok {
					log.Warn(context.Background(), "skipping rpc endpoint for unknown network", "network", n.Name)
					continue
				}
				endpoints = append(endpoints, app.Endpoint{Network: network, RPCURL: n.RPCURL})
			}
		}
		return app.NewChainService(blockchainDI.GetDialer(sr), endpoints, log)
	})

	return nil
}

// Startup wires the RPC health check and cleanup.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	chains := blockchainDI.GetChainService(mono.Services())
	mono.OnClose(func() error {
		chains.Close()
		return nil
	})

	if len(chains.Networks()) == 0 {
		return nil
	}

	if hs := mono.Health(); hs != nil {
		hs.RegisterCheck("rpc", func(ctx context.Context) (bool, string) {
			var (
				up     int
				failed []string
			)
			for _, st := range chains.Probe(ctx) {
				if st.Healthy() {
					up++
					continue
				}
				failed = append(failed, fmt.Sprintf("%s: %v", st.Network, st.Err))
			}
			return up > 0, strings.Join(failed, "; ")
		})
	}

	mono.Logger().Info(ctx, "blockchain module started", "networks", chains.Networks())
	return nil
}
