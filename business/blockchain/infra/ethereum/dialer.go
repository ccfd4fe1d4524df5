// Package ethereum provides the go-ethereum RPC dialer.
package ethereum

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/spread-monitor/business/blockchain/app"
)

// Dialer dials JSON-RPC endpoints with ethclient.
type Dialer struct{}

// Dial implements app.Dialer.
func (Dialer) Dial(ctx context.Context, rpcURL string) (app.Client, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}
