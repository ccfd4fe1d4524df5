// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
)

// Client is the subset of ethclient.Client the monitor uses.
type Client interface {
	ethereum.ContractCaller
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Dialer opens an RPC client for a URL.
type Dialer interface {
	Dial(ctx context.Context, rpcURL string) (Client, error)
}
