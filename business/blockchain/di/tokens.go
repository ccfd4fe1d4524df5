// Package di contains dependency injection tokens for the blockchain context.
package di

import (
	"github.com/fd1az/spread-monitor/business/blockchain/app"
	"github.com/fd1az/spread-monitor/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ChainService = di.NewToken[*app.ChainService]("blockchain.ChainService")
)

// Private dependency tokens - internal to blockchain module
var (
	Dialer = di.NewToken[app.Dialer]("blockchain:dialer")
)

func GetChainService(c di.ServiceRegistry) *app.ChainService {
	return di.GetToken(c, ChainService)
}

func GetDialer(c di.ServiceRegistry) app.Dialer {
	return di.GetToken(c, Dialer)
}
