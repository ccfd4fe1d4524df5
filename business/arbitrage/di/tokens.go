// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/spread-monitor/business/arbitrage/app"
	"github.com/fd1az/spread-monitor/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Scanner = di.NewToken[*app.Scanner]("arbitrage.Scanner")
)

// Private dependency tokens - internal to arbitrage module
var (
	AlertStore   = di.NewToken[app.AlertStore]("arbitrage:alertStore")
	Deduplicator = di.NewToken[*app.Deduplicator]("arbitrage:deduplicator")
	Reporter     = di.NewToken[app.Reporter]("arbitrage:reporter")
)

func GetScanner(c di.ServiceRegistry) *app.Scanner {
	return di.GetToken(c, Scanner)
}

func GetAlertStore(c di.ServiceRegistry) app.AlertStore {
	return di.GetToken(c, AlertStore)
}

func GetDeduplicator(c di.ServiceRegistry) *app.Deduplicator {
	return di.GetToken(c, Deduplicator)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
