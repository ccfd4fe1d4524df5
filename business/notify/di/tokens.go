// Package di contains dependency injection tokens for the notify context.
package di

import (
	"github.com/fd1az/spread-monitor/business/notify/app"
	"github.com/fd1az/spread-monitor/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Notifier = di.NewToken[*app.Notifier]("notify.Notifier")
)

// Private dependency tokens - internal to notify module
var (
	Channels = di.NewToken[[]app.Channel]("notify:channels")
)

func GetNotifier(c di.ServiceRegistry) *app.Notifier {
	return di.GetToken(c, Notifier)
}

func GetChannels(c di.ServiceRegistry) []app.Channel {
	return di.GetToken(c, Channels)
}
