// Package notify implements the notify bounded context: alert texts and
// delivery to Telegram, Discord and the console.
package notify

import (
	"context"
	"fmt"

	"github.com/fd1az/spread-monitor/business/notify/app"
	notifyDI "github.com/fd1az/spread-monitor/business/notify/di"
	"github.com/fd1az/spread-monitor/business/notify/infra/console"
	"github.com/fd1az/spread-monitor/business/notify/infra/discord"
	"github.com/fd1az/spread-monitor/business/notify/infra/telegram"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/asset"
	"github.com/fd1az/spread-monitor/internal/config"
	"github.com/fd1az/spread-monitor/internal/di"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/monolith"
)

// Module implements the notify bounded context.
type Module struct{}

// RegisterServices registers all notify services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, notifyDI.Channels, func(sr di.ServiceRegistry) []app.Channel {
		cfg := sr.Get("config").(*config.Config)
		channels, err := buildChannels(cfg.Notify)
		if err != nil {
			panic(err)
		}
		return channels
	})

	di.RegisterToken(c, notifyDI.Notifier, func(sr di.ServiceRegistry) *app.Notifier {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		networks := sr.Get("networks").(*asset.Registry)
		n, err := app.NewNotifier(notifyDI.GetChannels(sr), networks, app.Config{
			MaxRetries:     cfg.Notify.MaxRetries,
			InitialBackoff: cfg.Notify.InitialBackoff,
			MaxBackoff:     cfg.Notify.MaxBackoff,
			SendTimeout:    cfg.Notify.SendTimeout,
		}, log)
		if err != nil {
			panic(err)
		}
		return n
	})

	return nil
}

// buildChannels expands the config into (transport, destination) pairs.
// Dry run replaces every real channel with the console.
func buildChannels(cfg config.NotifyConfig) ([]app.Channel, error) {
	if cfg.DryRun {
		return []app.Channel{{Transport: console.New(nil), Destination: "dry-run"}}, nil
	}

	var channels []app.Channel
	if cfg.Telegram.BotToken != "" {
		tg, err := telegram.New(telegram.Config{
			BotToken: cfg.Telegram.BotToken,
			APIURL:   cfg.Telegram.APIURL,
			Timeout:  cfg.SendTimeout,
		})
		if err != nil {
			return nil, err
		}
		for _, chatID := range cfg.Telegram.ChatIDs {
			channels = append(channels, app.Channel{Transport: tg, Destination: chatID})
		}
	}

	if len(cfg.Discord.WebhookURLs) > 0 {
		dc, err := discord.New(cfg.SendTimeout)
		if err != nil {
			return nil, err
		}
		for i, hook := range cfg.Discord.WebhookURLs {
			channels = append(channels, app.Channel{
				Transport:   dc,
				Destination: hook,
				Label:       fmt.Sprintf("discord#%d", i+1),
			})
		}
	}

	if len(channels) == 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("notify: no channel configured"))
	}
	return channels, nil
}

// Startup resolves the notifier so configuration errors surface before the
// first scan.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext(fmt.Sprintf("notify: %v", r)))
		}
	}()

	n := notifyDI.GetNotifier(mono.Services())
	mono.Logger().Info(ctx, "notify module started",
		"channels", n.Channels(),
		"dry_run", mono.Config().Notify.DryRun)
	return nil
}
