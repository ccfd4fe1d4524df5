package notify

import (
	"testing"

	"github.com/fd1az/spread-monitor/internal/config"
)

func TestBuildChannels(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.NotifyConfig
		wantLabels []string
		wantErr    bool
	}{
		{
			name:       "dry run wins",
			cfg:        config.NotifyConfig{DryRun: true, Telegram: config.TelegramConfig{BotToken: "t", ChatIDs: []string{"1"}}},
			wantLabels: []string{"console:dry-run"},
		},
		{
			name: "telegram chats and discord hooks",
			cfg: config.NotifyConfig{
				Telegram: config.TelegramConfig{BotToken: "t", ChatIDs: []string{"1", "2"}},
				Discord:  config.DiscordConfig{WebhookURLs: []string{"https://discord.com/api/webhooks/1/secret"}},
			},
			wantLabels: []string{"telegram:1", "telegram:2", "discord#1"},
		},
		{
			name:    "nothing configured",
			cfg:     config.NotifyConfig{},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channels, err := buildChannels(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(channels) != len(tt.wantLabels) {
				t.Fatalf("channels = %d, want %d", len(channels), len(tt.wantLabels))
			}
			for i, ch := range channels {
				if ch.String() != tt.wantLabels[i] {
					t.Errorf("channel[%d] = %s, want %s", i, ch, tt.wantLabels[i])
				}
			}
		})
	}
}
