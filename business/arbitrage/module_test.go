package arbitrage

import (
	"testing"
	"time"

	"github.com/fd1az/spread-monitor/internal/config"
)

func TestNotifyBudget_CoversBackoff(t *testing.T) {
	cfg := config.NotifyConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		SendTimeout:    10 * time.Second,
	}
	// Four attempts plus a capped backoff before each of the three retries.
	if got, want := notifyBudget(cfg), 40*time.Second+15*time.Second; got != want {
		t.Errorf("notifyBudget() = %s, want %s", got, want)
	}
}
