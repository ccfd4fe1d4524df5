package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errUpstream = errors.New("upstream down")

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.ConsecutiveFailures = 3
	cfg.Timeout = time.Hour

	var transitions []gobreaker.State
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}

	cb := New[int](cfg)

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, errUpstream }); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: err = %v, want upstream error", i, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	called := false
	_, err := cb.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	if called {
		t.Error("fn ran while breaker open")
	}
	if !IsOpen(err) {
		t.Errorf("err = %v, want circuit open", err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err should wrap gobreaker.ErrOpenState")
	}

	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestCircuitBreaker_IgnoredErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		cfg  func(*Config)
	}{
		{
			name: "context_canceled",
			err:  context.Canceled,
		},
		{
			name: "custom_success_predicate",
			err:  errors.New("not listed"),
			cfg: func(c *Config) {
				c.IsSuccessful = func(error) bool { return true }
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(tt.name)
			cfg.ConsecutiveFailures = 1
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			cb := New[string](cfg)

			for i := 0; i < 3; i++ {
				cb.Execute(func() (string, error) { return "", tt.err })
			}
			if cb.State() != gobreaker.StateClosed {
				t.Errorf("state = %v, want closed", cb.State())
			}
		})
	}
}

func TestCircuitBreaker_PassesResult(t *testing.T) {
	cb := New[string](DefaultConfig("ok"))
	got, err := cb.Execute(func() (string, error) { return "quote", nil })
	if err != nil || got != "quote" {
		t.Errorf("got (%q, %v)", got, err)
	}
	if cb.Name() != "ok" {
		t.Errorf("name = %q", cb.Name())
	}
}
