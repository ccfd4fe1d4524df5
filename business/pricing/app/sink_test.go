package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/logger"
)

func TestLogSink_SourceUnavailable(t *testing.T) {
	tests := []struct {
		name      string
		kind      domain.Kind
		wantLevel string
	}{
		{"timeout is a warning", domain.KindTimeout, "WARN"},
		{"not listed is debug", domain.KindNotListed, "DEBUG"},
		{"unsupported is debug", domain.KindUnsupported, "DEBUG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			sink, err := NewLogSink(logger.New(&buf, logger.LevelDebug, "test", nil))
			if err != nil {
				t.Fatal(err)
			}
			sink.SourceUnavailable(context.Background(), "ETH/USDT",
				domain.NewUnavailable("okx", tt.kind, "slow", errors.New("deadline")))

			var rec map[string]any
			if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
				t.Fatalf("log line %q: %v", buf.String(), err)
			}
			if rec["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", rec["level"], tt.wantLevel)
			}
			if rec["error_code"] != "SOURCE_UNAVAILABLE" {
				t.Errorf("error_code = %v", rec["error_code"])
			}
			if rec["source"] != "okx" || rec["kind"] != tt.kind.String() {
				t.Errorf("source/kind = %v/%v", rec["source"], rec["kind"])
			}
			if rec["cause"] == nil {
				t.Error("cause missing")
			}
		})
	}
}
