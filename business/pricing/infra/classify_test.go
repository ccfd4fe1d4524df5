package infra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/httpclient"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.Kind
	}{
		{name: "deadline", err: fmt.Errorf("get: %w", context.DeadlineExceeded), want: domain.KindTimeout},
		{name: "net_timeout", err: timeoutErr{}, want: domain.KindTimeout},
		{name: "decode", err: fmt.Errorf("%w: unexpected EOF", httpclient.ErrDecode), want: domain.KindParseError},
		{name: "rate_limited", err: &httpclient.StatusError{StatusCode: http.StatusTooManyRequests}, want: domain.KindRateLimited},
		{name: "banned", err: &httpclient.StatusError{StatusCode: http.StatusTeapot}, want: domain.KindRateLimited},
		{name: "not_found", err: &httpclient.StatusError{StatusCode: http.StatusNotFound}, want: domain.KindNotListed},
		{name: "server_error", err: &httpclient.StatusError{StatusCode: http.StatusBadGateway}, want: domain.KindTransport},
		{name: "circuit_open", err: apperror.New(apperror.CodeCircuitOpen), want: domain.KindCircuitOpen},
		{name: "other", err: errors.New("connection reset"), want: domain.KindTransport},
		{name: "passthrough", err: domain.NewUnavailable("okx", domain.KindUnsupported, "", nil), want: domain.KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := Classify("okx", tt.err)
			if u.Kind != tt.want {
				t.Errorf("kind = %s, want %s", u.Kind, tt.want)
			}
			if u.Source != "okx" {
				t.Errorf("source = %s", u.Source)
			}
		})
	}
}
