// Package infra holds helpers shared by the quote source adapters.
package infra

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/circuitbreaker"
	"github.com/fd1az/spread-monitor/internal/httpclient"
)

// Classify turns a transport or decode error into a *domain.Unavailable.
// Errors that already are Unavailable pass through.
func Classify(source string, err error) *domain.Unavailable {
	if u, ok := domain.AsUnavailable(err); ok {
		return u
	}

	var netErr net.Error
	switch {
	case circuitbreaker.IsOpen(err):
		return domain.NewUnavailable(source, domain.KindCircuitOpen, "circuit open", err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return domain.NewUnavailable(source, domain.KindTimeout, "", err)
	case errors.Is(err, httpclient.ErrDecode):
		return domain.NewUnavailable(source, domain.KindParseError, "decode", err)
	}

	if se, ok := httpclient.AsStatusError(err); ok {
		return FromStatus(source, se.StatusCode, err)
	}
	return domain.NewUnavailable(source, domain.KindTransport, "", err)
}

// FromStatus maps an HTTP status to an Unavailable kind.
func FromStatus(source string, status int, err error) *domain.Unavailable {
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusTeapot:
		// Binance answers 418 once an IP is banned for ignoring 429s.
		return domain.NewUnavailable(source, domain.KindRateLimited, http.StatusText(status), err)
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return domain.NewUnavailable(source, domain.KindNotListed, http.StatusText(status), err)
	default:
		return domain.NewUnavailable(source, domain.KindTransport, http.StatusText(status), err)
	}
}
