package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fd1az/spread-monitor/internal/apperror"
)

// ErrInvalidDestination marks a destination the transport can never reach.
var ErrInvalidDestination = errors.New("invalid destination")

// DeliveryError is returned by transports for a failed send.
type DeliveryError struct {
	Channel string
	// StatusCode is zero when no response was received.
	StatusCode int
	// RetryAfter is the server's requested wait, zero if none.
	RetryAfter time.Duration
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Channel, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Class says whether a failed delivery is worth retrying.
type Class int

const (
	Transient Class = iota
	Permanent
)

func (c Class) String() string {
	if c == Permanent {
		return "permanent"
	}
	return "transient"
}

// Code maps the class to its apperror code.
func (c Class) Code() apperror.Code {
	if c == Permanent {
		return apperror.CodeNotificationPermanent
	}
	return apperror.CodeNotificationTransient
}

// Classify inspects err. Timeouts, network errors, 429 and 5xx are
// transient. Other 4xx, invalid destinations and anything unrecognised are
// permanent.
func Classify(err error) Class {
	if errors.Is(err, ErrInvalidDestination) {
		return Permanent
	}
	var de *DeliveryError
	if errors.As(err, &de) && de.StatusCode != 0 {
		switch {
		case de.StatusCode == http.StatusTooManyRequests, de.StatusCode >= 500:
			return Transient
		case de.StatusCode >= 400:
			return Permanent
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return Transient
	}
	return Permanent
}

// RetryAfter returns the server-requested wait carried by err, if any.
func RetryAfter(err error) time.Duration {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.RetryAfter
	}
	return 0
}
