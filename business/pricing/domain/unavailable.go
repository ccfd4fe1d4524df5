package domain

import (
	"errors"
	"fmt"
)

// Kind tags why a source produced no quote.
type Kind int

const (
	KindTransport Kind = iota
	KindTimeout
	KindRateLimited
	KindNotListed
	KindParseError
	KindCircuitOpen
	KindUnsupported
)

var kindNames = map[Kind]string{
	KindTransport:   "transport",
	KindTimeout:     "timeout",
	KindRateLimited: "rate_limited",
	KindNotListed:   "not_listed",
	KindParseError:  "parse_error",
	KindCircuitOpen: "circuit_open",
	KindUnsupported: "unsupported",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Unavailable is the only error a quote source returns.
type Unavailable struct {
	Source string
	Kind   Kind
	Reason string
	Err    error
}

// NewUnavailable creates an Unavailable.
func NewUnavailable(source string, kind Kind, reason string, err error) *Unavailable {
	return &Unavailable{Source: source, Kind: kind, Reason: reason, Err: err}
}

func (u *Unavailable) Error() string {
	msg := fmt.Sprintf("%s unavailable (%s)", u.Source, u.Kind)
	if u.Reason != "" {
		msg += ": " + u.Reason
	}
	if u.Err != nil {
		msg += ": " + u.Err.Error()
	}
	return msg
}

func (u *Unavailable) Unwrap() error {
	return u.Err
}

// AsUnavailable extracts an *Unavailable from err.
func AsUnavailable(err error) (*Unavailable, bool) {
	var u *Unavailable
	if errors.As(err, &u) {
		return u, true
	}
	return nil, false
}
