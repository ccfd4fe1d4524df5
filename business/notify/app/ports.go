// Package app contains the notification service and its transport port.
package app

import "context"

// Transport sends text to one destination on one messaging service.
// Failures should be *domain.DeliveryError so the caller can classify them.
type Transport interface {
	Name() string
	SendMessage(ctx context.Context, destination, text string) error
}

// Channel is a transport bound to a destination.
type Channel struct {
	Transport   Transport
	Destination string
	// Label names the channel in logs and metrics. Defaults to
	// "<transport>:<destination>"; set it when the destination is a secret.
	Label string
}

func (c Channel) String() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Transport.Name() + ":" + c.Destination
}
