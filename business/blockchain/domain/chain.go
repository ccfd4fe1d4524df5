// Package domain contains the core domain types for the blockchain context.
package domain

import "time"

// ConnectionState represents the state of one network's RPC client.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnected    ConnectionState = "connected"
	StateFailed       ConnectionState = "failed"
)

// ChainStatus is the result of probing one network's RPC endpoint.
type ChainStatus struct {
	Network   string
	State     ConnectionState
	Block     uint64
	Latency   time.Duration
	CheckedAt time.Time
	Err       error
}

// Healthy reports whether the probe reached the node.
func (s ChainStatus) Healthy() bool {
	return s.State == StateConnected && s.Err == nil
}
