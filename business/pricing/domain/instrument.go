// Package domain contains the core domain types for the pricing context.
package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/spread-monitor/internal/asset"
)

const defaultTokenDecimals = 18

// Instrument is one monitored asset, identified by its symbol.
type Instrument struct {
	Symbol string
	Base   string
	Quote  string

	contracts map[string]common.Address
	decimals  map[string]uint8
}

// NewInstrument parses "BASE/QUOTE" and the per-network token contracts.
func NewInstrument(symbol string, contracts map[string]string, decimals map[string]uint8) (Instrument, error) {
	base, quote, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(symbol)), "/")
	if !ok || base == "" || quote == "" {
		return Instrument{}, fmt.Errorf("instrument %q: want BASE/QUOTE", symbol)
	}

	inst := Instrument{
		Symbol:    base + "/" + quote,
		Base:      base,
		Quote:     quote,
		contracts: make(map[string]common.Address, len(contracts)),
		decimals:  make(map[string]uint8, len(decimals)),
	}
	for network, addr := range contracts {
		if !common.IsHexAddress(addr) {
			return Instrument{}, fmt.Errorf("instrument %s: invalid contract on %s: %q", inst.Symbol, network, addr)
		}
		inst.contracts[asset.NormalizeName(network)] = common.HexToAddress(addr)
	}
	for network, d := range decimals {
		inst.decimals[asset.NormalizeName(network)] = d
	}
	return inst, nil
}

// Contract returns the token contract on network.
func (i Instrument) Contract(network string) (common.Address, bool) {
	addr, ok := i.contracts[asset.NormalizeName(network)]
	return addr, ok
}

// Decimals returns the token decimals on network, 18 when not configured.
func (i Instrument) Decimals(network string) uint8 {
	if d, ok := i.decimals[asset.NormalizeName(network)]; ok {
		return d
	}
	return defaultTokenDecimals
}

// Networks returns the networks the instrument has a contract on, sorted.
func (i Instrument) Networks() []string {
	out := make([]string, 0, len(i.contracts))
	for n := range i.contracts {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (i Instrument) String() string {
	return i.Symbol
}
