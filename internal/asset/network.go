// Package asset describes the EVM networks the monitor quotes on and converts
// between on-chain integer units and decimal prices.
// The core uses big.Int for exact on-chain representation.
// decimal.Decimal is only used at boundaries (quotes, display).
package asset

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDOptimism = 10
	ChainIDBSC      = 56
	ChainIDPolygon  = 137
	ChainIDBase     = 8453
	ChainIDArbitrum = 42161
)

// Token is an ERC20 contract on one network.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// Network is an EVM chain the monitor can quote on.
type Network struct {
	// Name is the config key, e.g. "ethereum".
	Name    string
	ChainID uint64
	// ExplorerURL is the block explorer root without trailing slash.
	ExplorerURL string
	// Stable is the USD stablecoin quotes are denominated in.
	Stable Token
}

// TokenURL links to the explorer page of a token contract.
func (n Network) TokenURL(addr common.Address) string {
	return fmt.Sprintf("%s/token/%s", n.ExplorerURL, addr.Hex())
}

// String returns the network name.
func (n Network) String() string {
	return n.Name
}

// Well-known networks. USDT is the quote token wherever it is the deepest stable.
var (
	Ethereum = Network{
		Name:        "ethereum",
		ChainID:     ChainIDEthereum,
		ExplorerURL: "https://etherscan.io",
		Stable:      Token{Symbol: "USDT", Address: common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), Decimals: 6},
	}
	BSC = Network{
		Name:        "bsc",
		ChainID:     ChainIDBSC,
		ExplorerURL: "https://bscscan.com",
		Stable:      Token{Symbol: "USDT", Address: common.HexToAddress("0x55d398326f99059fF775485246999027B3197955"), Decimals: 18},
	}
	Polygon = Network{
		Name:        "polygon",
		ChainID:     ChainIDPolygon,
		ExplorerURL: "https://polygonscan.com",
		Stable:      Token{Symbol: "USDC.e", Address: common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"), Decimals: 6},
	}
	Arbitrum = Network{
		Name:        "arbitrum",
		ChainID:     ChainIDArbitrum,
		ExplorerURL: "https://arbiscan.io",
		Stable:      Token{Symbol: "USDT", Address: common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"), Decimals: 6},
	}
	Optimism = Network{
		Name:        "optimism",
		ChainID:     ChainIDOptimism,
		ExplorerURL: "https://optimistic.etherscan.io",
		Stable:      Token{Symbol: "USDT", Address: common.HexToAddress("0x94b008aA00579c1307B0EF2c499aD98a8ce58e58"), Decimals: 6},
	}
	Base = Network{
		Name:        "base",
		ChainID:     ChainIDBase,
		ExplorerURL: "https://basescan.org",
		Stable:      Token{Symbol: "USDC", Address: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), Decimals: 6},
	}
)

// NormalizeName lowercases and trims a network name from config.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
