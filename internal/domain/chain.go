package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransferTopic is the ERC-20 Transfer(address,address,uint256) event signature.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// StableAsset is a token pegged 1:1 to USD.
type StableAsset struct {
	Symbol   string
	Contract common.Address
	Decimals int32
}

// ChainProfile describes the quote side of the chain the engine runs against:
// its native asset, the wrapped native token and the recognised stable assets.
type ChainProfile struct {
	ChainID        int64
	NativeSymbol   string
	NativeDecimals int32
	WrappedNative  common.Address
	Stables        []StableAsset
}

// EthereumMainnet is the default chain profile.
func EthereumMainnet() ChainProfile {
	return ChainProfile{
		ChainID:        1,
		NativeSymbol:   "ETH",
		NativeDecimals: 18,
		WrappedNative:  common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"),
		Stables: []StableAsset{
			{Symbol: "USDC", Contract: common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"), Decimals: 6},
			{Symbol: "USDT", Contract: common.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec7"), Decimals: 6},
			{Symbol: "DAI", Contract: common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f"), Decimals: 18},
		},
	}
}

// Stable returns the stable asset emitted by contract, if recognised.
func (c ChainProfile) Stable(contract common.Address) (StableAsset, bool) {
	for _, s := range c.Stables {
		if s.Contract == contract {
			return s, true
		}
	}
	return StableAsset{}, false
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "0x") && common.IsHexAddress(s)
}
