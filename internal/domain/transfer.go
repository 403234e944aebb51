package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TransferEvent is one ERC-20 movement of the tracked token.
type TransferEvent struct {
	BlockNumber uint64
	// Timestamp block time in unix seconds.
	Timestamp int64
	TxHash    common.Hash
	From      common.Address
	To        common.Address
	RawAmount *big.Int
	Decimals  int32
}

// Amount returns the decimal-adjusted token amount.
func (t TransferEvent) Amount() decimal.Decimal {
	return ScaleAmount(t.RawAmount, t.Decimals)
}

// Date returns the UTC calendar date of the transfer.
func (t TransferEvent) Date() Date {
	return DateOf(t.Timestamp)
}

// InternalTransfer is a native-asset movement induced by a contract call.
type InternalTransfer struct {
	TxHash common.Hash
	From   common.Address
	To     common.Address
	Value  *big.Int
}

// TxDetails is the subset of a transaction the valuation needs.
type TxDetails struct {
	Hash common.Hash
	// From is zero when the source does not report the sender.
	From common.Address
	// To is nil for contract creation.
	To    *common.Address
	Value *big.Int
}

// ScaleAmount converts a raw integer amount into a decimal with the given precision.
func ScaleAmount(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}
