package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	testWallet = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testPool   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func transfer(hash byte, ts int64, from, to common.Address, amount int64) TransferEvent {
	return TransferEvent{
		BlockNumber: uint64(ts),
		Timestamp:   ts,
		TxHash:      common.BytesToHash([]byte{hash}),
		From:        from,
		To:          to,
		RawAmount:   tokens(amount),
		Decimals:    18,
	}
}

func usd(s string) ValuationResult {
	return ValuationResult{USD: decimal.RequireFromString(s), Provenance: ProvenanceStableLog}
}
