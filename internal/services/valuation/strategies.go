package valuation

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/costbasis/internal/domain"
)

// stableLogStrategy sums stable asset Transfer logs moving between the wallet and anyone.
// Stable assets are pegged 1:1, no price lookup is involved.
type stableLogStrategy struct{}

func (stableLogStrategy) Provenance() domain.Provenance { return domain.ProvenanceStableLog }

func (stableLogStrategy) TryResolve(ctx context.Context, in *Input) (decimal.Decimal, bool) {
	total := decimal.Zero
	for _, l := range in.Logs(ctx) {
		stable, ok := in.Chain.Stable(l.Address)
		if !ok {
			continue
		}
		if amount, ok := matchTransfer(l, in.Wallet, in.Direction); ok {
			total = total.Add(domain.ScaleAmount(amount, stable.Decimals))
		}
	}
	return total, total.IsPositive()
}

// nativeDirectStrategy values the native value attached to the transaction itself.
// Only a buy pays with it: on a sell the attached value is still paid by the wallet.
type nativeDirectStrategy struct{}

func (nativeDirectStrategy) Provenance() domain.Provenance { return domain.ProvenanceNativeDirect }

func (nativeDirectStrategy) TryResolve(ctx context.Context, in *Input) (decimal.Decimal, bool) {
	if in.Direction != domain.DirectionSent {
		return decimal.Zero, false
	}

	tx := in.Tx(ctx)
	if tx == nil || tx.Value == nil || tx.Value.Sign() <= 0 {
		return decimal.Zero, false
	}

	usd := in.NativeUSD(tx.Value)
	return usd, usd.IsPositive()
}

// wrappedNativeLogStrategy sums wrapped native Transfer logs in the matching direction.
type wrappedNativeLogStrategy struct{}

func (wrappedNativeLogStrategy) Provenance() domain.Provenance {
	return domain.ProvenanceWrappedNativeLog
}

func (wrappedNativeLogStrategy) TryResolve(ctx context.Context, in *Input) (decimal.Decimal, bool) {
	total := new(big.Int)
	for _, l := range in.Logs(ctx) {
		if l.Address != in.Chain.WrappedNative {
			continue
		}
		if amount, ok := matchTransfer(l, in.Wallet, in.Direction); ok {
			total.Add(total, amount)
		}
	}
	if total.Sign() <= 0 {
		return decimal.Zero, false
	}

	usd := in.NativeUSD(total)
	return usd, usd.IsPositive()
}

// internalNativeStrategy values native proceeds delivered by contract calls, sells only.
type internalNativeStrategy struct{}

func (internalNativeStrategy) Provenance() domain.Provenance {
	return domain.ProvenanceInternalNative
}

func (internalNativeStrategy) TryResolve(_ context.Context, in *Input) (decimal.Decimal, bool) {
	if in.Direction != domain.DirectionReceived {
		return decimal.Zero, false
	}

	wei := in.InternalNative()
	if wei == nil || wei.Sign() <= 0 {
		return decimal.Zero, false
	}

	usd := in.NativeUSD(wei)
	return usd, usd.IsPositive()
}

// matchTransfer decodes an ERC-20 Transfer log and returns its raw amount when
// the wallet is the sender (sent) or the recipient (received).
func matchTransfer(l *types.Log, wallet common.Address, dir domain.Direction) (*big.Int, bool) {
	if l == nil || len(l.Topics) < 3 || l.Topics[0] != domain.TransferTopic {
		return nil, false
	}

	from := common.BytesToAddress(l.Topics[1].Bytes())
	to := common.BytesToAddress(l.Topics[2].Bytes())

	switch dir {
	case domain.DirectionSent:
		if from != wallet {
			return nil, false
		}
	case domain.DirectionReceived:
		if to != wallet {
			return nil, false
		}
	default:
		return nil, false
	}

	amount := new(big.Int).SetBytes(l.Data)
	return amount, amount.Sign() > 0
}
