// Package valuation determines the USD value paid or received for a single token transfer.
package valuation

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/costbasis/internal/domain"
	"github.com/vadiminshakov/costbasis/internal/observability"
)

// TxLookup fetches transaction details by hash.
type TxLookup interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (domain.TxDetails, error)
}

// ReceiptLookup fetches the event logs emitted by a transaction.
type ReceiptLookup interface {
	ReceiptLogs(ctx context.Context, hash common.Hash) ([]*types.Log, error)
}

// PriceTable returns the native USD price on the day of a timestamp.
type PriceTable interface {
	PriceAt(ts int64) domain.DailyPrice
}

// InternalIndex maps a transaction hash to the native amount (in wei)
// the wallet received through internal transfers of that transaction.
type InternalIndex map[common.Hash]*big.Int

// IndexInternal builds the InternalIndex of wallet from an internal-transfer feed.
func IndexInternal(transfers []domain.InternalTransfer, wallet common.Address) InternalIndex {
	idx := make(InternalIndex)
	for _, it := range transfers {
		if it.To != wallet || it.Value == nil || it.Value.Sign() <= 0 {
			continue
		}
		sum, ok := idx[it.TxHash]
		if !ok {
			sum = new(big.Int)
			idx[it.TxHash] = sum
		}
		sum.Add(sum, it.Value)
	}
	return idx
}

// Strategy is one source of value in the waterfall. TryResolve returns the USD
// amount it found, or false when the source does not apply to the transfer.
type Strategy interface {
	Provenance() domain.Provenance
	TryResolve(ctx context.Context, in *Input) (decimal.Decimal, bool)
}

// DefaultStrategies returns the waterfall in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		stableLogStrategy{},
		nativeDirectStrategy{},
		wrappedNativeLogStrategy{},
		internalNativeStrategy{},
	}
}

// Resolver runs valuation strategies in priority order.
type Resolver struct {
	txs        TxLookup
	receipts   ReceiptLookup
	chain      domain.ChainProfile
	strategies []Strategy
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewResolver creates a Resolver using the default waterfall.
func NewResolver(logger *zap.Logger, txs TxLookup, receipts ReceiptLookup, chain domain.ChainProfile, metrics *observability.Metrics) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		txs:        txs,
		receipts:   receipts,
		chain:      chain,
		strategies: DefaultStrategies(),
		logger:     logger,
		metrics:    metrics,
	}
}

// WithStrategies replaces the waterfall.
func (r *Resolver) WithStrategies(strategies ...Strategy) *Resolver {
	r.strategies = strategies
	return r
}

// Session binds the resolver to the prices and internal transfers of one computation.
type Session struct {
	resolver *Resolver
	prices   PriceTable
	internal InternalIndex
}

// Session starts a valuation session.
func (r *Resolver) Session(prices PriceTable, internal InternalIndex) *Session {
	if internal == nil {
		internal = InternalIndex{}
	}
	return &Session{resolver: r, prices: prices, internal: internal}
}

// Resolve values transfer t for wallet in the given direction. Lookup failures
// never surface as errors; they end up as notes on the result.
func (s *Session) Resolve(ctx context.Context, t domain.TransferEvent, wallet common.Address, direction domain.Direction) domain.ValuationResult {
	in := &Input{
		Transfer:  t,
		Wallet:    wallet,
		Direction: direction,
		Chain:     s.resolver.chain,
		session:   s,
	}

	for _, st := range s.resolver.strategies {
		if ctx.Err() != nil {
			break
		}

		usd, ok := st.TryResolve(ctx, in)
		if !ok || !usd.IsPositive() {
			continue
		}

		s.resolver.metrics.Valuation(string(st.Provenance()))
		s.resolver.logger.Debug("transfer valued",
			zap.Stringer("tx", t.TxHash),
			zap.String("direction", string(direction)),
			zap.String("provenance", string(st.Provenance())),
			zap.String("usd", usd.String()))

		return domain.ValuationResult{USD: usd, Provenance: st.Provenance(), Notes: in.notes}
	}

	s.resolver.metrics.Valuation(string(domain.ProvenanceUnresolved))
	return domain.Unresolved(in.notes...)
}
