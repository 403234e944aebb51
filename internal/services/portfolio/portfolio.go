// Package portfolio computes the cost-basis position of a wallet in one token.
package portfolio

import (
	"context"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/costbasis/internal/domain"
	"github.com/vadiminshakov/costbasis/internal/observability"
	"github.com/vadiminshakov/costbasis/internal/services/diagnostics"
	"github.com/vadiminshakov/costbasis/internal/services/oracle"
	"github.com/vadiminshakov/costbasis/internal/services/valuation"
)

// TransferFeed lists the token transfers touching a wallet, oldest first.
type TransferFeed interface {
	TokenTransfers(ctx context.Context, wallet, token common.Address) ([]domain.TransferEvent, error)
}

// InternalTransferFeed lists contract-induced native transfers of a wallet in a block range.
type InternalTransferFeed interface {
	InternalTransfers(ctx context.Context, wallet common.Address, fromBlock, toBlock uint64) ([]domain.InternalTransfer, error)
}

// PriceResolver prices the days of a set of timestamps.
type PriceResolver interface {
	BatchResolve(ctx context.Context, timestamps []int64) *oracle.PriceBook
}

// Service runs portfolio computations. Each computation is sequential:
// transfers are valued and folded one after another.
type Service struct {
	logger    *zap.Logger
	transfers TransferFeed
	internal  InternalTransferFeed
	prices    PriceResolver
	resolver  *valuation.Resolver
	validator *diagnostics.Validator
	metrics   *observability.Metrics
}

// NewService creates a portfolio service. internal may be nil, in which case
// native proceeds of sells are resolved from logs and transaction values only.
func NewService(
	logger *zap.Logger,
	transfers TransferFeed,
	internal InternalTransferFeed,
	prices PriceResolver,
	resolver *valuation.Resolver,
	metrics *observability.Metrics,
) (*Service, error) {
	if transfers == nil {
		return nil, errors.New("transfer feed is required")
	}
	if prices == nil {
		return nil, errors.New("price resolver is required")
	}
	if resolver == nil {
		return nil, errors.New("valuation resolver is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		logger:    logger,
		transfers: transfers,
		internal:  internal,
		prices:    prices,
		resolver:  resolver,
		validator: diagnostics.NewValidator(logger),
		metrics:   metrics,
	}, nil
}

// ComputePortfolio reconciles the position of wallet in token. Partial data never
// fails the computation: it shows up in the result's warnings and errors. An error
// is returned only when the transfer feed fails or ctx is done before the result is ready.
func (s *Service) ComputePortfolio(ctx context.Context, wallet, token common.Address) (*domain.Portfolio, error) {
	started := time.Now()
	calcID := uuid.NewString()
	logger := s.logger.With(
		zap.String("calculation_id", calcID),
		zap.String("wallet", wallet.Hex()),
		zap.String("token", token.Hex()))

	events, err := s.transfers.TokenTransfers(ctx, wallet, token)
	if err != nil {
		s.metrics.Computation("failed", 0)
		return nil, errors.Wrap(err, "fetch token transfers")
	}
	if err := ctx.Err(); err != nil {
		s.metrics.Computation("abandoned", 0)
		return nil, errors.Wrap(err, "computation abandoned")
	}

	if len(events) == 0 {
		logger.Info("no transfers found")
		s.metrics.Computation("no_activity", 0)
		p := domain.EmptyPortfolio(wallet.Hex(), token.Hex())
		p.CalculationID = calcID
		return p, nil
	}

	events = sortChronologically(events)

	ledger := domain.NewLedgerState()
	internal := s.internalIndex(ctx, logger, ledger, wallet, events)

	book := s.prices.BatchResolve(ctx, pricedTimestamps(events, wallet))
	session := s.resolver.Session(book, internal)

	for _, t := range events {
		if err := ctx.Err(); err != nil {
			s.metrics.Computation("abandoned", len(events))
			logger.Info("computation abandoned", zap.Int("folded", ledger.TransferCount))
			return nil, errors.Wrap(err, "computation abandoned")
		}

		kind := domain.Classify(t, wallet)
		value := domain.Unresolved()
		if dir, ok := kind.Direction(); ok {
			value = session.Resolve(ctx, t, wallet, dir)
		}
		ledger.Fold(t, kind, value)
	}

	ledger.Finalize()
	s.validator.Validate(ledger)

	if err := ctx.Err(); err != nil {
		s.metrics.Computation("abandoned", len(events))
		return nil, errors.Wrap(err, "computation abandoned")
	}

	p := domain.NewPortfolio(wallet.Hex(), token.Hex(), ledger)
	p.CalculationID = calcID

	logger.Info("portfolio computed",
		zap.Duration("took", time.Since(started)),
		zap.String("total_tokens", p.TotalTokens.StringFixed(2)),
		zap.String("avg_entry_price", p.AvgEntryPrice.StringFixed(8)),
		zap.String("total_invested_usd", p.TotalInvestedUSD.StringFixed(2)),
		zap.String("total_received_usd", p.TotalReceivedUSD.StringFixed(2)),
		zap.String("realized_pl", p.RealizedProfitLoss.StringFixed(2)),
		zap.Int("transfers", p.TransactionCount),
		zap.Int("buys", p.BuyCount),
		zap.Int("sells", p.SellCount),
		zap.Int("price_days", book.Len()),
		zap.Int("errors", len(p.Errors)),
		zap.Int("warnings", len(p.Warnings)))
	s.metrics.Computation("ok", len(events))

	return p, nil
}

// internalIndex fetches native transfers over the block span of events in one call.
func (s *Service) internalIndex(
	ctx context.Context,
	logger *zap.Logger,
	ledger *domain.LedgerState,
	wallet common.Address,
	events []domain.TransferEvent,
) valuation.InternalIndex {
	if s.internal == nil {
		return nil
	}

	from, to := events[0].BlockNumber, events[len(events)-1].BlockNumber
	transfers, err := s.internal.InternalTransfers(ctx, wallet, from, to)
	if err != nil {
		logger.Warn("internal transfers unavailable", zap.Uint64("from_block", from), zap.Uint64("to_block", to), zap.Error(err))
		ledger.Warn("Internal transfers unavailable, native proceeds of sells may be missing: " + err.Error())
		return nil
	}

	return valuation.IndexInternal(transfers, wallet)
}

func sortChronologically(in []domain.TransferEvent) []domain.TransferEvent {
	events := append([]domain.TransferEvent(nil), in...)
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].BlockNumber < events[j].BlockNumber
	})
	return events
}

// pricedTimestamps returns the timestamps of transfers that get valued.
func pricedTimestamps(events []domain.TransferEvent, wallet common.Address) []int64 {
	out := make([]int64, 0, len(events))
	for _, t := range events {
		if _, ok := domain.Classify(t, wallet).Direction(); ok {
			out = append(out, t.Timestamp)
		}
	}
	return out
}
