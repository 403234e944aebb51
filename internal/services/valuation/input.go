package valuation

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/costbasis/internal/domain"
)

// Input is what strategies see of one transfer. Transaction and receipt
// lookups are fetched at most once per transfer and shared by all strategies.
type Input struct {
	Transfer  domain.TransferEvent
	Wallet    common.Address
	Direction domain.Direction
	Chain     domain.ChainProfile

	session *Session

	txFetched bool
	tx        *domain.TxDetails

	logsFetched bool
	logs        []*types.Log

	priceNoted bool
	notes      []string
}

// Note attaches a diagnostic to the result.
func (in *Input) Note(format string, args ...any) {
	in.notes = append(in.notes, fmt.Sprintf(format, args...))
}

// Tx returns the transaction details of the transfer, or nil when unavailable.
func (in *Input) Tx(ctx context.Context) *domain.TxDetails {
	if in.txFetched {
		return in.tx
	}
	in.txFetched = true

	r := in.session.resolver
	if r.txs == nil {
		return nil
	}

	tx, err := r.txs.TransactionByHash(ctx, in.Transfer.TxHash)
	if err != nil {
		r.logger.Warn("transaction lookup failed", zap.Stringer("tx", in.Transfer.TxHash), zap.Error(err))
		in.Note("transaction lookup failed: %v", err)
		return nil
	}
	in.tx = &tx

	return in.tx
}

// Logs returns the receipt logs of the transfer's transaction, or nil when unavailable.
func (in *Input) Logs(ctx context.Context) []*types.Log {
	if in.logsFetched {
		return in.logs
	}
	in.logsFetched = true

	r := in.session.resolver
	if r.receipts == nil {
		return nil
	}

	logs, err := r.receipts.ReceiptLogs(ctx, in.Transfer.TxHash)
	if err != nil {
		r.logger.Warn("receipt lookup failed", zap.Stringer("tx", in.Transfer.TxHash), zap.Error(err))
		in.Note("receipt lookup failed: %v", err)
		return nil
	}
	in.logs = logs

	return in.logs
}

// InternalNative returns the native wei the wallet received via internal transfers of the transaction.
func (in *Input) InternalNative() *big.Int {
	return in.session.internal[in.Transfer.TxHash]
}

// NativeUSD converts a native amount in wei to USD at the price of the transfer's day.
func (in *Input) NativeUSD(wei *big.Int) decimal.Decimal {
	amount := domain.ScaleAmount(wei, in.Chain.NativeDecimals)
	if !amount.IsPositive() || in.session.prices == nil {
		return decimal.Zero
	}

	price := in.session.prices.PriceAt(in.Transfer.Timestamp)
	if price.Fallback && !in.priceNoted {
		in.priceNoted = true
		in.Note("%s price for %s unavailable, valued at fallback $%s", in.Chain.NativeSymbol, price.Date, price.USD.StringFixed(2))
	}

	return amount.Mul(price.USD)
}
