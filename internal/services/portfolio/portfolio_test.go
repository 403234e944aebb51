package portfolio

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/costbasis/internal/domain"
	"github.com/vadiminshakov/costbasis/internal/services/oracle"
	"github.com/vadiminshakov/costbasis/internal/services/valuation"
	"github.com/vadiminshakov/costbasis/internal/storage/pricecache"
	portfolioMock "github.com/vadiminshakov/costbasis/mocks/portfolio"
	pricerMock "github.com/vadiminshakov/costbasis/mocks/pricer"
	valuationMock "github.com/vadiminshakov/costbasis/mocks/valuation"
)

const (
	day    = int64(24 * 60 * 60)
	tsBuy  = int64(1704067200) + 3600 // 2024-01-01 01:00 UTC
	tsSell = tsBuy + 10*day
)

var (
	wallet = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	token  = common.HexToAddress("0x0000000000000000000000000000000000000707")
	pool   = common.HexToAddress("0x00000000000000000000000000000000000b0b00")
	usdc   = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")

	hashBuy  = common.HexToHash("0xb1")
	hashBuy2 = common.HexToHash("0xb2")
	hashSell = common.HexToHash("0x51")
)

type fixture struct {
	transfers *portfolioMock.TransferFeed
	internal  *portfolioMock.InternalTransferFeed
	source    *pricerMock.Source
	txs       *valuationMock.TxLookup
	receipts  *valuationMock.ReceiptLookup
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		transfers: portfolioMock.NewTransferFeed(t),
		internal:  portfolioMock.NewInternalTransferFeed(t),
		source:    pricerMock.NewSource(t),
		txs:       valuationMock.NewTxLookup(t),
		receipts:  valuationMock.NewReceiptLookup(t),
	}
	f.source.On("Name").Return("fake").Maybe()

	o, err := oracle.New(zap.NewNop(), f.source, pricecache.NewMemoryStore(), oracle.WithRequestDelay(0))
	require.NoError(t, err)

	resolver := valuation.NewResolver(zap.NewNop(), f.txs, f.receipts, domain.EthereumMainnet(), nil)
	f.svc, err = NewService(zap.NewNop(), f.transfers, f.internal, o, resolver, nil)
	require.NoError(t, err)

	return f
}

func (f *fixture) priceEveryDay(usd int64) {
	f.source.On("HistoricalPrice", mock.Anything, mock.Anything).Return(decimal.NewFromInt(usd), nil).Maybe()
}

func (f *fixture) receipt(hash common.Hash, logs ...*types.Log) {
	f.receipts.On("ReceiptLogs", mock.Anything, hash).Return(logs, nil).Once()
}

func (f *fixture) plainTx(hash common.Hash) {
	f.txs.On("TransactionByHash", mock.Anything, hash).Return(domain.TxDetails{Hash: hash, Value: big.NewInt(0)}, nil).Once()
}

func units(s string, decimals int32) *big.Int {
	return decimal.RequireFromString(s).Shift(decimals).BigInt()
}

func tokenTransfer(hash common.Hash, ts int64, block uint64, from, to common.Address, amount string) domain.TransferEvent {
	return domain.TransferEvent{
		BlockNumber: block,
		Timestamp:   ts,
		TxHash:      hash,
		From:        from,
		To:          to,
		RawAmount:   units(amount, 18),
		Decimals:    18,
	}
}

func usdcLog(from, to common.Address, amount string) *types.Log {
	return &types.Log{
		Address: usdc,
		Topics:  []common.Hash{domain.TransferTopic, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    common.LeftPadBytes(units(amount, 6).Bytes(), 32),
	}
}

func eq(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestComputePortfolio_NoTransfers(t *testing.T) {
	f := newFixture(t)
	f.transfers.On("TokenTransfers", mock.Anything, wallet, token).Return([]domain.TransferEvent{}, nil).Once()

	p, err := f.svc.ComputePortfolio(context.Background(), wallet, token)
	require.NoError(t, err)

	assert.True(t, p.NoActivity)
	assert.NotEmpty(t, p.CalculationID)
	eq(t, "0", p.TotalTokens, "total tokens")
	eq(t, "0", p.AvgEntryPrice, "avg entry")
	eq(t, "0", p.RealizedProfitLoss, "realized")
	assert.Zero(t, p.TransactionCount)
	assert.Nil(t, p.FirstBuyTimestamp)
	assert.Nil(t, p.LastActivityTimestamp)
	assert.Empty(t, p.Errors)
	assert.Empty(t, p.Warnings)
	f.source.AssertNotCalled(t, "HistoricalPrice", mock.Anything, mock.Anything)
}

func TestComputePortfolio_BuyThenPartialSell(t *testing.T) {
	f := newFixture(t)
	f.priceEveryDay(3000)

	// feed order is not trusted
	f.transfers.On("TokenTransfers", mock.Anything, wallet, token).Return([]domain.TransferEvent{
		tokenTransfer(hashSell, tsSell, 200, wallet, pool, "400"),
		tokenTransfer(hashBuy, tsBuy, 100, pool, wallet, "1000"),
	}, nil).Once()
	f.internal.On("InternalTransfers", mock.Anything, wallet, uint64(100), uint64(200)).Return(nil, nil).Once()
	f.receipt(hashBuy, usdcLog(wallet, pool, "100"))
	f.receipt(hashSell, usdcLog(pool, wallet, "60"))

	p, err := f.svc.ComputePortfolio(context.Background(), wallet, token)
	require.NoError(t, err)

	assert.False(t, p.NoActivity)
	eq(t, "600", p.TotalTokens, "total tokens")
	eq(t, "0.1", p.AvgEntryPrice, "avg entry")
	eq(t, "100", p.TotalInvestedUSD, "invested")
	eq(t, "60", p.TotalReceivedUSD, "received")
	eq(t, "40", p.CostBasisSold, "cost basis sold")
	eq(t, "20", p.RealizedProfitLoss, "realized")
	assert.Equal(t, 2, p.TransactionCount)
	assert.Equal(t, 1, p.BuyCount)
	assert.Equal(t, 1, p.SellCount)
	require.NotNil(t, p.FirstBuyTimestamp)
	require.NotNil(t, p.LastActivityTimestamp)
	assert.Equal(t, tsBuy, *p.FirstBuyTimestamp)
	assert.Equal(t, tsSell, *p.LastActivityTimestamp)
	assert.Empty(t, p.Errors)
	assert.Empty(t, p.Warnings)

	eq(t, "60", p.UnrealizedPL(decimal.RequireFromString("0.2")), "unrealized")
}

func TestComputePortfolio_UnresolvedBuyKeepsSpend(t *testing.T) {
	f := newFixture(t)
	f.priceEveryDay(3000)

	f.transfers.On("TokenTransfers", mock.Anything, wallet, token).Return([]domain.TransferEvent{
		tokenTransfer(hashBuy, tsBuy, 100, pool, wallet, "1000"),
		tokenTransfer(hashBuy2, tsBuy+day, 150, pool, wallet, "500"),
	}, nil).Once()
	f.internal.On("InternalTransfers", mock.Anything, wallet, uint64(100), uint64(150)).Return(nil, nil).Once()
	f.receipt(hashBuy, usdcLog(wallet, pool, "100"))
	f.receipt(hashBuy2)
	f.plainTx(hashBuy2)

	p, err := f.svc.ComputePortfolio(context.Background(), wallet, token)
	require.NoError(t, err)

	eq(t, "1500", p.TokensBought, "bought")
	eq(t, "100", p.TotalInvestedUSD, "invested")
	assert.Equal(t, 2, p.BuyCount)
	require.Len(t, p.Warnings, 1)
	assert.Contains(t, p.Warnings[0], "Buy 2")
	assert.Contains(t, p.Warnings[0], "unable to determine cost")
	assert.Empty(t, p.Errors)
}

func TestComputePortfolio_SellWithInternalNativeProceeds(t *testing.T) {
	f := newFixture(t)
	f.priceEveryDay(3000)

	f.transfers.On("TokenTransfers", mock.Anything, wallet, token).Return([]domain.TransferEvent{
		tokenTransfer(hashBuy, tsBuy, 100, pool, wallet, "1000"),
		tokenTransfer(hashSell, tsSell, 200, wallet, pool, "400"),
	}, nil).Once()
	f.internal.On("InternalTransfers", mock.Anything, wallet, uint64(100), uint64(200)).Return([]domain.InternalTransfer{
		{TxHash: hashSell, From: pool, To: wallet, Value: units("0.01", 18)},
	}, nil).Once()
	f.receipt(hashBuy, usdcLog(wallet, pool, "100"))
	f.receipt(hashSell)

	p, err := f.svc.ComputePortfolio(context.Background(), wallet, token)
	require.NoError(t, err)

	eq(t, "30", p.TotalReceivedUSD, "received")
	eq(t, "-10", p.RealizedProfitLoss, "realized")
	assert.Empty(t, p.Warnings)
}

func TestComputePortfolio_NegativeHoldings(t *testing.T) {
	f := newFixture(t)
	f.priceEveryDay(3000)

	f.transfers.On("TokenTransfers", mock.Anything, wallet, token).Return([]domain.TransferEvent{
		tokenTransfer(hashBuy, tsBuy, 100, pool, wallet, "100"),
		tokenTransfer(hashSell, tsSell, 200, wallet, pool, "150"),
	}, nil).Once()
	f.internal.On("InternalTransfers", mock.Anything, wallet, uint64(100), uint64(200)).Return(nil, nil).Once()
	f.receipt(hashBuy, usdcLog(wallet, pool, "10"))
	f.receipt(hashSell, usdcLog(pool, wallet, "30"))

	p, err := f.svc.ComputePortfolio(context.Background(), wallet, token)
	require.NoError(t, err)

	eq(t, "-50", p.TotalTokens, "total tokens")
	assert.True(t, p.TokensBought.Sub(p.TokensSold).Equal(p.TotalTokens))
	assert.True(t, p.TotalReceivedUSD.Sub(p.TokensSold.Mul(p.AvgEntryPrice)).Equal(p.RealizedProfitLoss))
	assert.Contains(t, p.Warnings, "Negative holdings detected: -50.00 tokens (sold more than bought?)")
}

func TestComputePortfolio_SelfTransferOnlyTouchesActivity(t *testing.T) {
	f := newFixture(t)
	f.priceEveryDay(3000)

	f.transfers.On("TokenTransfers", mock.Anything, wallet, token).Return([]domain.TransferEvent{
		tokenTransfer(hashBuy, tsBuy, 100, pool, wallet, "10"),
		tokenTransfer(hashBuy2, tsSell, 300, wallet, wallet, "10"),
	}, nil).Once()
	f.internal.On("InternalTransfers", mock.Anything, wallet, uint64(100), uint64(300)).Return(nil, nil).Once()
	f.receipt(hashBuy, usdcLog(wallet, pool, "5"))

	p, err := f.svc.ComputePortfolio(context.Background(), wallet, token)
	require.NoError(t, err)

	eq(t, "10", p.TotalTokens, "total tokens")
	assert.Equal(t, 1, p.BuyCount)
	assert.Equal(t, 0, p.SellCount)
	assert.Equal(t, 2, p.TransactionCount)
	assert.Equal(t, tsSell, *p.LastActivityTimestamp)
	f.source.AssertNumberOfCalls(t, "HistoricalPrice", 1)
}

func TestComputePortfolio_InternalFeedFailureIsWarning(t *testing.T) {
	f := newFixture(t)
	f.priceEveryDay(3000)

	f.transfers.On("TokenTransfers", mock.Anything, wallet, token).Return([]domain.TransferEvent{
		tokenTransfer(hashBuy, tsBuy, 100, pool, wallet, "1000"),
	}, nil).Once()
	f.internal.On("InternalTransfers", mock.Anything, wallet, uint64(100), uint64(100)).Return(nil, errors.New("NOTOK")).Once()
	f.receipt(hashBuy, usdcLog(wallet, pool, "100"))

	p, err := f.svc.ComputePortfolio(context.Background(), wallet, token)
	require.NoError(t, err)

	eq(t, "100", p.TotalInvestedUSD, "invested")
	require.Len(t, p.Warnings, 1)
	assert.Contains(t, p.Warnings[0], "Internal transfers unavailable")
}

func TestComputePortfolio_FeedFailure(t *testing.T) {
	f := newFixture(t)
	f.transfers.On("TokenTransfers", mock.Anything, wallet, token).Return(nil, errors.New("etherscan down")).Once()

	p, err := f.svc.ComputePortfolio(context.Background(), wallet, token)
	require.Error(t, err)
	assert.Nil(t, p)
	assert.Contains(t, err.Error(), "etherscan down")
}

func TestComputePortfolio_AbandonedRequestGetsNoResult(t *testing.T) {
	f := newFixture(t)
	f.priceEveryDay(3000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.transfers.On("TokenTransfers", mock.Anything, wallet, token).Return([]domain.TransferEvent{
		tokenTransfer(hashBuy, tsBuy, 100, pool, wallet, "1000"),
		tokenTransfer(hashSell, tsSell, 200, wallet, pool, "400"),
	}, nil).Once()
	f.internal.On("InternalTransfers", mock.Anything, wallet, uint64(100), uint64(200)).Return(nil, nil).Once()
	f.receipts.On("ReceiptLogs", mock.Anything, hashBuy).
		Run(func(mock.Arguments) { cancel() }).
		Return([]*types.Log{usdcLog(wallet, pool, "100")}, nil).Once()

	p, err := f.svc.ComputePortfolio(ctx, wallet, token)
	require.Error(t, err)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSortChronologically(t *testing.T) {
	in := []domain.TransferEvent{
		{Timestamp: 20, BlockNumber: 5},
		{Timestamp: 10, BlockNumber: 9},
		{Timestamp: 10, BlockNumber: 3},
	}

	out := sortChronologically(in)

	assert.Equal(t, []uint64{3, 9, 5}, []uint64{out[0].BlockNumber, out[1].BlockNumber, out[2].BlockNumber})
	assert.Equal(t, uint64(5), in[0].BlockNumber, "input must not be reordered")
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(zap.NewNop(), nil, nil, nil, nil, nil)
	require.Error(t, err)
}
