package valuation

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
	valuationMock "github.com/vadiminshakov/costbasis/mocks/valuation"
)

var (
	wallet  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	pool    = common.HexToAddress("0x00000000000000000000000000000000000b0b00")
	txHash  = common.HexToHash("0xfeed")
	mainnet = domain.EthereumMainnet()

	usdc = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	dai  = common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	weth = common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
)

type fixedPrices struct {
	price domain.DailyPrice
}

func (p fixedPrices) PriceAt(ts int64) domain.DailyPrice {
	out := p.price
	out.Date = domain.DateOf(ts)
	return out
}

func priced(usd int64) fixedPrices {
	return fixedPrices{price: domain.DailyPrice{USD: decimal.NewFromInt(usd)}}
}

func units(s string, decimals int32) *big.Int {
	return decimal.RequireFromString(s).Shift(decimals).BigInt()
}

func transferLog(contract, from, to common.Address, raw *big.Int) *types.Log {
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			domain.TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:   common.LeftPadBytes(raw.Bytes(), 32),
		TxHash: txHash,
	}
}

func event() domain.TransferEvent {
	return domain.TransferEvent{
		BlockNumber: 19000000,
		Timestamp:   1705000000,
		TxHash:      txHash,
		From:        pool,
		To:          wallet,
		RawAmount:   units("1000", 18),
		Decimals:    18,
	}
}

func usdEq(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestResolve_Waterfall(t *testing.T) {
	tests := []struct {
		name      string
		direction domain.Direction
		logs      []*types.Log
		tx        *domain.TxDetails
		internal  InternalIndex
		wantUSD   string
		wantProv  domain.Provenance
	}{
		{
			name:      "stable paid on buy",
			direction: domain.DirectionSent,
			logs: []*types.Log{
				transferLog(usdc, wallet, pool, units("100", 6)),
				transferLog(usdc, pool, wallet, units("7", 6)),
			},
			wantUSD:  "100",
			wantProv: domain.ProvenanceStableLog,
		},
		{
			name:      "stables of different precision summed on sell",
			direction: domain.DirectionReceived,
			logs: []*types.Log{
				transferLog(dai, pool, wallet, units("60", 18)),
				transferLog(usdc, pool, wallet, units("0.5", 6)),
			},
			wantUSD:  "60.5",
			wantProv: domain.ProvenanceStableLog,
		},
		{
			name:      "native value on buy",
			direction: domain.DirectionSent,
			tx:        &domain.TxDetails{Hash: txHash, From: wallet, Value: units("0.5", 18)},
			wantUSD:   "1500",
			wantProv:  domain.ProvenanceNativeDirect,
		},
		{
			name:      "wrapped native on buy",
			direction: domain.DirectionSent,
			logs:      []*types.Log{transferLog(weth, wallet, pool, units("0.1", 18))},
			tx:        &domain.TxDetails{Hash: txHash, From: wallet, Value: big.NewInt(0)},
			wantUSD:   "300",
			wantProv:  domain.ProvenanceWrappedNativeLog,
		},
		{
			name:      "wrapped native on sell",
			direction: domain.DirectionReceived,
			logs:      []*types.Log{transferLog(weth, pool, wallet, units("0.2", 18))},
			wantUSD:   "600",
			wantProv:  domain.ProvenanceWrappedNativeLog,
		},
		{
			name:      "internal native on sell",
			direction: domain.DirectionReceived,
			internal:  InternalIndex{txHash: units("0.25", 18)},
			wantUSD:   "750",
			wantProv:  domain.ProvenanceInternalNative,
		},
		{
			name:      "native value is not proceeds of a sell",
			direction: domain.DirectionReceived,
			tx:        &domain.TxDetails{Hash: txHash, From: wallet, Value: units("1", 18)},
			wantUSD:   "0",
			wantProv:  domain.ProvenanceUnresolved,
		},
		{
			name:      "internal native is not cost of a buy",
			direction: domain.DirectionSent,
			tx:        &domain.TxDetails{Hash: txHash, From: pool, Value: big.NewInt(0)},
			internal:  InternalIndex{txHash: units("1", 18)},
			wantUSD:   "0",
			wantProv:  domain.ProvenanceUnresolved,
		},
		{
			name:      "foreign stable transfer ignored",
			direction: domain.DirectionSent,
			logs:      []*types.Log{transferLog(usdc, pool, common.HexToAddress("0x1234"), units("100", 6))},
			tx:        &domain.TxDetails{Hash: txHash, From: pool, Value: big.NewInt(0)},
			wantUSD:   "0",
			wantProv:  domain.ProvenanceUnresolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := valuationMock.NewTxLookup(t)
			receipts := valuationMock.NewReceiptLookup(t)

			receipts.On("ReceiptLogs", mock.Anything, txHash).Return(tt.logs, nil).Maybe()
			if tt.tx != nil {
				txs.On("TransactionByHash", mock.Anything, txHash).Return(*tt.tx, nil).Maybe()
			}

			r := NewResolver(zap.NewNop(), txs, receipts, mainnet, nil)
			got := r.Session(priced(3000), tt.internal).Resolve(context.Background(), event(), wallet, tt.direction)

			assert.Equal(t, tt.wantProv, got.Provenance)
			usdEq(t, tt.wantUSD, got.USD)
			assert.Equal(t, tt.wantProv != domain.ProvenanceUnresolved, got.Resolved())
			assert.LessOrEqual(t, len(receipts.Calls), 1, "receipt must be fetched at most once per transfer")
			assert.LessOrEqual(t, len(txs.Calls), 1, "transaction must be fetched at most once per transfer")
		})
	}
}

func TestResolve_StableWinsWithoutTransactionLookup(t *testing.T) {
	txs := valuationMock.NewTxLookup(t)
	receipts := valuationMock.NewReceiptLookup(t)
	receipts.On("ReceiptLogs", mock.Anything, txHash).
		Return([]*types.Log{transferLog(usdc, wallet, pool, units("100", 6))}, nil).Once()

	got := NewResolver(zap.NewNop(), txs, receipts, mainnet, nil).
		Session(priced(3000), nil).
		Resolve(context.Background(), event(), wallet, domain.DirectionSent)

	assert.Equal(t, domain.ProvenanceStableLog, got.Provenance)
	txs.AssertNotCalled(t, "TransactionByHash", mock.Anything, mock.Anything)
}

func TestResolve_LookupFailuresBecomeNotes(t *testing.T) {
	txs := valuationMock.NewTxLookup(t)
	receipts := valuationMock.NewReceiptLookup(t)
	receipts.On("ReceiptLogs", mock.Anything, txHash).Return(nil, errors.New("receipt not found")).Once()
	txs.On("TransactionByHash", mock.Anything, txHash).Return(domain.TxDetails{}, errors.New("timeout")).Once()

	got := NewResolver(zap.NewNop(), txs, receipts, mainnet, nil).
		Session(priced(3000), nil).
		Resolve(context.Background(), event(), wallet, domain.DirectionSent)

	assert.False(t, got.Resolved())
	assert.Equal(t, domain.ProvenanceUnresolved, got.Provenance)
	require.Len(t, got.Notes, 2)
	assert.Contains(t, got.Notes[0], "receipt lookup failed")
	assert.Contains(t, got.Notes[1], "transaction lookup failed")
}

func TestResolve_ReceiptFailureFallsThroughToNativeValue(t *testing.T) {
	txs := valuationMock.NewTxLookup(t)
	receipts := valuationMock.NewReceiptLookup(t)
	receipts.On("ReceiptLogs", mock.Anything, txHash).Return(nil, errors.New("502 bad gateway")).Once()
	txs.On("TransactionByHash", mock.Anything, txHash).
		Return(domain.TxDetails{Hash: txHash, From: wallet, Value: units("1", 18)}, nil).Once()

	got := NewResolver(zap.NewNop(), txs, receipts, mainnet, nil).
		Session(priced(2000), nil).
		Resolve(context.Background(), event(), wallet, domain.DirectionSent)

	assert.Equal(t, domain.ProvenanceNativeDirect, got.Provenance)
	usdEq(t, "2000", got.USD)
	require.Len(t, got.Notes, 1)
	assert.Contains(t, got.Notes[0], "receipt lookup failed")
}

func TestResolve_FallbackPriceIsNoted(t *testing.T) {
	txs := valuationMock.NewTxLookup(t)
	receipts := valuationMock.NewReceiptLookup(t)
	receipts.On("ReceiptLogs", mock.Anything, txHash).Return(nil, nil).Once()
	txs.On("TransactionByHash", mock.Anything, txHash).
		Return(domain.TxDetails{Hash: txHash, From: wallet, Value: units("2", 18)}, nil).Once()

	prices := fixedPrices{price: domain.DailyPrice{USD: decimal.NewFromInt(2400), Fallback: true}}
	got := NewResolver(zap.NewNop(), txs, receipts, mainnet, nil).
		Session(prices, nil).
		Resolve(context.Background(), event(), wallet, domain.DirectionSent)

	assert.Equal(t, domain.ProvenanceNativeDirect, got.Provenance)
	usdEq(t, "4800", got.USD)
	require.Len(t, got.Notes, 1)
	assert.Contains(t, got.Notes[0], "fallback $2400.00")
}

func TestIndexInternal(t *testing.T) {
	other := common.HexToHash("0xbeef")
	idx := IndexInternal([]domain.InternalTransfer{
		{TxHash: txHash, From: pool, To: wallet, Value: units("0.1", 18)},
		{TxHash: txHash, From: pool, To: wallet, Value: units("0.05", 18)},
		{TxHash: txHash, From: wallet, To: pool, Value: units("9", 18)},
		{TxHash: other, From: pool, To: pool, Value: units("1", 18)},
		{TxHash: other, From: pool, To: wallet, Value: big.NewInt(0)},
	}, wallet)

	require.Len(t, idx, 1)
	assert.Equal(t, units("0.15", 18).String(), idx[txHash].String())
}

func TestMatchTransfer(t *testing.T) {
	l := transferLog(usdc, wallet, pool, units("5", 6))

	amount, ok := matchTransfer(l, wallet, domain.DirectionSent)
	require.True(t, ok)
	assert.Equal(t, "5000000", amount.String())

	_, ok = matchTransfer(l, wallet, domain.DirectionReceived)
	assert.False(t, ok)

	approval := &types.Log{Address: usdc, Topics: []common.Hash{common.HexToHash("0x8c5be1e5"), l.Topics[1], l.Topics[2]}, Data: l.Data}
	_, ok = matchTransfer(approval, wallet, domain.DirectionSent)
	assert.False(t, ok)
}
