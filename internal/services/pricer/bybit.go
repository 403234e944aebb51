package pricer

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/costbasis/internal/domain"
)

const (
	bybitDailyInterval = "D"
	bybitMaxPerRequest = 1000
	// retCode 10006 "Too many visits" is Bybit's rate limit signal.
	bybitTooManyVisits = "10006"
)

// Bybit uses the close of the daily V5 spot kline of pair as the price of the day.
// Klines are listed newest first, so only the last bybitMaxPerRequest days are reachable.
type Bybit struct {
	client *bybit.Client
	pair   domain.Pair
	now    func() time.Time
}

func NewBybit(client *bybit.Client, pair domain.Pair) *Bybit {
	return &Bybit{client: client, pair: pair, now: time.Now}
}

func (b *Bybit) Name() string { return "bybit" }

func (b *Bybit) HistoricalPrice(ctx context.Context, date domain.Date) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	days := int(b.now().UTC().Sub(date.Time()).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	if days > bybitMaxPerRequest {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "bybit keeps %d daily klines, %s is older", bybitMaxPerRequest, date)
	}

	result, err := b.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(b.pair.Symbol()),
		Interval: bybit.Interval(bybitDailyInterval),
		Limit:    &days,
	})
	if err != nil {
		if isBybitRateLimit(err) {
			return decimal.Zero, errors.Wrapf(ErrRateLimited, "bybit %s %s: %v", b.pair.Symbol(), date, err)
		}
		return decimal.Zero, errors.Wrapf(err, "failed to fetch klines from Bybit for %s", b.pair.String())
	}
	if result == nil {
		return decimal.Zero, errors.Errorf("empty result from Bybit API for %s", b.pair.String())
	}

	start, _ := dayRange(date)
	want := strconv.FormatInt(start, 10)
	for _, k := range result.Result.List {
		if k.StartTime != want {
			continue
		}
		price, err := decimal.NewFromString(k.Close)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "failed to parse close price: %s", k.Close)
		}
		return price, nil
	}

	return decimal.Zero, errors.Wrapf(ErrNoPrice, "bybit %s %s", b.pair.Symbol(), date)
}

func isBybitRateLimit(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, bybitTooManyVisits) || strings.Contains(strings.ToLower(msg), "too many visits")
}
