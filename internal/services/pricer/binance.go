package pricer

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/costbasis/internal/domain"
)

const (
	binanceDailyInterval   = "1d"
	binanceTooManyRequests = -1003
)

// Binance uses the close of the daily kline of pair as the price of the day.
type Binance struct {
	client *binance.Client
	pair   domain.Pair
}

func NewBinance(client *binance.Client, pair domain.Pair) *Binance {
	return &Binance{client: client, pair: pair}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) HistoricalPrice(ctx context.Context, date domain.Date) (decimal.Decimal, error) {
	start, end := dayRange(date)

	klines, err := b.client.NewKlinesService().Symbol(b.pair.Symbol()).
		Interval(binanceDailyInterval).
		StartTime(start).
		EndTime(end).
		Limit(1).
		Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == binanceTooManyRequests {
			return decimal.Zero, errors.Wrapf(ErrRateLimited, "binance %s %s: %s", b.pair.Symbol(), date, apiErr.Message)
		}
		return decimal.Zero, errors.Wrapf(err, "binance klines %s %s", b.pair.Symbol(), date)
	}

	if len(klines) == 0 {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "binance %s %s", b.pair.Symbol(), date)
	}

	price, err := decimal.NewFromString(klines[0].Close)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to parse close price: %s", klines[0].Close)
	}

	return price, nil
}
