// Package pricer implements remote sources of historical native asset prices.
package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/costbasis/internal/domain"
)

var (
	// ErrRateLimited is returned when the remote source asked the caller to slow down.
	ErrRateLimited = errors.New("rate limited by price source")
	// ErrNoPrice is returned when the source has no price for the requested day.
	ErrNoPrice = errors.New("no price for date")
)

// Source resolves the USD price of the native asset on a past day.
type Source interface {
	Name() string
	HistoricalPrice(ctx context.Context, date domain.Date) (decimal.Decimal, error)
}

// IsRateLimited reports whether err is a rate-limit signal.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// dayRange returns the first and last millisecond of the date.
func dayRange(date domain.Date) (int64, int64) {
	start := date.Time().UnixMilli()
	return start, start + 24*60*60*1000 - 1
}
