// Package oracle resolves the USD price of the native asset for past calendar days.
package oracle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vadiminshakov/costbasis/internal/domain"
	"github.com/vadiminshakov/costbasis/internal/observability"
	"github.com/vadiminshakov/costbasis/internal/services/pricer"
	"github.com/vadiminshakov/costbasis/pkg/retrier"
)

const (
	DefaultRequestDelay = 1500 * time.Millisecond
)

var (
	DefaultFallbackPrice = decimal.NewFromInt(2400)
	DefaultBackoff       = []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}
)

// PriceCache is a date-keyed store of resolved prices.
// Get reports false for a date never written.
type PriceCache interface {
	Get(ctx context.Context, date domain.Date) (decimal.Decimal, bool, error)
	Set(ctx context.Context, date domain.Date, price decimal.Decimal) error
}

// Oracle serves daily native prices from the cache and falls back to a remote
// source on a miss. Remote lookups are paced and retried on rate limits; a day
// no source can price gets the fallback price instead of an error.
type Oracle struct {
	source       pricer.Source
	cache        PriceCache
	logger       *zap.Logger
	metrics      *observability.Metrics
	fallback     decimal.Decimal
	requestDelay time.Duration
	backoff      []time.Duration

	group singleflight.Group

	paceMu     sync.Mutex
	lastRemote time.Time
}

// Option configures the Oracle.
type Option func(*Oracle)

// WithFallbackPrice sets the price used when no source can price a day.
func WithFallbackPrice(p decimal.Decimal) Option {
	return func(o *Oracle) {
		o.fallback = p
	}
}

// WithRequestDelay sets the minimal gap between two remote lookups.
func WithRequestDelay(d time.Duration) Option {
	return func(o *Oracle) {
		o.requestDelay = d
	}
}

// WithBackoff sets the delays slept before each retry of a rate-limited lookup.
func WithBackoff(delays ...time.Duration) Option {
	return func(o *Oracle) {
		o.backoff = append([]time.Duration(nil), delays...)
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Oracle) {
		o.metrics = m
	}
}

// New creates an Oracle backed by source and cache.
func New(logger *zap.Logger, source pricer.Source, cache PriceCache, opts ...Option) (*Oracle, error) {
	if source == nil {
		return nil, errors.New("price source is required")
	}
	if cache == nil {
		return nil, errors.New("price cache is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Oracle{
		source:       source,
		cache:        cache,
		logger:       logger,
		fallback:     DefaultFallbackPrice,
		requestDelay: DefaultRequestDelay,
		backoff:      DefaultBackoff,
	}
	for _, opt := range opts {
		opt(o)
	}

	if !o.fallback.IsPositive() {
		return nil, errors.Errorf("fallback price must be positive, got %s", o.fallback)
	}

	return o, nil
}

// FallbackPrice returns the configured fallback price.
func (o *Oracle) FallbackPrice() decimal.Decimal {
	return o.fallback
}

// PriceOnDate returns the native USD price of date. It never fails: when neither
// the cache nor the remote source has a price, the fallback is returned with Fallback set.
// A caller whose ctx is done gets the fallback; a remote lookup it shares with
// other callers keeps running for them.
func (o *Oracle) PriceOnDate(ctx context.Context, date domain.Date) domain.DailyPrice {
	if price, ok := o.cached(ctx, date); ok {
		o.metrics.CacheHit()
		return domain.DailyPrice{Date: date, USD: price}
	}
	o.metrics.CacheMiss()

	// concurrent callers for one date share a single remote lookup and cache write;
	// the lookup is detached from the context of the caller that started it
	lookupCtx := context.WithoutCancel(ctx)
	ch := o.group.DoChan(date.String(), func() (interface{}, error) {
		if price, ok := o.cached(lookupCtx, date); ok {
			return price, nil
		}
		return o.fetch(lookupCtx, date)
	})

	var (
		price decimal.Decimal
		err   error
	)
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-ch:
		err = res.Err
		if err == nil {
			price = res.Val.(decimal.Decimal)
		}
	}
	if err != nil {
		o.logger.Warn("using fallback native price",
			zap.Stringer("date", date),
			zap.String("source", o.source.Name()),
			zap.String("fallback", o.fallback.String()),
			zap.Error(err))
		o.metrics.PriceLookup(o.source.Name(), "fallback")
		return domain.DailyPrice{Date: date, USD: o.fallback, Fallback: true}
	}

	return domain.DailyPrice{Date: date, USD: price}
}

// BatchResolve prices every distinct UTC date of timestamps, oldest first.
func (o *Oracle) BatchResolve(ctx context.Context, timestamps []int64) *PriceBook {
	book := newPriceBook(o.fallback)

	for _, date := range distinctDates(timestamps) {
		if ctx.Err() != nil {
			break
		}
		book.prices[date] = o.PriceOnDate(ctx, date)
	}

	o.logger.Debug("native prices resolved",
		zap.Int("dates", len(book.prices)),
		zap.Int("fallbacks", book.Fallbacks()))

	return book
}

// cached reads the cache without recording metrics. Read failures count as a miss.
func (o *Oracle) cached(ctx context.Context, date domain.Date) (decimal.Decimal, bool) {
	price, ok, err := o.cache.Get(ctx, date)
	if err != nil {
		o.logger.Warn("price cache read failed", zap.Stringer("date", date), zap.Error(err))
		return decimal.Zero, false
	}
	if !ok || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}

func (o *Oracle) fetch(ctx context.Context, date domain.Date) (decimal.Decimal, error) {
	r := retrier.New(
		retrier.WithSchedule(o.backoff...),
		retrier.WithRetryIf(pricer.IsRateLimited),
		retrier.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			o.metrics.PriceLookup(o.source.Name(), "rate_limited")
			o.logger.Info("price source rate limited, backing off",
				zap.Stringer("date", date),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
		}),
	)

	price, err := retrier.DoWithData(r, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		if err := o.pace(ctx); err != nil {
			return decimal.Zero, err
		}
		return o.source.HistoricalPrice(ctx, date)
	})
	if err != nil {
		outcome := "failed"
		if pricer.IsRateLimited(err) {
			outcome = "rate_limited"
		}
		o.metrics.PriceLookup(o.source.Name(), outcome)
		return decimal.Zero, errors.Wrapf(err, "%s price for %s", o.source.Name(), date)
	}
	if !price.IsPositive() {
		o.metrics.PriceLookup(o.source.Name(), "failed")
		return decimal.Zero, errors.Wrapf(pricer.ErrNoPrice, "%s returned %s for %s", o.source.Name(), price, date)
	}

	o.metrics.PriceLookup(o.source.Name(), "ok")
	if err := o.cache.Set(ctx, date, price); err != nil {
		o.logger.Warn("price cache write failed", zap.Stringer("date", date), zap.Error(err))
	}

	return price, nil
}

// pace blocks until requestDelay has passed since the previous remote lookup.
func (o *Oracle) pace(ctx context.Context) error {
	o.paceMu.Lock()
	defer o.paceMu.Unlock()

	if !o.lastRemote.IsZero() {
		if wait := o.requestDelay - time.Since(o.lastRemote); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	o.lastRemote = time.Now()

	return nil
}

func distinctDates(timestamps []int64) []domain.Date {
	seen := make(map[domain.Date]struct{}, len(timestamps))
	dates := make([]domain.Date, 0, len(timestamps))
	for _, ts := range timestamps {
		d := domain.DateOf(ts)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	return dates
}
