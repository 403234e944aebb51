package oracle

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/costbasis/internal/domain"
)

// PriceBook is the result of a batch resolution: one daily price per date.
type PriceBook struct {
	prices   map[domain.Date]domain.DailyPrice
	fallback decimal.Decimal
}

func newPriceBook(fallback decimal.Decimal) *PriceBook {
	return &PriceBook{prices: make(map[domain.Date]domain.DailyPrice), fallback: fallback}
}

// PriceAt returns the price of the day ts falls on. Days that were never
// resolved get the fallback price.
func (b *PriceBook) PriceAt(ts int64) domain.DailyPrice {
	date := domain.DateOf(ts)
	if p, ok := b.prices[date]; ok {
		return p
	}
	return domain.DailyPrice{Date: date, USD: b.fallback, Fallback: true}
}

// Len returns the number of resolved dates.
func (b *PriceBook) Len() int {
	return len(b.prices)
}

// Fallbacks counts dates priced with the fallback.
func (b *PriceBook) Fallbacks() int {
	n := 0
	for _, p := range b.prices {
		if p.Fallback {
			n++
		}
	}
	return n
}
