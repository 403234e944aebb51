// Package pricecache holds the date-keyed stores of resolved native prices.
// Historical prices never change, so every store is set-if-absent: the first
// price written for a date wins.
package pricecache

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/costbasis/internal/domain"
)

// MemoryStore keeps prices in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	prices map[domain.Date]decimal.Decimal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prices: make(map[domain.Date]decimal.Decimal)}
}

func (s *MemoryStore) Get(_ context.Context, date domain.Date) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[date]
	return p, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, date domain.Date, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prices[date]; !ok {
		s.prices[date] = price
	}
	return nil
}

// Len returns the number of cached dates.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prices)
}

func (s *MemoryStore) Close() error { return nil }
