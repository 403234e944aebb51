package pricecache

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/costbasis/internal/domain"
)

const (
	DefaultDir   = "./wal/prices"
	segmentLimit = 1000
	maxSegments  = 100

	priceKeyPrefix = "price_"
)

// WALStore persists prices in a WAL on local disk. The WAL is replayed into
// an in-memory index on open; writes append one record per new date.
type WALStore struct {
	wal    *gowal.Wal
	mu     sync.RWMutex
	prices map[domain.Date]decimal.Decimal
}

// NewWALStore opens (or creates) the price WAL in dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "prices_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init price WAL")
	}

	s := &WALStore{wal: wal, prices: make(map[domain.Date]decimal.Decimal)}
	if err := s.load(); err != nil {
		_ = wal.Close()
		return nil, err
	}

	return s, nil
}

func (s *WALStore) load() error {
	current := s.wal.CurrentIndex()
	for idx := uint64(1); idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, priceKeyPrefix) {
			continue
		}

		date, err := domain.ParseDate(strings.TrimPrefix(key, priceKeyPrefix))
		if err != nil {
			return errors.Wrapf(err, "corrupted price record %d", idx)
		}
		price, err := decimal.NewFromString(string(payload))
		if err != nil {
			return errors.Wrapf(err, "corrupted price record %d", idx)
		}

		if _, ok := s.prices[date]; !ok {
			s.prices[date] = price
		}
	}

	return nil
}

func (s *WALStore) Get(_ context.Context, date domain.Date) (decimal.Decimal, bool, error) {
	if s == nil || s.wal == nil {
		return decimal.Zero, false, errors.New("price store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[date]
	return p, ok, nil
}

func (s *WALStore) Set(_ context.Context, date domain.Date, price decimal.Decimal) error {
	if s == nil || s.wal == nil {
		return errors.New("price store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prices[date]; ok {
		return nil
	}

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, priceKeyPrefix+date.String(), []byte(price.String())); err != nil {
		return errors.Wrapf(err, "write price for %s", date)
	}
	s.prices[date] = price

	return nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return nil
	}
	return s.wal.Close()
}
