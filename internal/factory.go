package internal

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/costbasis/config"
	"github.com/vadiminshakov/costbasis/internal/clients"
	"github.com/vadiminshakov/costbasis/internal/domain"
	"github.com/vadiminshakov/costbasis/internal/observability"
	"github.com/vadiminshakov/costbasis/internal/services/oracle"
	"github.com/vadiminshakov/costbasis/internal/services/portfolio"
	"github.com/vadiminshakov/costbasis/internal/services/pricer"
	"github.com/vadiminshakov/costbasis/internal/services/valuation"
	"github.com/vadiminshakov/costbasis/internal/storage/pricecache"
)

type priceCache interface {
	oracle.PriceCache
	Close() error
}

type txLookups interface {
	valuation.TxLookup
	valuation.ReceiptLookup
}

// App holds the wired services of one process.
type App struct {
	Portfolio *portfolio.Service
	Registry  *prometheus.Registry

	closers []func() error
}

// Close releases the price cache and node connections.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// Build wires the portfolio service from the configuration.
func Build(ctx context.Context, logger *zap.Logger, cfg config.Config) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	app := &App{Registry: registry}

	cache, err := NewPriceCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, cache.Close)

	source, err := NewPriceSource(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	prices, err := oracle.New(logger, source, cache,
		oracle.WithFallbackPrice(cfg.FallbackPrice),
		oracle.WithRequestDelay(cfg.RequestDelay),
		oracle.WithBackoff(cfg.RateLimitBackoff...),
		oracle.WithMetrics(metrics),
	)
	if err != nil {
		_ = app.Close()
		return nil, errors.Wrap(err, "create price oracle")
	}

	etherscan := clients.NewEtherscanClient(cfg.EtherscanURL, cfg.EtherscanAPIKey, cfg.ChainID)

	lookups, err := newTxLookups(ctx, logger, cfg, etherscan, app)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	chain := ChainProfile(logger, cfg.ChainID)
	resolver := valuation.NewResolver(logger, lookups, lookups, chain, metrics)

	app.Portfolio, err = portfolio.NewService(logger, etherscan, etherscan, prices, resolver, metrics)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	logger.Info("services wired",
		zap.String("price_source", source.Name()),
		zap.String("cache", cfg.CacheBackend),
		zap.Int64("chain_id", cfg.ChainID),
		zap.Bool("rpc", cfg.RPCURL != ""))

	return app, nil
}

// NewPriceCache opens the configured price cache backend.
func NewPriceCache(ctx context.Context, cfg config.Config) (priceCache, error) {
	switch cfg.CacheBackend {
	case config.CacheWAL:
		store, err := pricecache.NewWALStore(cfg.CacheDir)
		if err != nil {
			return nil, errors.Wrap(err, "open wal price cache")
		}
		return store, nil
	case config.CacheRedis:
		store, err := pricecache.NewRedisStore(ctx, pricecache.RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, errors.Wrap(err, "connect redis price cache")
		}
		return store, nil
	case config.CacheMemory:
		return pricecache.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.CacheBackend)
	}
}

// NewPriceSource creates the configured historical price source.
func NewPriceSource(cfg config.Config) (pricer.Source, error) {
	switch cfg.PriceProvider {
	case config.ProviderCoinGecko:
		return pricer.NewCoinGecko(cfg.CoinGeckoURL, cfg.CoinID, cfg.CoinGeckoAPIKey), nil
	case config.ProviderBinance:
		return pricer.NewBinance(clients.NewBinanceClient(cfg.BinanceAPIKey, cfg.BinanceSecretKey), cfg.PriceSymbol), nil
	case config.ProviderBybit:
		return pricer.NewBybit(clients.NewBybitClient(cfg.BybitAPIKey, cfg.BybitSecretKey), cfg.PriceSymbol), nil
	default:
		return nil, fmt.Errorf("unsupported price provider: %s", cfg.PriceProvider)
	}
}

// ChainProfile returns the quote assets of the chain. Only Ethereum mainnet
// contracts are known; other chains keep its native settings and get a warning.
func ChainProfile(logger *zap.Logger, chainID int64) domain.ChainProfile {
	chain := domain.EthereumMainnet()
	if chainID != chain.ChainID {
		logger.Warn("no quote asset contracts known for chain, using Ethereum mainnet ones",
			zap.Int64("chain_id", chainID))
		chain.ChainID = chainID
	}
	return chain
}

// newTxLookups prefers a JSON-RPC node when configured and falls back to the
// Etherscan proxy module.
func newTxLookups(ctx context.Context, logger *zap.Logger, cfg config.Config, etherscan *clients.EtherscanClient, app *App) (txLookups, error) {
	if cfg.RPCURL == "" {
		return etherscan, nil
	}

	node, err := clients.DialRPC(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() error {
		node.Close()
		return nil
	})

	chainID, err := node.ChainID(ctx)
	if err != nil {
		logger.Warn("failed to read chain id from node", zap.Error(err))
	} else if chainID.Int64() != cfg.ChainID {
		return nil, fmt.Errorf("rpc node serves chain %s, configured chain is %d", chainID, cfg.ChainID)
	}

	return node, nil
}
