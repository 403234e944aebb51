// Command costbasis reconstructs the average entry price and profit/loss of a
// wallet's position in one ERC-20 token from its on-chain transfer history.
//
// Usage:
//
//	costbasis --wallet 0x... --token 0x... [--currentprice 0.42]
//	costbasis --config config.yaml
//	costbasis --setup
//	costbasis --serve :8080
//
// Environment variables (also read from .env):
//
//	ETHERSCAN_API_KEY, COINGECKO_API_KEY, REDIS_PASSWORD
//	optional: BINANCE_API_KEY, BINANCE_API_SECRET, BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/costbasis/config"
	"github.com/vadiminshakov/costbasis/internal"
	"github.com/vadiminshakov/costbasis/internal/report"
	"github.com/vadiminshakov/costbasis/internal/setup"
	"github.com/vadiminshakov/costbasis/internal/web"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Setup {
		path, err := setup.RunTUI()
		if err != nil {
			log.Fatal(err)
		}
		if cfg, err = config.Load([]string{"--config", path}); err != nil {
			log.Fatal(err)
		}
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := internal.Build(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close resources", zap.Error(err))
		}
	}()

	if cfg.ServeAddr != "" {
		serve(ctx, logger, cfg, app)
		return
	}

	p, err := app.Portfolio.ComputePortfolio(ctx, cfg.Wallet, cfg.Token)
	if err != nil {
		logger.Error("failed to compute portfolio", zap.Error(err))
		return
	}

	if cfg.Output == config.OutputJSON {
		err = report.WriteJSON(os.Stdout, p, cfg.CurrentPrice)
	} else {
		err = report.WriteText(os.Stdout, p, cfg.CurrentPrice)
	}
	if err != nil {
		logger.Error("failed to print report", zap.Error(err))
	}
}

func serve(ctx context.Context, logger *zap.Logger, cfg config.Config, app *internal.App) {
	server := web.NewServer(logger, cfg.ServeAddr, app.Portfolio, app.Registry)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving portfolio API", zap.String("addr", cfg.ServeAddr))
		return server.Start(ctx)
	})

	// a configured position is computed once at startup to warm the price cache
	if cfg.Wallet != (common.Address{}) && cfg.Token != (common.Address{}) {
		g.Go(func() error {
			p, err := app.Portfolio.ComputePortfolio(ctx, cfg.Wallet, cfg.Token)
			if err != nil {
				logger.Warn("startup computation failed", zap.Error(err))
				return nil
			}
			logger.Info("startup computation done",
				zap.String("calculation_id", p.CalculationID),
				zap.Int("transfers", p.TransactionCount))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
