package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/costbasis/internal/domain"
)

type portfolioCalculator interface {
	ComputePortfolio(ctx context.Context, wallet, token common.Address) (*domain.Portfolio, error)
}

// Server exposes portfolio computations over HTTP.
type Server struct {
	Addr       string
	Calculator portfolioCalculator
	Gatherer   prometheus.Gatherer
	logger     *zap.Logger
}

// NewServer creates a new web server instance. gatherer may be nil to disable /metrics.
func NewServer(logger *zap.Logger, addr string, calculator portfolioCalculator, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Calculator: calculator, Gatherer: gatherer, logger: logger}
}

// PortfolioResponse is the body of GET /portfolio.
type PortfolioResponse struct {
	*domain.Portfolio
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
	CurrentValue *decimal.Decimal `json:"current_value,omitempty"`
	UnrealizedPL *decimal.Decimal `json:"unrealized_profit_loss,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/portfolio", s.handlePortfolio)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	q := r.URL.Query()
	wallet, token := q.Get("wallet"), q.Get("token")
	if !domain.IsAddress(wallet) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid wallet address"})
		return
	}
	if !domain.IsAddress(token) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid token address"})
		return
	}

	var currentPrice *decimal.Decimal
	if raw := q.Get("current_price"); raw != "" {
		p, err := decimal.NewFromString(raw)
		if err != nil || p.IsNegative() {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid current_price"})
			return
		}
		currentPrice = &p
	}

	// the request context is cancelled when the client goes away, which
	// makes the computation drop its result
	p, err := s.Calculator.ComputePortfolio(r.Context(), common.HexToAddress(wallet), common.HexToAddress(token))
	if err != nil {
		if r.Context().Err() != nil {
			s.logger.Info("portfolio request abandoned", zap.String("wallet", wallet))
			return
		}
		s.logger.Error("portfolio computation failed", zap.String("wallet", wallet), zap.String("token", token), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	resp := PortfolioResponse{Portfolio: p}
	if currentPrice != nil {
		value := p.CurrentValue(*currentPrice)
		unrealized := p.UnrealizedPL(*currentPrice)
		resp.CurrentPrice = currentPrice
		resp.CurrentValue = &value
		resp.UnrealizedPL = &unrealized
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
