package pricer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/costbasis/internal/domain"
)

const (
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"
	coingeckoDateLayout = "02-01-2006"
	coingeckoKeyHeader  = "x-cg-demo-api-key"
)

// CoinGecko fetches daily prices from the /coins/{id}/history endpoint.
type CoinGecko struct {
	baseURL string
	coinID  string
	apiKey  string
	client  *http.Client
}

// NewCoinGecko creates a CoinGecko source for coinID (e.g. "ethereum").
func NewCoinGecko(baseURL, coinID, apiKey string) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	return &CoinGecko{
		baseURL: baseURL,
		coinID:  coinID,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *CoinGecko) Name() string { return "coingecko" }

// HistoricalPrice returns the USD price of the coin on date.
func (c *CoinGecko) HistoricalPrice(ctx context.Context, date domain.Date) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("date", date.Time().Format(coingeckoDateLayout))
	q.Set("localization", "false")
	endpoint := fmt.Sprintf("%s/coins/%s/history?%s", c.baseURL, url.PathEscape(c.coinID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "build coingecko request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(coingeckoKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "coingecko request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return decimal.Zero, errors.Wrapf(ErrRateLimited, "coingecko %s", date)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, errors.Errorf("coingecko returned status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		MarketData *struct {
			CurrentPrice map[string]json.Number `json:"current_price"`
		} `json:"market_data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, errors.Wrap(err, "decode coingecko response")
	}

	if payload.MarketData == nil {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "coingecko %s", date)
	}
	raw, ok := payload.MarketData.CurrentPrice["usd"]
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "coingecko %s", date)
	}

	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse coingecko price %q", raw)
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "coingecko %s", date)
	}

	return price, nil
}
