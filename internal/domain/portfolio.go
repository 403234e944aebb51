package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is the reconciled position of one wallet in one token.
type Portfolio struct {
	CalculationID      string          `json:"calculation_id,omitempty"`
	Wallet             string          `json:"wallet"`
	Token              string          `json:"token"`
	NoActivity         bool            `json:"no_activity"`
	TotalTokens        decimal.Decimal `json:"total_tokens"`
	TokensBought       decimal.Decimal `json:"tokens_bought"`
	TokensSold         decimal.Decimal `json:"tokens_sold"`
	AvgEntryPrice      decimal.Decimal `json:"avg_entry_price"`
	TotalInvestedUSD   decimal.Decimal `json:"total_invested_usd"`
	TotalReceivedUSD   decimal.Decimal `json:"total_received_usd"`
	CostBasisSold      decimal.Decimal `json:"cost_basis_sold"`
	RealizedProfitLoss decimal.Decimal `json:"realized_profit_loss"`
	TransactionCount   int             `json:"transaction_count"`
	BuyCount           int             `json:"buy_count"`
	SellCount          int             `json:"sell_count"`
	// FirstBuyTimestamp and LastActivityTimestamp are unix seconds, nil when there was no such event.
	FirstBuyTimestamp     *int64   `json:"first_buy_timestamp"`
	LastActivityTimestamp *int64   `json:"last_activity_timestamp"`
	Errors                []string `json:"errors"`
	Warnings              []string `json:"warnings"`
}

// EmptyPortfolio is the canonical result for a wallet without any transfer of the token.
func EmptyPortfolio(wallet, token string) *Portfolio {
	return &Portfolio{
		Wallet:             wallet,
		Token:              token,
		NoActivity:         true,
		TotalTokens:        decimal.Zero,
		TokensBought:       decimal.Zero,
		TokensSold:         decimal.Zero,
		AvgEntryPrice:      decimal.Zero,
		TotalInvestedUSD:   decimal.Zero,
		TotalReceivedUSD:   decimal.Zero,
		CostBasisSold:      decimal.Zero,
		RealizedProfitLoss: decimal.Zero,
		Errors:             []string{},
		Warnings:           []string{},
	}
}

// NewPortfolio snapshots a finalized ledger. Slices are copied so the
// snapshot does not alias the ledger.
func NewPortfolio(wallet, token string, l *LedgerState) *Portfolio {
	if !l.Finalized() {
		l.Finalize()
	}

	p := &Portfolio{
		Wallet:             wallet,
		Token:              token,
		TotalTokens:        l.NetTokens,
		TokensBought:       l.TokensBought,
		TokensSold:         l.TokensSold,
		AvgEntryPrice:      l.AvgEntryPrice,
		TotalInvestedUSD:   l.TotalUSDSpent,
		TotalReceivedUSD:   l.TotalUSDReceived,
		CostBasisSold:      l.CostBasisSold,
		RealizedProfitLoss: l.RealizedPL,
		TransactionCount:   l.TransferCount,
		BuyCount:           l.BuyCount,
		SellCount:          l.SellCount,
		Errors:             append([]string{}, l.Errors...),
		Warnings:           append([]string{}, l.Warnings...),
	}
	if l.FirstBuyTimestamp != 0 {
		ts := l.FirstBuyTimestamp
		p.FirstBuyTimestamp = &ts
	}
	if l.LastActivityTimestamp != 0 {
		ts := l.LastActivityTimestamp
		p.LastActivityTimestamp = &ts
	}

	return p
}

// UnrealizedPL calculates profit and loss of the tokens still held at the given market price.
// Negative holdings carry no unrealized P/L.
func (p *Portfolio) UnrealizedPL(currentPrice decimal.Decimal) decimal.Decimal {
	if p == nil || !p.TotalTokens.IsPositive() {
		return decimal.Zero
	}
	return currentPrice.Sub(p.AvgEntryPrice).Mul(p.TotalTokens)
}

// CurrentValue returns the market value of held tokens.
func (p *Portfolio) CurrentValue(currentPrice decimal.Decimal) decimal.Decimal {
	if p == nil || !p.TotalTokens.IsPositive() {
		return decimal.Zero
	}
	return p.TotalTokens.Mul(currentPrice)
}

// FirstBuy returns the first buy time, zero when unknown.
func (p *Portfolio) FirstBuy() time.Time {
	if p == nil || p.FirstBuyTimestamp == nil {
		return time.Time{}
	}
	return time.Unix(*p.FirstBuyTimestamp, 0).UTC()
}

// LastActivity returns the last activity time, zero when unknown.
func (p *Portfolio) LastActivity() time.Time {
	if p == nil || p.LastActivityTimestamp == nil {
		return time.Time{}
	}
	return time.Unix(*p.LastActivityTimestamp, 0).UTC()
}
