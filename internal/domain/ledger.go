package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LedgerState accumulates classified and valued transfers of one wallet/token pair.
// It is folded once over all transfers in chronological order and then finalized;
// the average entry price is derived from the totals of all buys, never per event.
type LedgerState struct {
	TokensBought     decimal.Decimal
	TokensSold       decimal.Decimal
	TotalUSDSpent    decimal.Decimal
	TotalUSDReceived decimal.Decimal
	BuyCount         int
	SellCount        int
	TransferCount    int
	// FirstBuyTimestamp and LastActivityTimestamp are unix seconds, 0 when unset.
	FirstBuyTimestamp     int64
	LastActivityTimestamp int64

	// derived by Finalize
	NetTokens     decimal.Decimal
	AvgEntryPrice decimal.Decimal
	CostBasisSold decimal.Decimal
	RealizedPL    decimal.Decimal

	Errors   []string
	Warnings []string

	finalized bool
}

// NewLedgerState creates an empty ledger.
func NewLedgerState() *LedgerState {
	return &LedgerState{
		TokensBought:     decimal.Zero,
		TokensSold:       decimal.Zero,
		TotalUSDSpent:    decimal.Zero,
		TotalUSDReceived: decimal.Zero,
		NetTokens:        decimal.Zero,
		AvgEntryPrice:    decimal.Zero,
		CostBasisSold:    decimal.Zero,
		RealizedPL:       decimal.Zero,
		Errors:           make([]string, 0),
		Warnings:         make([]string, 0),
	}
}

// Fold applies one transfer. kind comes from Classify and valuation from the
// valuation resolver (ignored for self transfers and foreign transfers).
func (l *LedgerState) Fold(t TransferEvent, kind EntryKind, valuation ValuationResult) {
	l.TransferCount++
	if l.LastActivityTimestamp == 0 || t.Timestamp > l.LastActivityTimestamp {
		l.LastActivityTimestamp = t.Timestamp
	}

	amount := t.Amount()

	switch kind {
	case EntryInflow:
		l.TokensBought = l.TokensBought.Add(amount)
		l.BuyCount++
		if l.FirstBuyTimestamp == 0 || t.Timestamp < l.FirstBuyTimestamp {
			l.FirstBuyTimestamp = t.Timestamp
		}

		label := fmt.Sprintf("Buy %d (%s)", l.BuyCount, t.TxHash.Hex())
		if valuation.Resolved() {
			l.TotalUSDSpent = l.TotalUSDSpent.Add(valuation.USD)
			l.noteWarnings(label, valuation.Notes)
			return
		}
		l.Warn(fmt.Sprintf("%s: unable to determine cost - might be airdrop/transfer%s", label, joinNotes(valuation.Notes)))

	case EntryOutflow:
		l.TokensSold = l.TokensSold.Add(amount)
		l.SellCount++

		label := fmt.Sprintf("Sell %d (%s)", l.SellCount, t.TxHash.Hex())
		if valuation.Resolved() {
			l.TotalUSDReceived = l.TotalUSDReceived.Add(valuation.USD)
			l.noteWarnings(label, valuation.Notes)
			return
		}
		l.Warn(fmt.Sprintf("%s: unable to determine proceeds - might be transfer/gift%s", label, joinNotes(valuation.Notes)))
	}
}

// Finalize derives net holdings, average entry price, cost basis of sold tokens and realized P/L.
func (l *LedgerState) Finalize() {
	l.NetTokens = l.TokensBought.Sub(l.TokensSold)

	l.AvgEntryPrice = decimal.Zero
	if l.TokensBought.IsPositive() {
		l.AvgEntryPrice = l.TotalUSDSpent.Div(l.TokensBought)
	}

	l.CostBasisSold = l.TokensSold.Mul(l.AvgEntryPrice)
	l.RealizedPL = l.TotalUSDReceived.Sub(l.CostBasisSold)
	l.finalized = true
}

// Finalized reports whether derived fields are up to date.
func (l *LedgerState) Finalized() bool {
	return l.finalized
}

// Warn appends a warning.
func (l *LedgerState) Warn(msg string) {
	l.Warnings = append(l.Warnings, msg)
}

// Fail appends an error.
func (l *LedgerState) Fail(msg string) {
	l.Errors = append(l.Errors, msg)
}

func (l *LedgerState) noteWarnings(label string, notes []string) {
	for _, n := range notes {
		l.Warn(fmt.Sprintf("%s: %s", label, n))
	}
}

func joinNotes(notes []string) string {
	if len(notes) == 0 {
		return ""
	}
	return " (" + strings.Join(notes, "; ") + ")"
}
