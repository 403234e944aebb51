// Package diagnostics inspects a finalized ledger for results that cannot be trusted.
package diagnostics

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/costbasis/internal/domain"
)

var (
	// negativeHoldingsEpsilon tolerates rounding dust in net holdings.
	negativeHoldingsEpsilon = decimal.RequireFromString("-0.0001")
	minSaneAvgPrice         = decimal.RequireFromString("0.000001")
	maxSaneAvgPrice         = decimal.NewFromInt(1_000_000)
)

// Validator appends warnings and errors to a ledger. It never changes totals.
type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger}
}

// Validate checks the derived values of l, finalizing it first when needed.
func (v *Validator) Validate(l *domain.LedgerState) {
	if !l.Finalized() {
		l.Finalize()
	}

	if l.NetTokens.LessThan(negativeHoldingsEpsilon) {
		l.Warn(fmt.Sprintf("Negative holdings detected: %s tokens (sold more than bought?)", l.NetTokens.StringFixed(2)))
	}

	if l.AvgEntryPrice.IsPositive() &&
		(l.AvgEntryPrice.LessThan(minSaneAvgPrice) || l.AvgEntryPrice.GreaterThan(maxSaneAvgPrice)) {
		l.Warn(fmt.Sprintf("Unusual avg entry price: $%s (might indicate data issue)", l.AvgEntryPrice.StringFixed(8)))
	}

	if l.TotalUSDSpent.IsNegative() {
		l.Fail(fmt.Sprintf("Negative total invested: $%s (calculation error!)", l.TotalUSDSpent.StringFixed(2)))
	}
	if l.TotalUSDReceived.IsNegative() {
		l.Fail(fmt.Sprintf("Negative total received: $%s (calculation error!)", l.TotalUSDReceived.StringFixed(2)))
	}

	if l.BuyCount == 0 && l.TokensBought.IsPositive() {
		l.Warn(fmt.Sprintf("Tokens bought (%s) but no buy transactions counted", l.TokensBought.StringFixed(2)))
	}
	if l.SellCount == 0 && l.TokensSold.IsPositive() {
		l.Warn(fmt.Sprintf("Tokens sold (%s) but no sell transactions counted", l.TokensSold.StringFixed(2)))
	}

	if l.TokensBought.IsPositive() && l.TotalUSDSpent.IsZero() {
		l.Warn(fmt.Sprintf("Bought %s tokens but $0 spent (airdrops/transfers only?)", l.TokensBought.StringFixed(2)))
	}
	if l.TokensSold.IsPositive() && l.TotalUSDReceived.IsZero() {
		l.Warn(fmt.Sprintf("Sold %s tokens but $0 received (gifts/burns only?)", l.TokensSold.StringFixed(2)))
	}

	if len(l.Errors) > 0 {
		v.logger.Warn("ledger has errors", zap.Int("count", len(l.Errors)), zap.Strings("errors", l.Errors))
	}
	if len(l.Warnings) > 0 {
		v.logger.Info("ledger has warnings", zap.Int("count", len(l.Warnings)))
	}
}
