// Package report renders a computed portfolio for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/costbasis/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Width(22).Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#9A9A9A"})
	gainStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"})
	lossStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// JSON is the machine readable report.
type JSON struct {
	*domain.Portfolio
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
	CurrentValue *decimal.Decimal `json:"current_value,omitempty"`
	UnrealizedPL *decimal.Decimal `json:"unrealized_profit_loss,omitempty"`
}

// NewJSON attaches market figures when currentPrice is positive.
func NewJSON(p *domain.Portfolio, currentPrice decimal.Decimal) JSON {
	out := JSON{Portfolio: p}
	if currentPrice.IsPositive() {
		value := p.CurrentValue(currentPrice)
		upl := p.UnrealizedPL(currentPrice)
		out.CurrentPrice = &currentPrice
		out.CurrentValue = &value
		out.UnrealizedPL = &upl
	}
	return out
}

// WriteJSON writes the indented JSON report.
func WriteJSON(w io.Writer, p *domain.Portfolio, currentPrice decimal.Decimal) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(NewJSON(p, currentPrice)), "encode report")
}

// WriteText writes the human readable report.
func WriteText(w io.Writer, p *domain.Portfolio, currentPrice decimal.Decimal) error {
	_, err := io.WriteString(w, Render(p, currentPrice)+"\n")
	return errors.Wrap(err, "write report")
}

// Render formats the portfolio as a styled text block.
func Render(p *domain.Portfolio, currentPrice decimal.Decimal) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Cost basis"))
	b.WriteString("\n")
	b.WriteString(row("Wallet", p.Wallet))
	b.WriteString(row("Token", p.Token))
	if p.CalculationID != "" {
		b.WriteString(row("Calculation", p.CalculationID))
	}

	if p.NoActivity {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("No transfers of this token for the wallet."))
		return boxStyle.Render(b.String())
	}

	b.WriteString("\n")
	b.WriteString(row("Holdings", p.TotalTokens.String()))
	b.WriteString(row("Bought / sold", fmt.Sprintf("%s / %s", p.TokensBought, p.TokensSold)))
	b.WriteString(row("Transfers", fmt.Sprintf("%d (%d buys, %d sells)", p.TransactionCount, p.BuyCount, p.SellCount)))
	b.WriteString(row("Avg entry price", "$"+p.AvgEntryPrice.StringFixed(8)))
	b.WriteString(row("Total invested", USD(p.TotalInvestedUSD)))
	b.WriteString(row("Total received", USD(p.TotalReceivedUSD)))
	b.WriteString(row("Cost basis sold", USD(p.CostBasisSold)))
	b.WriteString(row("Realized P/L", signed(p.RealizedProfitLoss)))

	if currentPrice.IsPositive() {
		b.WriteString(row("Current price", "$"+currentPrice.String()))
		b.WriteString(row("Current value", USD(p.CurrentValue(currentPrice))))
		b.WriteString(row("Unrealized P/L", signed(p.UnrealizedPL(currentPrice))))
	}

	if t := p.FirstBuy(); !t.IsZero() {
		b.WriteString(row("First buy", t.Format(time.DateTime)+" UTC"))
	}
	if t := p.LastActivity(); !t.IsZero() {
		b.WriteString(row("Last activity", t.Format(time.DateTime)+" UTC"))
	}

	if len(p.Errors) > 0 {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(fmt.Sprintf("Errors (%d)", len(p.Errors))))
		b.WriteString("\n")
		for _, e := range p.Errors {
			b.WriteString(errStyle.Render("  ✗ " + e))
			b.WriteString("\n")
		}
	}
	if len(p.Warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render(fmt.Sprintf("Warnings (%d)", len(p.Warnings))))
		b.WriteString("\n")
		for _, w := range p.Warnings {
			b.WriteString(warnStyle.Render("  ! " + w))
			b.WriteString("\n")
		}
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// USD formats an amount as dollars and cents.
func USD(d decimal.Decimal) string {
	return money.New(d.Shift(2).Round(0).IntPart(), money.USD).Display()
}

func signed(d decimal.Decimal) string {
	s := USD(d)
	switch {
	case d.IsPositive():
		return gainStyle.Render("+" + s)
	case d.IsNegative():
		return lossStyle.Render(s)
	default:
		return s
	}
}

func row(label, value string) string {
	return labelStyle.Render(label) + value + "\n"
}
