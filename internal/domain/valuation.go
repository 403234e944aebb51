package domain

import "github.com/shopspring/decimal"

// Direction of value flow for the wallet within one transaction.
type Direction string

const (
	// DirectionSent the wallet paid value (buy side).
	DirectionSent Direction = "sent"
	// DirectionReceived the wallet received value (sell side).
	DirectionReceived Direction = "received"
)

// Provenance tells which source produced a valuation.
type Provenance string

const (
	ProvenanceStableLog        Provenance = "stable-asset-log"
	ProvenanceNativeDirect     Provenance = "native-direct"
	ProvenanceWrappedNativeLog Provenance = "wrapped-native-log"
	ProvenanceInternalNative   Provenance = "internal-native-transfer"
	ProvenanceUnresolved       Provenance = "unresolved"
)

// ValuationResult USD value of one transfer leg.
type ValuationResult struct {
	USD        decimal.Decimal
	Provenance Provenance
	// Notes diagnostics collected while resolving, e.g. failed lookups or fallback prices.
	Notes []string
}

// Resolved reports whether a positive USD amount was found.
func (v ValuationResult) Resolved() bool {
	return v.Provenance != ProvenanceUnresolved && v.USD.IsPositive()
}

// Unresolved returns a zero valuation carrying the given notes.
func Unresolved(notes ...string) ValuationResult {
	return ValuationResult{USD: decimal.Zero, Provenance: ProvenanceUnresolved, Notes: notes}
}

// DailyPrice native asset USD price for one day.
type DailyPrice struct {
	Date Date
	USD  decimal.Decimal
	// Fallback is true when no source produced a price and the configured default was used.
	Fallback bool
}
