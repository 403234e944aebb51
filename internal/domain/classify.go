package domain

import "github.com/ethereum/go-ethereum/common"

// EntryKind labels a transfer relative to the tracked wallet.
type EntryKind int

const (
	EntryNeither EntryKind = iota
	EntryInflow
	EntryOutflow
	EntrySelfTransfer
)

// String returns the string representation of the entry kind
func (k EntryKind) String() string {
	switch k {
	case EntryInflow:
		return "inflow"
	case EntryOutflow:
		return "outflow"
	case EntrySelfTransfer:
		return "self_transfer"
	default:
		return "neither"
	}
}

// Direction returns which way value moved for the wallet in a trade:
// an inflow of tokens is paid for (sent), an outflow is paid out (received).
func (k EntryKind) Direction() (Direction, bool) {
	switch k {
	case EntryInflow:
		return DirectionSent, true
	case EntryOutflow:
		return DirectionReceived, true
	default:
		return "", false
	}
}

// Classify labels the transfer relative to wallet. Addresses compare by value,
// so checksum casing of the original hex strings does not matter.
func Classify(t TransferEvent, wallet common.Address) EntryKind {
	in := t.To == wallet
	out := t.From == wallet

	switch {
	case in && out:
		return EntrySelfTransfer
	case in:
		return EntryInflow
	case out:
		return EntryOutflow
	default:
		return EntryNeither
	}
}
