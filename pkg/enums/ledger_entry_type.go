package enums

import "fmt"

// LedgerEntryType classifies balance mutations in the audit ledger.
type LedgerEntryType string

const (
	LedgerEntryTypeSpend  LedgerEntryType = "spend"
	LedgerEntryTypeTopup  LedgerEntryType = "topup"
	LedgerEntryTypeRefund LedgerEntryType = "refund"
	LedgerEntryTypeGrant  LedgerEntryType = "grant"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeSpend,
	LedgerEntryTypeTopup,
	LedgerEntryTypeRefund,
	LedgerEntryTypeGrant,
}

// String implements fmt.Stringer.
func (t LedgerEntryType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsCredit reports whether the entry increases the balance.
func (t LedgerEntryType) IsCredit() bool {
	return t == LedgerEntryTypeTopup || t == LedgerEntryTypeRefund || t == LedgerEntryTypeGrant
}

// ParseLedgerEntryType converts raw input into a LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
