package enums

import "fmt"

// WalletTransactionType distinguishes wallet credits from debits.
type WalletTransactionType string

const (
	WalletTransactionTypeCredit WalletTransactionType = "credit"
	WalletTransactionTypeDebit  WalletTransactionType = "debit"
)

var validWalletTransactionTypes = []WalletTransactionType{
	WalletTransactionTypeCredit,
	WalletTransactionTypeDebit,
}

// String implements fmt.Stringer.
func (w WalletTransactionType) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletTransactionType.
func (w WalletTransactionType) IsValid() bool {
	for _, candidate := range validWalletTransactionTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletTransactionType converts raw input into a WalletTransactionType.
func ParseWalletTransactionType(value string) (WalletTransactionType, error) {
	for _, candidate := range validWalletTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}

// WalletTransactionSource records which settlement flow moved the money.
type WalletTransactionSource string

const (
	WalletTransactionSourceFundRelease WalletTransactionSource = "fund_release"
	WalletTransactionSourceRefund      WalletTransactionSource = "refund"
	WalletTransactionSourceReversal    WalletTransactionSource = "reversal"
)

var validWalletTransactionSources = []WalletTransactionSource{
	WalletTransactionSourceFundRelease,
	WalletTransactionSourceRefund,
	WalletTransactionSourceReversal,
}

// String implements fmt.Stringer.
func (w WalletTransactionSource) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletTransactionSource.
func (w WalletTransactionSource) IsValid() bool {
	for _, candidate := range validWalletTransactionSources {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletTransactionSource converts raw input into a WalletTransactionSource.
func ParseWalletTransactionSource(value string) (WalletTransactionSource, error) {
	for _, candidate := range validWalletTransactionSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction source %q", value)
}
