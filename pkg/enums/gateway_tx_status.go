package enums

import "fmt"

// GatewayTxStatus is the normalized transaction status reported by a payment
// gateway verification call.
type GatewayTxStatus string

const (
	GatewayTxStatusSuccess   GatewayTxStatus = "success"
	GatewayTxStatusPending   GatewayTxStatus = "pending"
	GatewayTxStatusFailed    GatewayTxStatus = "failed"
	GatewayTxStatusCancelled GatewayTxStatus = "cancelled"
	GatewayTxStatusAbandoned GatewayTxStatus = "abandoned"
	GatewayTxStatusReversed  GatewayTxStatus = "reversed"
)

var validGatewayTxStatuses = []GatewayTxStatus{
	GatewayTxStatusSuccess,
	GatewayTxStatusPending,
	GatewayTxStatusFailed,
	GatewayTxStatusCancelled,
	GatewayTxStatusAbandoned,
	GatewayTxStatusReversed,
}

// String implements fmt.Stringer.
func (g GatewayTxStatus) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GatewayTxStatus.
func (g GatewayTxStatus) IsValid() bool {
	for _, candidate := range validGatewayTxStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}

// IsTerminalFailure reports whether the status means the charge conclusively
// did not happen. Pending is excluded: an in-progress charge must not mutate
// order state.
func (g GatewayTxStatus) IsTerminalFailure() bool {
	switch g {
	case GatewayTxStatusFailed, GatewayTxStatusCancelled, GatewayTxStatusAbandoned, GatewayTxStatusReversed:
		return true
	}
	return false
}

// ParseGatewayTxStatus converts raw input into a GatewayTxStatus.
func ParseGatewayTxStatus(value string) (GatewayTxStatus, error) {
	for _, candidate := range validGatewayTxStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway transaction status %q", value)
}
