package enums

import "fmt"

// StoreTier is the trust classification of a seller store. It modulates the
// buyer-protection window applied before funds release.
type StoreTier string

const (
	StoreTierNew      StoreTier = "new"
	StoreTierStandard StoreTier = "standard"
	StoreTierTrusted  StoreTier = "trusted"
	StoreTierFlagged  StoreTier = "flagged"
)

var validStoreTiers = []StoreTier{
	StoreTierNew,
	StoreTierStandard,
	StoreTierTrusted,
	StoreTierFlagged,
}

// String implements fmt.Stringer.
func (s StoreTier) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StoreTier.
func (s StoreTier) IsValid() bool {
	for _, candidate := range validStoreTiers {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStoreTier converts raw input into a StoreTier.
func ParseStoreTier(value string) (StoreTier, error) {
	for _, candidate := range validStoreTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid store tier %q", value)
}

// VerificationStatus captures the store-level identity verification workflow.
type VerificationStatus string

const (
	VerificationStatusPending   VerificationStatus = "pending"
	VerificationStatusVerified  VerificationStatus = "verified"
	VerificationStatusRejected  VerificationStatus = "rejected"
	VerificationStatusSuspended VerificationStatus = "suspended"
)

var validVerificationStatuses = []VerificationStatus{
	VerificationStatusPending,
	VerificationStatusVerified,
	VerificationStatusRejected,
	VerificationStatusSuspended,
}

// String implements fmt.Stringer.
func (v VerificationStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VerificationStatus.
func (v VerificationStatus) IsValid() bool {
	for _, candidate := range validVerificationStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVerificationStatus converts raw input into a VerificationStatus.
func ParseVerificationStatus(value string) (VerificationStatus, error) {
	for _, candidate := range validVerificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid verification status %q", value)
}
