package enums

import "fmt"

// ReleaseStatus tracks the lifecycle of a fund release record.
type ReleaseStatus string

const (
	ReleaseStatusPending    ReleaseStatus = "pending"
	ReleaseStatusReady      ReleaseStatus = "ready"
	ReleaseStatusProcessing ReleaseStatus = "processing"
	ReleaseStatusReleased   ReleaseStatus = "released"
	ReleaseStatusFailed     ReleaseStatus = "failed"
	ReleaseStatusReversed   ReleaseStatus = "reversed"
)

var validReleaseStatuses = []ReleaseStatus{
	ReleaseStatusPending,
	ReleaseStatusReady,
	ReleaseStatusProcessing,
	ReleaseStatusReleased,
	ReleaseStatusFailed,
	ReleaseStatusReversed,
}

// String implements fmt.Stringer.
func (r ReleaseStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReleaseStatus.
func (r ReleaseStatus) IsValid() bool {
	for _, candidate := range validReleaseStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
// Failed is not terminal: it is retryable back to ready.
func (r ReleaseStatus) IsTerminal() bool {
	return r == ReleaseStatusReleased || r == ReleaseStatusReversed
}

// ParseReleaseStatus converts raw input into a ReleaseStatus.
func ParseReleaseStatus(value string) (ReleaseStatus, error) {
	for _, candidate := range validReleaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid release status %q", value)
}
