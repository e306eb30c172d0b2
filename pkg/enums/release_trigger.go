package enums

import "fmt"

// ReleaseTrigger records what advanced a fund release toward payout.
type ReleaseTrigger string

const (
	ReleaseTriggerSystem        ReleaseTrigger = "system"
	ReleaseTriggerAdminApproved ReleaseTrigger = "admin_approved"
	ReleaseTriggerAdminForced   ReleaseTrigger = "admin_forced"
)

var validReleaseTriggers = []ReleaseTrigger{
	ReleaseTriggerSystem,
	ReleaseTriggerAdminApproved,
	ReleaseTriggerAdminForced,
}

// String implements fmt.Stringer.
func (r ReleaseTrigger) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReleaseTrigger.
func (r ReleaseTrigger) IsValid() bool {
	for _, candidate := range validReleaseTriggers {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReleaseTrigger converts raw input into a ReleaseTrigger.
func ParseReleaseTrigger(value string) (ReleaseTrigger, error) {
	for _, candidate := range validReleaseTriggers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid release trigger %q", value)
}
