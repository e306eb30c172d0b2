package types

import "github.com/tobiafolabi/nairamart-backend/pkg/enums"

// ReleaseRules snapshots the store trust inputs at the moment a fund release
// record is created. They are never re-evaluated afterwards.
type ReleaseRules struct {
	StoreTier          enums.StoreTier          `json:"store_tier"`
	VerificationStatus enums.VerificationStatus `json:"verification_status"`
	HoldDays           int                      `json:"hold_days"`
}

// ReleaseConditions are the flags that must all be true before a pending
// release can be promoted to ready.
type ReleaseConditions struct {
	PaymentCleared       bool `json:"payment_cleared"`
	VerificationComplete bool `json:"verification_complete"`
	DeliveryConfirmed    bool `json:"delivery_confirmed"`
}

// AllMet reports whether every release condition holds.
func (c ReleaseConditions) AllMet() bool {
	return c.PaymentCleared && c.VerificationComplete && c.DeliveryConfirmed
}

// Settlement is the payout breakdown computed once and frozen at release time.
type Settlement struct {
	AmountKobo     int64 `json:"amount_kobo"`
	SubtotalKobo   int64 `json:"subtotal_kobo"`
	ShippingKobo   int64 `json:"shipping_kobo"`
	CommissionKobo int64 `json:"commission_kobo"`
	FeesKobo       int64 `json:"fees_kobo"`
}

// RiskIndicators carries the fraud-input flags captured when release rules
// were snapshotted. Risk is an input here, never computed.
type RiskIndicators struct {
	HighRisk bool     `json:"high_risk"`
	Flags    []string `json:"flags,omitempty"`
}
