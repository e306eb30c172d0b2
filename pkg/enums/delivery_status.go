package enums

import "fmt"

// DeliveryStatus tracks the fulfillment lifecycle of a sub-order.
type DeliveryStatus string

const (
	DeliveryStatusOrderPlaced    DeliveryStatus = "order_placed"
	DeliveryStatusProcessing     DeliveryStatus = "processing"
	DeliveryStatusShipped        DeliveryStatus = "shipped"
	DeliveryStatusOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryStatusDelivered      DeliveryStatus = "delivered"
	DeliveryStatusCanceled       DeliveryStatus = "canceled"
	DeliveryStatusReturned       DeliveryStatus = "returned"
	DeliveryStatusFailedDelivery DeliveryStatus = "failed_delivery"
	DeliveryStatusRefunded       DeliveryStatus = "refunded"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusOrderPlaced,
	DeliveryStatusProcessing,
	DeliveryStatusShipped,
	DeliveryStatusOutForDelivery,
	DeliveryStatusDelivered,
	DeliveryStatusCanceled,
	DeliveryStatusReturned,
	DeliveryStatusFailedDelivery,
	DeliveryStatusRefunded,
}

// String implements fmt.Stringer.
func (d DeliveryStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsTerminationState reports whether the status ends normal fulfillment.
func (d DeliveryStatus) IsTerminationState() bool {
	switch d {
	case DeliveryStatusCanceled, DeliveryStatusReturned, DeliveryStatusFailedDelivery, DeliveryStatusRefunded:
		return true
	}
	return false
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
