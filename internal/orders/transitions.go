package orders

import "github.com/tobiafolabi/nairamart-backend/pkg/enums"

// deliveryTransitions is the single source of truth for legal sub-order
// delivery moves. Every status change goes through Allowed; nothing mutates
// delivery status directly.
var deliveryTransitions = map[enums.DeliveryStatus][]enums.DeliveryStatus{
	enums.DeliveryStatusOrderPlaced: {
		enums.DeliveryStatusProcessing,
		enums.DeliveryStatusCanceled,
	},
	enums.DeliveryStatusProcessing: {
		enums.DeliveryStatusShipped,
		enums.DeliveryStatusCanceled,
	},
	enums.DeliveryStatusShipped: {
		enums.DeliveryStatusOutForDelivery,
		enums.DeliveryStatusCanceled,
		enums.DeliveryStatusFailedDelivery,
	},
	enums.DeliveryStatusOutForDelivery: {
		enums.DeliveryStatusDelivered,
		enums.DeliveryStatusCanceled,
		enums.DeliveryStatusFailedDelivery,
	},
	enums.DeliveryStatusDelivered: {
		enums.DeliveryStatusReturned,
		enums.DeliveryStatusFailedDelivery,
	},
	enums.DeliveryStatusCanceled: {
		enums.DeliveryStatusRefunded,
	},
	enums.DeliveryStatusReturned: {
		enums.DeliveryStatusRefunded,
	},
	enums.DeliveryStatusFailedDelivery: {
		enums.DeliveryStatusRefunded,
	},
	// refunded is terminal
}

// Allowed reports whether a sub-order may move from one delivery status to
// another.
func Allowed(from, to enums.DeliveryStatus) bool {
	for _, candidate := range deliveryTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
