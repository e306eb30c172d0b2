package refunds

import "github.com/tobiafolabi/nairamart-backend/pkg/enums"

// returnTransitions is the legal vocabulary for store review of a return
// request. Rejected and refunded are terminal.
var returnTransitions = map[enums.ReturnStatus][]enums.ReturnStatus{
	enums.ReturnStatusRequested: {
		enums.ReturnStatusApproved,
		enums.ReturnStatusRejected,
	},
	enums.ReturnStatusApproved: {
		enums.ReturnStatusInTransit,
	},
	enums.ReturnStatusInTransit: {
		enums.ReturnStatusReceived,
	},
	enums.ReturnStatusReceived: {
		enums.ReturnStatusRefunded,
	},
}

// Allowed reports whether a return request may move between the two statuses.
func Allowed(from, to enums.ReturnStatus) bool {
	for _, candidate := range returnTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
