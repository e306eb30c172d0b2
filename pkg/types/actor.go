package types

import (
	"github.com/google/uuid"

	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
)

// Actor identifies the authenticated principal driving an operation. Services
// authorize against it; controllers build it from the access token.
type Actor struct {
	UserID  uuid.UUID
	StoreID *uuid.UUID
	Role    enums.MemberRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.MemberRoleAdmin
}

// IsSellerFor reports whether the actor is a seller acting for the store.
func (a Actor) IsSellerFor(storeID uuid.UUID) bool {
	return a.Role == enums.MemberRoleSeller && a.StoreID != nil && *a.StoreID == storeID
}
