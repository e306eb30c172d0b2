package checkout

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
)

// Payment references are minted per attempt as nm_<cartID>_<nonce>. The cart
// id embedded in the reference is how a verified transaction finds its cart;
// the nonce keeps retried attempts distinct at the gateway.
const referencePrefix = "nm"

// BuildPaymentReference mints a fresh gateway reference for a checkout attempt.
func BuildPaymentReference(cartID uuid.UUID) string {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%s_%s", referencePrefix, cartID, nonce)
}

// ParseCartReference extracts the cart id from a payment reference.
func ParseCartReference(reference string) (uuid.UUID, error) {
	parts := strings.Split(reference, "_")
	if len(parts) != 3 || parts[0] != referencePrefix {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "unrecognized payment reference format")
	}
	cartID, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference carries no cart id")
	}
	return cartID, nil
}
