package payments

import (
	"context"
	"time"

	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
)

// VerifiedTransaction is the gateway-neutral result of a verification call.
// Amounts are always in kobo regardless of the gateway's native unit.
type VerifiedTransaction struct {
	Gateway       enums.PaymentGateway
	Reference     string
	Status        enums.GatewayTxStatus
	AmountKobo    int64
	Currency      string
	Channel       string
	CustomerEmail string
	PaidAt        *time.Time
}

// Gateway abstracts a payment provider. Implementations re-verify against the
// provider's API; webhook bodies alone never drive financial writes.
type Gateway interface {
	Name() enums.PaymentGateway
	VerifyTransaction(ctx context.Context, reference string) (*VerifiedTransaction, error)
}

// Registry resolves gateways by name.
type Registry struct {
	gateways map[enums.PaymentGateway]Gateway
}

// NewRegistry indexes the provided gateways by name.
func NewRegistry(gateways ...Gateway) *Registry {
	reg := &Registry{gateways: make(map[enums.PaymentGateway]Gateway, len(gateways))}
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		reg.gateways[gw.Name()] = gw
	}
	return reg
}

// Resolve returns the gateway registered under the given name.
func (r *Registry) Resolve(name enums.PaymentGateway) (Gateway, error) {
	if gw, ok := r.gateways[name]; ok {
		return gw, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment gateway "+name.String())
}
