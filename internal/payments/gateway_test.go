package payments

import (
	"context"
	"testing"

	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
)

type stubGateway struct {
	name enums.PaymentGateway
}

func (s *stubGateway) Name() enums.PaymentGateway {
	return s.name
}

func (s *stubGateway) VerifyTransaction(ctx context.Context, reference string) (*VerifiedTransaction, error) {
	return &VerifiedTransaction{Gateway: s.name, Reference: reference}, nil
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry(
		&stubGateway{name: enums.PaymentGatewayPaystack},
		&stubGateway{name: enums.PaymentGatewayFlutterwave},
		nil,
	)

	gw, err := reg.Resolve(enums.PaymentGatewayPaystack)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gw.Name() != enums.PaymentGatewayPaystack {
		t.Fatalf("unexpected gateway %s", gw.Name())
	}

	_, err = reg.Resolve(enums.PaymentGateway("stripe"))
	if err == nil {
		t.Fatal("expected error for unknown gateway")
	}
	if domainErr := pkgerrors.As(err); domainErr == nil || domainErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestNormalizePaystackStatus(t *testing.T) {
	cases := map[string]enums.GatewayTxStatus{
		"success":   enums.GatewayTxStatusSuccess,
		"Success":   enums.GatewayTxStatusSuccess,
		"pending":   enums.GatewayTxStatusPending,
		"ongoing":   enums.GatewayTxStatusPending,
		"abandoned": enums.GatewayTxStatusAbandoned,
		"reversed":  enums.GatewayTxStatusReversed,
		"cancelled": enums.GatewayTxStatusCancelled,
		"failed":    enums.GatewayTxStatusFailed,
		"weird":     enums.GatewayTxStatusFailed,
	}
	for input, want := range cases {
		if got := normalizePaystackStatus(input); got != want {
			t.Errorf("normalizePaystackStatus(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestNormalizeFlutterwaveStatus(t *testing.T) {
	cases := map[string]enums.GatewayTxStatus{
		"successful": enums.GatewayTxStatusSuccess,
		"pending":    enums.GatewayTxStatusPending,
		"cancelled":  enums.GatewayTxStatusCancelled,
		"voided":     enums.GatewayTxStatusReversed,
		"failed":     enums.GatewayTxStatusFailed,
	}
	for input, want := range cases {
		if got := normalizeFlutterwaveStatus(input); got != want {
			t.Errorf("normalizeFlutterwaveStatus(%q) = %s, want %s", input, got, want)
		}
	}
}
