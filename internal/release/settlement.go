package release

import (
	"github.com/shopspring/decimal"

	"github.com/tobiafolabi/nairamart-backend/pkg/config"
	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

var oneHundred = decimal.NewFromInt(100)

// computeSettlement derives the payout breakdown for a sub-order. Commission
// applies to the goods subtotal only; shipping passes through to the seller.
// The result is frozen onto the fund release and never recomputed.
func computeSettlement(sub *types.SubOrder, cfg config.SettlementConfig) types.Settlement {
	subtotal := decimal.NewFromInt(sub.SubtotalKobo)
	shipping := decimal.NewFromInt(sub.TotalKobo - sub.SubtotalKobo)

	commission := subtotal.
		Mul(decimal.NewFromFloat(cfg.CommissionPercent)).
		Div(oneHundred).
		Round(0)
	fees := decimal.NewFromInt(cfg.FlatFeeKobo)

	amount := subtotal.Add(shipping).Sub(commission).Sub(fees)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return types.Settlement{
		AmountKobo:     amount.IntPart(),
		SubtotalKobo:   sub.SubtotalKobo,
		ShippingKobo:   shipping.IntPart(),
		CommissionKobo: commission.IntPart(),
		FeesKobo:       cfg.FlatFeeKobo,
	}
}
