package release

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tobiafolabi/nairamart-backend/pkg/config"
	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

func TestComputeSettlement(t *testing.T) {
	cfg := config.SettlementConfig{CommissionPercent: 10, FlatFeeKobo: 10_000}

	sub := &types.SubOrder{SubtotalKobo: 450_000, TotalKobo: 500_000}
	got := computeSettlement(sub, cfg)

	assert.Equal(t, int64(450_000), got.SubtotalKobo)
	assert.Equal(t, int64(50_000), got.ShippingKobo)
	assert.Equal(t, int64(45_000), got.CommissionKobo)
	assert.Equal(t, int64(10_000), got.FeesKobo)
	// 450000 + 50000 - 45000 - 10000
	assert.Equal(t, int64(445_000), got.AmountKobo)
}

func TestComputeSettlementFractionalCommission(t *testing.T) {
	cfg := config.SettlementConfig{CommissionPercent: 2.5, FlatFeeKobo: 0}

	sub := &types.SubOrder{SubtotalKobo: 9_999, TotalKobo: 9_999}
	got := computeSettlement(sub, cfg)

	// 2.5% of 9999 = 249.975, rounded to 250
	assert.Equal(t, int64(250), got.CommissionKobo)
	assert.Equal(t, int64(9_749), got.AmountKobo)
}

func TestComputeSettlementNeverNegative(t *testing.T) {
	cfg := config.SettlementConfig{CommissionPercent: 10, FlatFeeKobo: 10_000}

	sub := &types.SubOrder{SubtotalKobo: 5_000, TotalKobo: 5_000}
	got := computeSettlement(sub, cfg)

	assert.Equal(t, int64(0), got.AmountKobo)
}
