package customer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestClassifyTier(t *testing.T) {
	tests := []struct {
		spend string
		want  Tier
	}{
		{"0", TierNormal},
		{"2999", TierNormal},
		{"2999.99", TierNormal},
		{"3000", TierBronze},
		{"9999", TierBronze},
		{"10000", TierSilver},
		{"29999", TierSilver},
		{"29999.99", TierSilver},
		{"30000", TierGold},
		{"1000000", TierGold},
	}

	for _, tt := range tests {
		t.Run(tt.spend, func(t *testing.T) {
			spend := decimal.RequireFromString(tt.spend)
			assert.Equal(t, tt.want, ClassifyTier(spend))
		})
	}
}

func TestClassifyTier_Idempotent(t *testing.T) {
	spend := decimal.NewFromInt(10000)
	first := ClassifyTier(spend)
	second := ClassifyTier(spend)
	assert.Equal(t, first, second)
}
