package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmeshcher/kassa-terminal/internal/backend"
	"github.com/mmeshcher/kassa-terminal/internal/model"
)

func TestApplyDelta_NeverBelowOne(t *testing.T) {
	for _, q := range []float64{1, 2, 3.5, 10, 1000} {
		for _, d := range []float64{-2000, -10, -1, -0.5, 0, 1, 7} {
			got := ApplyDelta(q, d)
			assert.GreaterOrEqual(t, got, 1.0, "q=%v delta=%v", q, d)
		}
	}
	assert.Equal(t, 3.0, ApplyDelta(2, 1))
	assert.Equal(t, 1.0, ApplyDelta(2, -1))
	assert.Equal(t, 1.0, ApplyDelta(1, -1))
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, 24000.0, LineTotal(2, 12000))
	assert.Equal(t, 18000.0, LineTotal(1.5, 12000))
	assert.Equal(t, 0.0, LineTotal(3, 0))
}

func TestFromRemote(t *testing.T) {
	sklad := int64(2)
	tests := []struct {
		name      string
		in        backend.OrderLine
		ok        bool
		wantName  string
		wantPrice float64
		wantTier  model.PriceTier
		wantTotal float64
		wantSklad int64
	}{
		{
			name:      "unit price with denormalized name",
			in:        backend.OrderLine{ID: 1, Product: 10, Count: 2, UnitPrice: 12000, WholesalePrice: 10000, PriceType: "unit", BranchDetail: &backend.NamedRef{Name: "Kiyim"}, ModelDetail: &backend.NamedRef{Name: "Bamboo"}},
			ok:        true,
			wantName:  "Kiyim Bamboo",
			wantPrice: 12000,
			wantTier:  model.TierUnit,
			wantTotal: 24000,
		},
		{
			name:      "wholesale from warehouse",
			in:        backend.OrderLine{ID: 2, Product: 11, Count: 5, UnitPrice: 10000, WholesalePrice: 8000, PriceType: "wholesale", Sklad: &sklad},
			ok:        true,
			wantName:  "Mahsulot #11",
			wantPrice: 8000,
			wantTier:  model.TierWholesale,
			wantTotal: 40000,
			wantSklad: 2,
		},
		{
			name:      "missing unit price falls back to wholesale",
			in:        backend.OrderLine{ID: 3, Product: 12, Count: 1, WholesalePrice: 7000},
			ok:        true,
			wantName:  "Mahsulot #12",
			wantPrice: 7000,
			wantTier:  model.TierUnit,
			wantTotal: 7000,
		},
		{
			name:      "missing wholesale price falls back to unit",
			in:        backend.OrderLine{ID: 5, Product: 14, Count: 2, UnitPrice: 9000, PriceType: "wholesale"},
			ok:        true,
			wantName:  "Mahsulot #14",
			wantPrice: 9000,
			wantTier:  model.TierWholesale,
			wantTotal: 18000,
		},
		{
			name: "soft deleted",
			in:   backend.OrderLine{ID: 4, Product: 13, Count: 1, UnitPrice: 1, IsDelete: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, ok := fromRemote(tt.in)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantName, line.Name)
			assert.Equal(t, tt.wantPrice, line.UnitPrice)
			assert.Equal(t, tt.wantTier, line.Tier)
			assert.Equal(t, tt.wantTotal, line.TotalPrice)
			assert.Equal(t, tt.wantSklad, line.SkladID)
			assert.Equal(t, line.Quantity*line.UnitPrice, line.TotalPrice)
		})
	}
}
