package pricing

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCalculator(cfg Config) *Calculator {
	return NewCalculator(cfg, zerolog.Nop())
}

func TestSuggestPrice_BreakdownIsExact(t *testing.T) {
	calc := testCalculator(Config{
		RatePerKm:        30,
		RatePerTon:       500,
		FuelSurchargePct: 10,
		HandlingFee:      2000,
	})

	q, err := calc.SuggestPrice(1000, 20, "STEEL", "NORTH")
	require.NoError(t, err)

	// base = 1000*30 + 20*500 = 40000; fuel = 4000; handling = 2000
	assert.Equal(t, 40000.0, q.BaseAmount)
	assert.Equal(t, 4000.0, q.FuelSurcharge)
	assert.Equal(t, 2000.0, q.HandlingFee)
	assert.Equal(t, 1.0, q.SeasonalMultiplier)
	assert.Equal(t, 1.0, q.RegionMultiplier)

	// The displayed breakdown must reproduce the total with no drift.
	recomputed := (q.BaseAmount + q.FuelSurcharge + q.HandlingFee) * q.SeasonalMultiplier * q.RegionMultiplier
	assert.Equal(t, recomputed, q.SuggestedPrice)
	assert.Equal(t, 46000.0, q.SuggestedPrice)
}

func TestSuggestPrice_RejectsBadInputs(t *testing.T) {
	calc := testCalculator(DefaultConfig())
	_, err := calc.SuggestPrice(0, 20, "STEEL", "NORTH")
	assert.Error(t, err)
	_, err = calc.SuggestPrice(500, -1, "STEEL", "NORTH")
	assert.Error(t, err)
}

func TestSuggestPrice_RateRules(t *testing.T) {
	cfg := Config{
		RatePerKm:        30,
		RatePerTon:       500,
		FuelSurchargePct: 10,
		HandlingFee:      2000,
		RegionRules: []RateRule{
			{Name: "remote north", Expr: "region == 'NORTH'", Multiplier: 1.2},
			{Name: "broken rule", Expr: "region ==", Multiplier: 9},
		},
		SeasonalRules: []RateRule{
			{Name: "never", Expr: "false", Multiplier: 2},
		},
	}
	calc := testCalculator(cfg)

	q, err := calc.SuggestPrice(1000, 20, "STEEL", "north")
	require.NoError(t, err)
	assert.Equal(t, 1.2, q.RegionMultiplier)
	assert.Equal(t, 1.0, q.SeasonalMultiplier)
	assert.Equal(t, 46000.0*1.2, q.SuggestedPrice)

	// no rule matches for another region, broken rule is skipped
	q, err = calc.SuggestPrice(1000, 20, "STEEL", "SOUTH")
	require.NoError(t, err)
	assert.Equal(t, 1.0, q.RegionMultiplier)
}

func TestSuggestPrice_ConfidenceScore(t *testing.T) {
	calc := testCalculator(DefaultConfig())

	q, err := calc.SuggestPrice(800, 20, "STEEL", "NORTH")
	require.NoError(t, err)
	assert.InDelta(t, 0.80, q.ConfidenceScore, 1e-9)

	// extreme distance lowers confidence further
	q, err = calc.SuggestPrice(4000, 20, "STEEL", "NORTH")
	require.NoError(t, err)
	assert.InDelta(t, 0.70, q.ConfidenceScore, 1e-9)
}

func TestApplyAdjustments(t *testing.T) {
	// scenario from the pricing review dialog: 50000 +10% markup +500 fee
	assert.Equal(t, 55500.0, ApplyAdjustments(50000, 10, 500, 0))
	assert.Equal(t, 55000.0, ApplyAdjustments(50000, 10, 500, 500))
	// never negative
	assert.Equal(t, 0.0, ApplyAdjustments(100, 0, 0, 5000))
}

func TestComputeMargin(t *testing.T) {
	m, err := ComputeMargin(55500, 10)
	require.NoError(t, err)
	assert.Equal(t, 5550.0, m.PlatformMargin)
	assert.Equal(t, 49950.0, m.CarrierPayout)
}

func TestComputeMargin_PercentOutOfRange(t *testing.T) {
	_, err := ComputeMargin(10000, -1)
	assert.Error(t, err)
	_, err = ComputeMargin(10000, 50.5)
	assert.Error(t, err)
	_, err = ComputeMargin(10000, 50)
	assert.NoError(t, err)
	_, err = ComputeMargin(10000, 0)
	assert.NoError(t, err)
}

// The payout is a remainder, so margin + payout reproduces the gross price
// exactly for any inputs.
func TestComputeMargin_Conservation(t *testing.T) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < 1000; i++ {
		gross := float64(rng.Intn(10_000_000)) + rng.Float64()
		pct := rng.Float64() * 50
		m, err := ComputeMargin(gross, pct)
		require.NoError(t, err)
		assert.Equal(t, gross, m.PlatformMargin+m.CarrierPayout)
	}
}

func TestComputeAdvanceSplit(t *testing.T) {
	s, err := ComputeAdvanceSplit(49950, 40)
	require.NoError(t, err)
	assert.Equal(t, 19980.0, s.Advance)
	assert.Equal(t, 29970.0, s.Balance)

	_, err = ComputeAdvanceSplit(49950, 101)
	assert.Error(t, err)
}

func TestComputeAdvanceSplit_Conservation(t *testing.T) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < 1000; i++ {
		payout := float64(rng.Intn(10_000_000)) + rng.Float64()
		pct := rng.Float64() * 100
		s, err := ComputeAdvanceSplit(payout, pct)
		require.NoError(t, err)
		assert.Equal(t, payout, s.Advance+s.Balance)
	}
}

func TestComputePerTonTotal(t *testing.T) {
	assert.Equal(t, 45000.0, ComputePerTonTotal(1500, 30))
	assert.Equal(t, 1238.0, ComputePerTonTotal(450.1, 2.75))
}
