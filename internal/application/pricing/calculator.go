package pricing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/rs/zerolog"

	"github.com/loadboard/loadboard/internal/domain/bid"
)

// RateRule adjusts a quote multiplier when its expression matches the quote
// inputs. Expressions are govaluate booleans over region, loadType, month,
// weightTons and distanceKm, e.g. `region == 'NORTH' && month >= 11`.
type RateRule struct {
	Name       string  `json:"name"`
	Expr       string  `json:"expr"`
	Multiplier float64 `json:"multiplier"`
}

// Config holds the tariff knobs for price suggestions.
type Config struct {
	RatePerKm        float64
	RatePerTon       float64
	FuelSurchargePct float64
	HandlingFee      float64
	SeasonalRules    []RateRule
	RegionRules      []RateRule
}

// DefaultConfig mirrors the tariffs the admin console seeds for new regions.
func DefaultConfig() Config {
	return Config{
		RatePerKm:        28,
		RatePerTon:       450,
		FuelSurchargePct: 12,
		HandlingFee:      1500,
	}
}

// Quote is a price suggestion with its full breakdown. SuggestedPrice is
// kept unrounded so that it always equals
// (BaseAmount + FuelSurcharge + HandlingFee) * SeasonalMultiplier * RegionMultiplier
// exactly; rounding happens only when a gross price is derived or displayed.
type Quote struct {
	SuggestedPrice     float64 `json:"suggestedPrice"`
	BaseAmount         float64 `json:"baseAmount"`
	FuelSurcharge      float64 `json:"fuelSurcharge"`
	HandlingFee        float64 `json:"handlingFee"`
	SeasonalMultiplier float64 `json:"seasonalMultiplier"`
	RegionMultiplier   float64 `json:"regionMultiplier"`
	ConfidenceScore    float64 `json:"confidenceScore"`
}

// Margin is the platform/carrier split of a gross price.
type Margin struct {
	PlatformMargin float64 `json:"platformMargin"`
	CarrierPayout  float64 `json:"carrierPayout"`
}

// Split divides a carrier payout into advance and balance.
type Split struct {
	Advance float64 `json:"advance"`
	Balance float64 `json:"balance"`
}

// Calculator computes price suggestions. Stateless and deterministic given
// its config; safe for concurrent use.
type Calculator struct {
	cfg    Config
	logger zerolog.Logger
}

func NewCalculator(cfg Config, logger zerolog.Logger) *Calculator {
	return &Calculator{
		cfg:    cfg,
		logger: logger.With().Str("service", "pricing").Logger(),
	}
}

// SuggestPrice computes a suggested price for the given lane inputs.
// Distance is a required real input; there is no estimation fallback.
func (c *Calculator) SuggestPrice(distanceKm, weightTons float64, loadType, region string) (*Quote, error) {
	if distanceKm <= 0 || weightTons <= 0 {
		return nil, fmt.Errorf("distance and weight must be positive: %w", bid.ErrInvalidPrice)
	}

	base := distanceKm*c.cfg.RatePerKm + weightTons*c.cfg.RatePerTon
	fuel := base * c.cfg.FuelSurchargePct / 100
	handling := c.cfg.HandlingFee

	params := map[string]interface{}{
		"region":     strings.ToUpper(region),
		"loadType":   strings.ToUpper(loadType),
		"month":      float64(time.Now().UTC().Month()),
		"weightTons": weightTons,
		"distanceKm": distanceKm,
	}
	seasonal, seasonalMatched := c.resolveMultiplier(c.cfg.SeasonalRules, params)
	regional, regionMatched := c.resolveMultiplier(c.cfg.RegionRules, params)

	q := &Quote{
		BaseAmount:         base,
		FuelSurcharge:      fuel,
		HandlingFee:        handling,
		SeasonalMultiplier: seasonal,
		RegionMultiplier:   regional,
	}
	q.SuggestedPrice = (q.BaseAmount + q.FuelSurcharge + q.HandlingFee) * q.SeasonalMultiplier * q.RegionMultiplier
	q.ConfidenceScore = confidence(distanceKm, seasonalMatched, regionMatched)
	return q, nil
}

// resolveMultiplier evaluates rules in order and returns the first match.
// Broken expressions are skipped, not fatal: a bad tariff rule must never
// block quoting.
func (c *Calculator) resolveMultiplier(rules []RateRule, params map[string]interface{}) (float64, bool) {
	for _, rule := range rules {
		expr, err := govaluate.NewEvaluableExpression(rule.Expr)
		if err != nil {
			c.logger.Warn().Err(err).Str("rule", rule.Name).Msg("invalid rate rule expression")
			continue
		}
		result, err := expr.Evaluate(params)
		if err != nil {
			c.logger.Warn().Err(err).Str("rule", rule.Name).Msg("rate rule evaluation failed")
			continue
		}
		if matched, ok := result.(bool); ok && matched {
			return rule.Multiplier, true
		}
	}
	return 1.0, false
}

func confidence(distanceKm float64, seasonalMatched, regionMatched bool) float64 {
	score := 0.95
	if !regionMatched {
		score -= 0.10
	}
	if !seasonalMatched {
		score -= 0.05
	}
	if distanceKm < 50 || distanceKm > 3000 {
		score -= 0.10
	}
	if score < 0.5 {
		score = 0.5
	}
	return score
}

// ApplyAdjustments derives the gross posted price from a suggestion.
// Never negative.
func ApplyAdjustments(suggestedPrice, markupPercent, fixedFee, discountAmount float64) float64 {
	gross := math.Round(suggestedPrice*(1+markupPercent/100) + fixedFee - discountAmount)
	if gross < 0 {
		return 0
	}
	return gross
}

// ComputeMargin splits a gross price into platform margin and carrier
// payout. The payout is the remainder, never rounded independently, so
// margin + payout == grossPrice always holds.
func ComputeMargin(grossPrice, platformMarginPercent float64) (Margin, error) {
	if platformMarginPercent < 0 || platformMarginPercent > 50 {
		return Margin{}, fmt.Errorf("platform margin percent must be within [0,50]: %w", bid.ErrInvalidPrice)
	}
	margin := math.Round(grossPrice * platformMarginPercent / 100)
	return Margin{
		PlatformMargin: margin,
		CarrierPayout:  grossPrice - margin,
	}, nil
}

// ComputeAdvanceSplit divides a carrier payout into advance and balance
// with the same remainder discipline as ComputeMargin.
func ComputeAdvanceSplit(carrierPayout, advancePercent float64) (Split, error) {
	if advancePercent < 0 || advancePercent > 100 {
		return Split{}, fmt.Errorf("advance percent must be within [0,100]: %w", bid.ErrInvalidPrice)
	}
	advance := math.Round(carrierPayout * advancePercent / 100)
	return Split{
		Advance: advance,
		Balance: carrierPayout - advance,
	}, nil
}

// ComputePerTonTotal computes a rounded per-ton freight total.
func ComputePerTonTotal(ratePerTon, tonnage float64) float64 {
	return math.Round(ratePerTon * tonnage)
}
