package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MatchingConfig holds the tolerances and scoring parameters of the matching
// algorithm. The defaults reproduce the production behavior: a 14-day
// settlement window, a one-cent amount epsilon, a 95% fee floor, and base
// scores that rank amount precision above settlement delay.
type MatchingConfig struct {
	// MaxDiffDays is the settlement window: a bank deposit more than this many
	// days after the revenue event is never a candidate. The boundary is
	// inclusive and compared on fractional days.
	MaxDiffDays int `json:"max_diff_days"`

	// AmountEpsilon is the absolute tolerance under which two amounts are
	// considered equal.
	AmountEpsilon decimal.Decimal `json:"amount_epsilon"`

	// FeeFloorRatio is the minimum fraction of the revenue amount a deposit
	// must reach to qualify as a fee deduction.
	FeeFloorRatio decimal.Decimal `json:"fee_floor_ratio"`

	// HoldThresholdDays separates exact matches from hold-period matches for
	// equal amounts, compared on fractional days.
	HoldThresholdDays float64 `json:"hold_threshold_days"`

	// Base scores per category. The final score is base minus the fractional
	// day difference, so closer pairs rank higher within a category.
	ExactMatchScore   float64 `json:"exact_match_score"`
	FeeDeductionScore float64 `json:"fee_deduction_score"`
	HoldPeriodScore   float64 `json:"hold_period_score"`

	// Fixed per-category confidences.
	ExactMatchConfidence   float64 `json:"exact_match_confidence"`
	FeeDeductionConfidence float64 `json:"fee_deduction_confidence"`
	HoldPeriodConfidence   float64 `json:"hold_period_confidence"`
}

// DefaultMatchingConfig returns the production matching configuration.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		MaxDiffDays:            14,
		AmountEpsilon:          decimal.NewFromFloat(0.01),
		FeeFloorRatio:          decimal.NewFromFloat(0.95),
		HoldThresholdDays:      2,
		ExactMatchScore:        1000,
		FeeDeductionScore:      800,
		HoldPeriodScore:        600,
		ExactMatchConfidence:   1.0,
		FeeDeductionConfidence: 0.9,
		HoldPeriodConfidence:   1.0,
	}
}

// Validate checks if the matching configuration is valid.
func (mc *MatchingConfig) Validate() error {
	if mc.MaxDiffDays <= 0 {
		return fmt.Errorf("max diff days must be positive: %d", mc.MaxDiffDays)
	}

	if mc.AmountEpsilon.IsNegative() || mc.AmountEpsilon.IsZero() {
		return fmt.Errorf("amount epsilon must be positive: %s", mc.AmountEpsilon)
	}

	if mc.FeeFloorRatio.LessThanOrEqual(decimal.Zero) || mc.FeeFloorRatio.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("fee floor ratio must be between 0 and 1 exclusive: %s", mc.FeeFloorRatio)
	}

	if mc.HoldThresholdDays < 0 {
		return fmt.Errorf("hold threshold days cannot be negative: %f", mc.HoldThresholdDays)
	}

	if mc.HoldThresholdDays > float64(mc.MaxDiffDays) {
		return fmt.Errorf("hold threshold days cannot exceed the settlement window: %f > %d",
			mc.HoldThresholdDays, mc.MaxDiffDays)
	}

	for _, confidence := range []struct {
		name  string
		value float64
	}{
		{"exact match confidence", mc.ExactMatchConfidence},
		{"fee deduction confidence", mc.FeeDeductionConfidence},
		{"hold period confidence", mc.HoldPeriodConfidence},
	} {
		if confidence.value < 0.0 || confidence.value > 1.0 {
			return fmt.Errorf("%s must be between 0.0 and 1.0: %f", confidence.name, confidence.value)
		}
	}

	// Amount precision must outrank settlement delay at equal lag.
	if mc.ExactMatchScore <= mc.FeeDeductionScore || mc.FeeDeductionScore <= mc.HoldPeriodScore {
		return fmt.Errorf("base scores must satisfy exact > fee deduction > hold period: %f, %f, %f",
			mc.ExactMatchScore, mc.FeeDeductionScore, mc.HoldPeriodScore)
	}

	return nil
}

// Clone creates a deep copy of the matching configuration.
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}

	clone := *mc
	return &clone
}

// String returns a human-readable description of the configuration.
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{Window: %d days, Epsilon: %s, FeeFloor: %s, HoldThreshold: %.1f days}",
		mc.MaxDiffDays, mc.AmountEpsilon, mc.FeeFloorRatio, mc.HoldThresholdDays)
}
