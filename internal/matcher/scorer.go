package matcher

import (
	"golang-revenue-reconciliation/internal/models"
)

// ScorePair classifies a (revenue, bank) pair into a match category and
// computes its score and confidence. It returns false when the pair is not a
// plausible match.
//
// Classification rules, in priority order:
//   - amounts equal within the epsilon, settled before the hold threshold:
//     exact match
//   - amounts equal within the epsilon, settled at or after the hold
//     threshold: hold period
//   - deposit below the revenue amount but at or above the fee floor:
//     fee deduction
//
// The final score is the category base score minus the fractional day lag, so
// within a category the temporally closer pair ranks higher, while the base
// scores keep amount precision ranked above settlement delay across
// categories.
func ScorePair(revenue *models.RevenueTransaction, bank *models.BankTransaction, cfg *MatchingConfig) (MatchCandidate, bool) {
	if cfg == nil {
		cfg = DefaultMatchingConfig()
	}

	lag := diffDays(revenue.TransactionDate, bank.TransactionDate)
	if lag < 0 || lag > float64(cfg.MaxDiffDays) {
		return MatchCandidate{}, false
	}

	var category models.MatchCategory
	var confidence float64
	var baseScore float64

	amountDiff := bank.Amount.Sub(revenue.Amount).Abs()

	switch {
	case amountDiff.LessThan(cfg.AmountEpsilon):
		if lag < cfg.HoldThresholdDays {
			category = models.MatchExact
			confidence = cfg.ExactMatchConfidence
			baseScore = cfg.ExactMatchScore
		} else {
			category = models.MatchHoldPeriod
			confidence = cfg.HoldPeriodConfidence
			baseScore = cfg.HoldPeriodScore
		}

	case bank.Amount.LessThan(revenue.Amount) &&
		bank.Amount.GreaterThanOrEqual(revenue.Amount.Mul(cfg.FeeFloorRatio)):
		category = models.MatchFeeDeduction
		confidence = cfg.FeeDeductionConfidence
		baseScore = cfg.FeeDeductionScore

	default:
		return MatchCandidate{}, false
	}

	return MatchCandidate{
		Revenue:    revenue,
		Bank:       bank,
		Category:   category,
		Confidence: confidence,
		Score:      baseScore - lag,
	}, true
}
