package matcher

import (
	"testing"
	"time"

	"golang-revenue-reconciliation/internal/models"

	"github.com/shopspring/decimal"
)

func revenueAt(id string, amount float64, date time.Time) *models.RevenueTransaction {
	return &models.RevenueTransaction{
		ID:              id,
		UserID:          "user_1",
		Platform:        "youtube",
		Amount:          decimal.NewFromFloat(amount),
		TransactionDate: date,
	}
}

func bankAt(id string, amount float64, date time.Time) *models.BankTransaction {
	return &models.BankTransaction{
		ID:              id,
		Amount:          decimal.NewFromFloat(amount),
		TransactionDate: date,
		Description:     "DEPOSIT",
	}
}

func TestScorePairExactMatch(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rev := revenueAt("rev_1", 100, base)
	bank := bankAt("bank_1", 100, base.AddDate(0, 0, 1))

	candidate, ok := ScorePair(rev, bank, DefaultMatchingConfig())
	if !ok {
		t.Fatal("Expected a candidate")
	}

	if candidate.Category != models.MatchExact {
		t.Errorf("Expected exact_match, got %s", candidate.Category)
	}

	if candidate.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %f", candidate.Confidence)
	}

	if candidate.Score != 999 {
		t.Errorf("Expected score 999 (1000 - 1 day), got %f", candidate.Score)
	}
}

func TestScorePairHoldPeriod(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rev := revenueAt("rev_1", 100, base)
	bank := bankAt("bank_1", 100, base.AddDate(0, 0, 10))

	candidate, ok := ScorePair(rev, bank, DefaultMatchingConfig())
	if !ok {
		t.Fatal("Expected a candidate")
	}

	if candidate.Category != models.MatchHoldPeriod {
		t.Errorf("Expected hold_period, got %s", candidate.Category)
	}

	if candidate.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %f", candidate.Confidence)
	}

	if candidate.Score != 590 {
		t.Errorf("Expected score 590 (600 - 10 days), got %f", candidate.Score)
	}
}

func TestScorePairHoldThresholdBoundary(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rev := revenueAt("rev_1", 100, base)

	// 1.99 days is still an exact match, 2.0 days is a hold period.
	justUnder := bankAt("bank_1", 100, base.Add(47*time.Hour))
	atThreshold := bankAt("bank_2", 100, base.Add(48*time.Hour))

	candidate, _ := ScorePair(rev, justUnder, DefaultMatchingConfig())
	if candidate.Category != models.MatchExact {
		t.Errorf("Expected exact_match just under threshold, got %s", candidate.Category)
	}

	candidate, _ = ScorePair(rev, atThreshold, DefaultMatchingConfig())
	if candidate.Category != models.MatchHoldPeriod {
		t.Errorf("Expected hold_period at threshold, got %s", candidate.Category)
	}
}

func TestScorePairFeeDeduction(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rev := revenueAt("rev_1", 100, base)
	bank := bankAt("bank_1", 96.80, base.AddDate(0, 0, 2))

	candidate, ok := ScorePair(rev, bank, DefaultMatchingConfig())
	if !ok {
		t.Fatal("Expected a candidate")
	}

	if candidate.Category != models.MatchFeeDeduction {
		t.Errorf("Expected fee_deduction, got %s", candidate.Category)
	}

	if candidate.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", candidate.Confidence)
	}

	if candidate.Score != 798 {
		t.Errorf("Expected score 798 (800 - 2 days), got %f", candidate.Score)
	}
}

func TestScorePairFeeFloorBoundary(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rev := revenueAt("rev_1", 100, base)

	tests := []struct {
		name       string
		bankAmount float64
		category   models.MatchCategory
		wantMatch  bool
	}{
		{"at fee floor", 95.00, models.MatchFeeDeduction, true},
		{"below fee floor", 94.99, "", false},
		{"one cent under revenue", 99.99, models.MatchFeeDeduction, true},
		{"half a cent under revenue", 99.995, models.MatchExact, true},
		{"above revenue", 105.00, "", false},
		{"half the amount", 50.00, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank := bankAt("bank_1", tt.bankAmount, base.AddDate(0, 0, 1))
			candidate, ok := ScorePair(rev, bank, DefaultMatchingConfig())

			if ok != tt.wantMatch {
				t.Fatalf("Expected match=%v, got %v", tt.wantMatch, ok)
			}

			if ok && candidate.Category != tt.category {
				t.Errorf("Expected category %s, got %s", tt.category, candidate.Category)
			}
		})
	}
}

func TestScorePairRejectsDepositBeforeRevenue(t *testing.T) {
	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	rev := revenueAt("rev_1", 100, base)

	// Same day but two hours before the revenue event: the fractional day
	// difference is negative and the pair must be rejected.
	bank := bankAt("bank_1", 100, base.Add(-2*time.Hour))

	if _, ok := ScorePair(rev, bank, DefaultMatchingConfig()); ok {
		t.Error("Expected pair with negative lag to be rejected")
	}
}

func TestScorePairRejectsBeyondWindow(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rev := revenueAt("rev_1", 100, base)

	// Exactly 14 days is inside the window, 14 days plus one minute is not.
	atBoundary := bankAt("bank_1", 100, base.AddDate(0, 0, 14))
	beyond := bankAt("bank_2", 100, base.AddDate(0, 0, 14).Add(time.Minute))

	candidate, ok := ScorePair(rev, atBoundary, DefaultMatchingConfig())
	if !ok {
		t.Fatal("Expected 14-day pair to be scored")
	}
	if candidate.Category != models.MatchHoldPeriod {
		t.Errorf("Expected hold_period at window boundary, got %s", candidate.Category)
	}

	if _, ok := ScorePair(rev, beyond, DefaultMatchingConfig()); ok {
		t.Error("Expected pair beyond the window to be rejected")
	}
}

func TestScorePairCategoryOrderingAtEqualLag(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rev := revenueAt("rev_1", 100, base)
	lag := base.AddDate(0, 0, 3)

	fee, _ := ScorePair(rev, bankAt("bank_1", 96, lag), DefaultMatchingConfig())
	hold, _ := ScorePair(rev, bankAt("bank_2", 100, lag), DefaultMatchingConfig())

	if fee.Score <= hold.Score {
		t.Errorf("Expected fee_deduction (%f) to outrank hold_period (%f) at equal lag",
			fee.Score, hold.Score)
	}
}

func TestMatchingConfigValidate(t *testing.T) {
	if err := DefaultMatchingConfig().Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*MatchingConfig)
	}{
		{"zero window", func(c *MatchingConfig) { c.MaxDiffDays = 0 }},
		{"zero epsilon", func(c *MatchingConfig) { c.AmountEpsilon = decimal.Zero }},
		{"fee floor at 1", func(c *MatchingConfig) { c.FeeFloorRatio = decimal.NewFromInt(1) }},
		{"hold threshold beyond window", func(c *MatchingConfig) { c.HoldThresholdDays = 20 }},
		{"inverted scores", func(c *MatchingConfig) { c.HoldPeriodScore = 2000 }},
		{"confidence above 1", func(c *MatchingConfig) { c.FeeDeductionConfidence = 1.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMatchingConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestMatchingConfigClone(t *testing.T) {
	cfg := DefaultMatchingConfig()
	clone := cfg.Clone()

	clone.MaxDiffDays = 30
	if cfg.MaxDiffDays != 14 {
		t.Error("Expected clone to be independent of the original")
	}
}
