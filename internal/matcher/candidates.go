// Package matcher implements the core of the revenue reconciliation engine:
// candidate generation over a bounded settlement window, categorical scoring,
// greedy one-to-one assignment, and the manual match builder.
//
// The pipeline is pure: it takes slices of revenue and bank transactions and
// produces Reconciliation values without touching any store. Orchestration and
// persistence live in internal/reconciler.
//
// Example usage:
//
//	cfg := matcher.DefaultMatchingConfig()
//	candidates := matcher.GenerateCandidates(revenues, banks, cfg)
//	reconciliations := matcher.Assign(candidates, userID, time.Now().UTC())
package matcher

import (
	"sort"
	"time"

	"golang-revenue-reconciliation/internal/models"
)

// MatchCandidate is a scored pairing of one revenue transaction with one bank
// transaction. A flat struct is all that is needed; candidates are produced,
// ranked, and consumed within a single run.
type MatchCandidate struct {
	Revenue    *models.RevenueTransaction
	Bank       *models.BankTransaction
	Category   models.MatchCategory
	Confidence float64
	Score      float64
}

const hoursPerDay = 24

// diffDays returns the signed difference between two instants in fractional
// days. Time-of-day matters: a same-day deposit booked before the revenue
// event yields a negative value.
func diffDays(revenue, bank time.Time) float64 {
	return bank.Sub(revenue).Hours() / hoursPerDay
}

// GenerateCandidates finds every plausible (revenue, bank) pairing within the
// configured settlement window and scores it.
//
// Both inputs are sorted by date (stable, preserving input order on ties)
// before a single forward sweep: a window-start index into the bank list only
// ever advances, skipping deposits dated before the current revenue event,
// and each revenue transaction scans forward from that index until the first
// deposit beyond the window.
//
// Deposits inside the window are rescanned for later revenue transactions
// whose windows overlap, so the cost is O(n*w) where w is the number of
// deposits inside one window. Generation never consumes a deposit; a deposit
// shared by overlapping windows becomes a candidate for each of them, and
// Assign resolves the conflicts globally.
func GenerateCandidates(revenues []*models.RevenueTransaction, banks []*models.BankTransaction, cfg *MatchingConfig) []MatchCandidate {
	if cfg == nil {
		cfg = DefaultMatchingConfig()
	}

	if len(revenues) == 0 {
		return nil
	}

	sortedRevenues := make([]*models.RevenueTransaction, len(revenues))
	copy(sortedRevenues, revenues)
	sort.SliceStable(sortedRevenues, func(i, j int) bool {
		return sortedRevenues[i].TransactionDate.Before(sortedRevenues[j].TransactionDate)
	})

	sortedBanks := make([]*models.BankTransaction, len(banks))
	copy(sortedBanks, banks)
	sort.SliceStable(sortedBanks, func(i, j int) bool {
		return sortedBanks[i].TransactionDate.Before(sortedBanks[j].TransactionDate)
	})

	var candidates []MatchCandidate
	windowStart := 0

	for _, revenue := range sortedRevenues {
		// A deposit can only settle a revenue event that already occurred.
		// Both lists are date-sorted, so the window start never moves back.
		for windowStart < len(sortedBanks) &&
			sortedBanks[windowStart].TransactionDate.Before(revenue.TransactionDate) {
			windowStart++
		}

		for i := windowStart; i < len(sortedBanks); i++ {
			bank := sortedBanks[i]

			if diffDays(revenue.TransactionDate, bank.TransactionDate) > float64(cfg.MaxDiffDays) {
				// Everything after this deposit is even later.
				break
			}

			if candidate, ok := ScorePair(revenue, bank, cfg); ok {
				candidates = append(candidates, candidate)
			}
		}
	}

	return candidates
}
