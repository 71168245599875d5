package matcher

import (
	"sort"
	"time"

	"golang-revenue-reconciliation/internal/models"
)

// Assign greedily selects a one-to-one matching from the scored candidates
// and emits the resulting Reconciliation records.
//
// Candidates are ranked by score descending; exact score ties are broken by
// revenue ID ascending, then bank ID ascending, so the result is fully
// deterministic regardless of candidate order. Each candidate is accepted
// only if neither of its transactions has been claimed by a higher-ranked
// candidate. This is a greedy approximation of maximum-weight bipartite
// matching, not an optimal one.
//
// Every emitted record carries reconciled_by=auto and the supplied run
// timestamp.
func Assign(candidates []MatchCandidate, userID string, at time.Time) []models.Reconciliation {
	ranked := make([]MatchCandidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Revenue.ID != ranked[j].Revenue.ID {
			return ranked[i].Revenue.ID < ranked[j].Revenue.ID
		}
		return ranked[i].Bank.ID < ranked[j].Bank.ID
	})

	matchedRevenueIDs := make(map[string]struct{})
	matchedBankIDs := make(map[string]struct{})

	var reconciliations []models.Reconciliation
	for _, candidate := range ranked {
		if _, taken := matchedRevenueIDs[candidate.Revenue.ID]; taken {
			continue
		}
		if _, taken := matchedBankIDs[candidate.Bank.ID]; taken {
			continue
		}

		matchedRevenueIDs[candidate.Revenue.ID] = struct{}{}
		matchedBankIDs[candidate.Bank.ID] = struct{}{}

		reconciliations = append(reconciliations, models.Reconciliation{
			UserID:               userID,
			RevenueTransactionID: candidate.Revenue.ID,
			BankTransactionID:    candidate.Bank.ID,
			MatchCategory:        candidate.Category,
			MatchConfidence:      candidate.Confidence,
			ReconciledBy:         models.ReconciledByAuto,
			ReconciledAt:         at,
		})
	}

	return reconciliations
}
