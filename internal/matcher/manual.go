package matcher

import (
	"time"

	"golang-revenue-reconciliation/internal/models"
)

// BuildManualMatch constructs an operator-confirmed reconciliation record.
//
// No scoring and no date or amount validation happens here: the caller is
// responsible for verifying that both transactions exist, belong to the user,
// and are not already reconciled before persisting the record.
func BuildManualMatch(userID, revenueID, bankID, notes string, at time.Time) models.Reconciliation {
	return models.Reconciliation{
		UserID:               userID,
		RevenueTransactionID: revenueID,
		BankTransactionID:    bankID,
		MatchCategory:        models.MatchManual,
		MatchConfidence:      1.0,
		ReconciledBy:         models.ReconciledByManual,
		ReconciledAt:         at,
		CreatorNotes:         notes,
	}
}
