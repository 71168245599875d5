// Package reconciler orchestrates reconciliation runs: it fetches unreconciled
// transactions for a user, generates and scores candidate pairs, assigns
// one-to-one matches, persists the resulting reconciliation records, and
// records an audit entry for every run.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"golang-revenue-reconciliation/internal/audit"
	"golang-revenue-reconciliation/internal/matcher"
	"golang-revenue-reconciliation/internal/models"
	errs "golang-revenue-reconciliation/pkg/errors"
	"golang-revenue-reconciliation/pkg/logger"
)

// RevenueSource provides unreconciled revenue transactions for a user.
type RevenueSource interface {
	FetchUnreconciledRevenue(ctx context.Context, userID string) ([]*models.RevenueTransaction, error)
}

// BankSource provides unreconciled bank deposits for a user on or after the
// given start date.
type BankSource interface {
	FetchUnreconciledBankTransactions(ctx context.Context, userID string, startDate time.Time) ([]*models.BankTransaction, error)
}

// ReconciliationStore persists reconciliation records and answers whether a
// transaction is already part of one.
type ReconciliationStore interface {
	CreateReconciliations(ctx context.Context, records []models.Reconciliation) error
	IsRevenueReconciled(ctx context.Context, revenueTransactionID string) (bool, error)
	IsBankReconciled(ctx context.Context, bankTransactionID string) (bool, error)
}

// RunResult summarizes a reconciliation run.
type RunResult struct {
	Success      bool   `json:"success"`
	MatchedCount int    `json:"matchedCount"`
	Message      string `json:"message"`
}

// Audit actions recorded by the service.
const (
	actionAutoReconcile       = "auto_reconcile"
	actionAutoReconcileFailed = "auto_reconcile_failed"

	actionManualReconcile       = "manual_reconcile"
	actionManualReconcileFailed = "manual_reconcile_failed"
)

// Service runs automatic and manual reconciliation for one user at a time.
type Service struct {
	revenues RevenueSource
	banks    BankSource
	store    ReconciliationStore
	audit    audit.Recorder
	config   *matcher.MatchingConfig
	logger   logger.Logger
	now      func() time.Time
}

// NewService creates a reconciliation service. The audit recorder and logger
// may be nil; the matching config defaults when nil.
func NewService(revenues RevenueSource, banks BankSource, store ReconciliationStore, recorder audit.Recorder, config *matcher.MatchingConfig, log logger.Logger) *Service {
	if config == nil {
		config = matcher.DefaultMatchingConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if recorder == nil {
		recorder = audit.NewRecorder(log, nil)
	}

	return &Service{
		revenues: revenues,
		banks:    banks,
		store:    store,
		audit:    recorder,
		config:   config,
		logger:   log.WithComponent("reconciler"),
		now:      time.Now,
	}
}

// AutoReconcile matches a user's unreconciled revenue against their
// unreconciled bank deposits and persists the resulting records.
//
// Errors from collaborators are returned unchanged after a failure audit
// entry is recorded; partial batches are never written.
func (s *Service) AutoReconcile(ctx context.Context, userID string) (*RunResult, error) {
	start := s.now()

	if userID == "" {
		err := errs.ValidationError(errs.CodeMissingField, "user_id", userID, nil)
		s.recordFailure(ctx, actionAutoReconcileFailed, userID, err, start)
		return nil, err
	}

	log := s.logger.WithField("user_id", userID)
	log.Info("Starting automatic reconciliation")

	revenues, err := s.revenues.FetchUnreconciledRevenue(ctx, userID)
	if err != nil {
		s.recordFailure(ctx, actionAutoReconcileFailed, userID, err, start)
		return nil, err
	}

	if len(revenues) == 0 {
		log.Info("No unreconciled revenue found")
		return &RunResult{
			Success:      true,
			MatchedCount: 0,
			Message:      "No unreconciled revenue found",
		}, nil
	}

	// Deposits can only land on or after the earliest revenue event, so the
	// bank fetch is bounded by it.
	banks, err := s.banks.FetchUnreconciledBankTransactions(ctx, userID, earliestDate(revenues))
	if err != nil {
		s.recordFailure(ctx, actionAutoReconcileFailed, userID, err, start)
		return nil, err
	}

	candidates := matcher.GenerateCandidates(revenues, banks, s.config)
	records := matcher.Assign(candidates, userID, s.now().UTC())

	if len(records) > 0 {
		if err := s.store.CreateReconciliations(ctx, records); err != nil {
			s.recordFailure(ctx, actionAutoReconcileFailed, userID, err, start)
			return nil, err
		}
	}

	log.WithFields(logger.Fields{
		"revenue_scanned": len(revenues),
		"bank_scanned":    len(banks),
		"matches_found":   len(records),
	}).Info("Reconciliation run complete")

	s.recordRun(ctx, userID, len(revenues), len(banks), len(records), start)

	return &RunResult{
		Success:      true,
		MatchedCount: len(records),
		Message:      successMessage(len(records)),
	}, nil
}

// ManualReconcile creates a single manual match between a revenue transaction
// and a bank deposit, rejecting transactions that are already reconciled.
func (s *Service) ManualReconcile(ctx context.Context, userID, revenueTransactionID, bankTransactionID, notes string) (*models.Reconciliation, error) {
	start := s.now()

	if err := s.validateManualInput(userID, revenueTransactionID, bankTransactionID); err != nil {
		s.recordFailure(ctx, actionManualReconcileFailed, userID, err, start)
		return nil, err
	}

	log := s.logger.WithFields(logger.Fields{
		"user_id":                userID,
		"revenue_transaction_id": revenueTransactionID,
		"bank_transaction_id":    bankTransactionID,
	})
	log.Info("Creating manual match")

	if err := s.checkNotReconciled(ctx, revenueTransactionID, bankTransactionID); err != nil {
		s.recordFailure(ctx, actionManualReconcileFailed, userID, err, start)
		return nil, err
	}

	record := matcher.BuildManualMatch(userID, revenueTransactionID, bankTransactionID, notes, s.now().UTC())

	if err := s.store.CreateReconciliations(ctx, []models.Reconciliation{record}); err != nil {
		s.recordFailure(ctx, actionManualReconcileFailed, userID, err, start)
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:  actionManualReconcile,
		ActorID: userID,
		Status:  audit.StatusSuccess,
		Details: map[string]interface{}{
			"revenue_transaction_id": revenueTransactionID,
			"bank_transaction_id":    bankTransactionID,
			"duration_ms":            s.elapsedMillis(start),
		},
	})

	return &record, nil
}

func (s *Service) validateManualInput(userID, revenueTransactionID, bankTransactionID string) error {
	if userID == "" {
		return errs.ValidationError(errs.CodeMissingField, "user_id", userID, nil)
	}
	if revenueTransactionID == "" {
		return errs.ValidationError(errs.CodeMissingField, "revenue_transaction_id", revenueTransactionID, nil)
	}
	if bankTransactionID == "" {
		return errs.ValidationError(errs.CodeMissingField, "bank_transaction_id", bankTransactionID, nil)
	}
	return nil
}

func (s *Service) checkNotReconciled(ctx context.Context, revenueTransactionID, bankTransactionID string) error {
	reconciled, err := s.store.IsRevenueReconciled(ctx, revenueTransactionID)
	if err != nil {
		return err
	}
	if reconciled {
		return errs.ConflictError("revenue", revenueTransactionID)
	}

	reconciled, err = s.store.IsBankReconciled(ctx, bankTransactionID)
	if err != nil {
		return err
	}
	if reconciled {
		return errs.ConflictError("bank", bankTransactionID)
	}

	return nil
}

func (s *Service) recordRun(ctx context.Context, userID string, revenueScanned, bankScanned, matchesFound int, start time.Time) {
	s.audit.Record(ctx, audit.Entry{
		Action:  actionAutoReconcile,
		ActorID: userID,
		Status:  audit.StatusSuccess,
		Details: map[string]interface{}{
			"revenue_scanned": revenueScanned,
			"bank_scanned":    bankScanned,
			"matches_found":   matchesFound,
			"duration_ms":     s.elapsedMillis(start),
		},
	})
}

func (s *Service) recordFailure(ctx context.Context, action, userID string, err error, start time.Time) {
	s.logger.WithField("user_id", userID).WithError(err).Error("Reconciliation failed")
	s.audit.Record(ctx, audit.Entry{
		Action:  action,
		ActorID: userID,
		Status:  audit.StatusFailure,
		Details: map[string]interface{}{
			"error":       err.Error(),
			"duration_ms": s.elapsedMillis(start),
		},
	})
}

func (s *Service) elapsedMillis(start time.Time) int64 {
	return s.now().Sub(start).Milliseconds()
}

func earliestDate(revenues []*models.RevenueTransaction) time.Time {
	earliest := revenues[0].TransactionDate
	for _, rev := range revenues[1:] {
		if rev.TransactionDate.Before(earliest) {
			earliest = rev.TransactionDate
		}
	}
	return earliest
}

func successMessage(count int) string {
	return fmt.Sprintf("Successfully matched %d transactions", count)
}
