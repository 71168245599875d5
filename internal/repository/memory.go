// Package repository provides the persistence backends for the reconciliation
// engine: an in-memory store for tests and single-run CLI usage, and a SQLite
// store for durable ledgers.
package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang-revenue-reconciliation/internal/audit"
	"golang-revenue-reconciliation/internal/models"
	"golang-revenue-reconciliation/internal/reconciler"
	errs "golang-revenue-reconciliation/pkg/errors"
)

// MemoryStore keeps transactions, reconciliations, and audit entries in
// process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu              sync.Mutex
	revenues        []*models.RevenueTransaction
	banks           []*models.BankTransaction
	reconciliations []models.Reconciliation
	auditEntries    []audit.Entry
}

var (
	_ reconciler.RevenueSource       = (*MemoryStore)(nil)
	_ reconciler.BankSource          = (*MemoryStore)(nil)
	_ reconciler.ReconciliationStore = (*MemoryStore)(nil)
	_ audit.Store                    = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveRevenueTransactions loads revenue transactions into the store.
func (s *MemoryStore) SaveRevenueTransactions(_ context.Context, transactions []*models.RevenueTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revenues = append(s.revenues, transactions...)
	return nil
}

// SaveBankTransactions loads bank transactions into the store. The store
// holds a single user's ledger, so the user id is not retained per deposit.
func (s *MemoryStore) SaveBankTransactions(_ context.Context, _ string, transactions []*models.BankTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks = append(s.banks, transactions...)
	return nil
}

// Close implements the ledger contract; there is nothing to release.
func (s *MemoryStore) Close() error {
	return nil
}

// FetchUnreconciledRevenue implements reconciler.RevenueSource.
func (s *MemoryStore) FetchUnreconciledRevenue(_ context.Context, userID string) ([]*models.RevenueTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reconciled := s.reconciledRevenueIDsLocked()

	var out []*models.RevenueTransaction
	for _, rev := range s.revenues {
		if rev.UserID != userID {
			continue
		}
		if _, ok := reconciled[rev.ID]; ok {
			continue
		}
		out = append(out, rev)
	}
	return out, nil
}

// FetchUnreconciledBankTransactions implements reconciler.BankSource.
func (s *MemoryStore) FetchUnreconciledBankTransactions(_ context.Context, _ string, startDate time.Time) ([]*models.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reconciled := s.reconciledBankIDsLocked()

	var out []*models.BankTransaction
	for _, bank := range s.banks {
		if bank.TransactionDate.Before(startDate) {
			continue
		}
		if _, ok := reconciled[bank.ID]; ok {
			continue
		}
		out = append(out, bank)
	}
	return out, nil
}

// CreateReconciliations implements reconciler.ReconciliationStore. The batch
// is applied atomically: if any record conflicts with an existing match or
// with another record in the batch, nothing is written.
func (s *MemoryStore) CreateReconciliations(_ context.Context, records []models.Reconciliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	revenueIDs := s.reconciledRevenueIDsLocked()
	bankIDs := s.reconciledBankIDsLocked()

	for _, rec := range records {
		if _, ok := revenueIDs[rec.RevenueTransactionID]; ok {
			return errs.ConflictError("revenue", rec.RevenueTransactionID)
		}
		if _, ok := bankIDs[rec.BankTransactionID]; ok {
			return errs.ConflictError("bank", rec.BankTransactionID)
		}
		revenueIDs[rec.RevenueTransactionID] = struct{}{}
		bankIDs[rec.BankTransactionID] = struct{}{}
	}

	s.reconciliations = append(s.reconciliations, records...)
	return nil
}

// IsRevenueReconciled implements reconciler.ReconciliationStore.
func (s *MemoryStore) IsRevenueReconciled(_ context.Context, revenueTransactionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.reconciledRevenueIDsLocked()[revenueTransactionID]
	return ok, nil
}

// IsBankReconciled implements reconciler.ReconciliationStore.
func (s *MemoryStore) IsBankReconciled(_ context.Context, bankTransactionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.reconciledBankIDsLocked()[bankTransactionID]
	return ok, nil
}

// ListReconciliations returns all stored reconciliations ordered by revenue
// transaction id.
func (s *MemoryStore) ListReconciliations(_ context.Context) ([]models.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Reconciliation, len(s.reconciliations))
	copy(out, s.reconciliations)
	sort.Slice(out, func(i, j int) bool {
		return out[i].RevenueTransactionID < out[j].RevenueTransactionID
	})
	return out, nil
}

// AppendAuditEntry implements audit.Store.
func (s *MemoryStore) AppendAuditEntry(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditEntries = append(s.auditEntries, entry)
	return nil
}

// AuditEntries returns a copy of the recorded audit trail.
func (s *MemoryStore) AuditEntries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]audit.Entry, len(s.auditEntries))
	copy(out, s.auditEntries)
	return out
}

func (s *MemoryStore) reconciledRevenueIDsLocked() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.reconciliations))
	for _, rec := range s.reconciliations {
		ids[rec.RevenueTransactionID] = struct{}{}
	}
	return ids
}

func (s *MemoryStore) reconciledBankIDsLocked() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.reconciliations))
	for _, rec := range s.reconciliations {
		ids[rec.BankTransactionID] = struct{}{}
	}
	return ids
}
