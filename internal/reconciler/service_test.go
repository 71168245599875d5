package reconciler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"golang-revenue-reconciliation/internal/audit"
	"golang-revenue-reconciliation/internal/models"
	errs "golang-revenue-reconciliation/pkg/errors"

	"github.com/shopspring/decimal"
)

type fakeRevenueSource struct {
	revenues []*models.RevenueTransaction
	err      error
	calls    int
}

func (f *fakeRevenueSource) FetchUnreconciledRevenue(_ context.Context, _ string) ([]*models.RevenueTransaction, error) {
	f.calls++
	return f.revenues, f.err
}

type fakeBankSource struct {
	banks     []*models.BankTransaction
	err       error
	calls     int
	startDate time.Time
}

func (f *fakeBankSource) FetchUnreconciledBankTransactions(_ context.Context, _ string, startDate time.Time) ([]*models.BankTransaction, error) {
	f.calls++
	f.startDate = startDate
	return f.banks, f.err
}

type fakeStore struct {
	created          []models.Reconciliation
	createErr        error
	createCalls      int
	reconciledRev    map[string]bool
	reconciledBank   map[string]bool
	statusErr        error
	appendedEntries  []audit.Entry
	appendEntriesErr error
}

func (f *fakeStore) CreateReconciliations(_ context.Context, records []models.Reconciliation) error {
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, records...)
	return nil
}

func (f *fakeStore) IsRevenueReconciled(_ context.Context, id string) (bool, error) {
	if f.statusErr != nil {
		return false, f.statusErr
	}
	return f.reconciledRev[id], nil
}

func (f *fakeStore) IsBankReconciled(_ context.Context, id string) (bool, error) {
	if f.statusErr != nil {
		return false, f.statusErr
	}
	return f.reconciledBank[id], nil
}

func (f *fakeStore) AppendAuditEntry(_ context.Context, entry audit.Entry) error {
	if f.appendEntriesErr != nil {
		return f.appendEntriesErr
	}
	f.appendedEntries = append(f.appendedEntries, entry)
	return nil
}

func revenueFixture(id string, amount float64, date time.Time) *models.RevenueTransaction {
	return &models.RevenueTransaction{
		ID:              id,
		UserID:          "user_1",
		Platform:        "youtube",
		Amount:          decimal.NewFromFloat(amount),
		TransactionDate: date,
	}
}

func bankFixture(id string, amount float64, date time.Time) *models.BankTransaction {
	return &models.BankTransaction{
		ID:              id,
		Amount:          decimal.NewFromFloat(amount),
		TransactionDate: date,
		Description:     "YOUTUBE PAYMENT",
	}
}

func newTestService(revenues *fakeRevenueSource, banks *fakeBankSource, store *fakeStore) (*Service, *fakeStore) {
	svc := NewService(revenues, banks, store, audit.NewRecorder(nil, store), nil, nil)
	return svc, store
}

func auditActions(entries []audit.Entry) []string {
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}

func TestAutoReconcileExactMatch(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	revenues := &fakeRevenueSource{revenues: []*models.RevenueTransaction{
		revenueFixture("rev_1", 100, base),
	}}
	banks := &fakeBankSource{banks: []*models.BankTransaction{
		bankFixture("bank_1", 100, base.AddDate(0, 0, 1)),
	}}
	svc, store := newTestService(revenues, banks, &fakeStore{})

	result, err := svc.AutoReconcile(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !result.Success || result.MatchedCount != 1 {
		t.Fatalf("Expected success with 1 match, got %+v", result)
	}

	if result.Message != "Successfully matched 1 transactions" {
		t.Errorf("Unexpected message: %q", result.Message)
	}

	if len(store.created) != 1 {
		t.Fatalf("Expected 1 persisted record, got %d", len(store.created))
	}

	rec := store.created[0]
	if rec.MatchCategory != models.MatchExact {
		t.Errorf("Expected exact_match, got %s", rec.MatchCategory)
	}
	if rec.MatchConfidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %f", rec.MatchConfidence)
	}
	if rec.ReconciledBy != models.ReconciledByAuto {
		t.Errorf("Expected reconciled_by auto, got %s", rec.ReconciledBy)
	}
}

func TestAutoReconcileFeeDeduction(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	revenues := &fakeRevenueSource{revenues: []*models.RevenueTransaction{
		revenueFixture("rev_1", 100, base),
	}}
	banks := &fakeBankSource{banks: []*models.BankTransaction{
		bankFixture("bank_1", 96.80, base.AddDate(0, 0, 2)),
	}}
	svc, store := newTestService(revenues, banks, &fakeStore{})

	result, err := svc.AutoReconcile(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.MatchedCount != 1 {
		t.Fatalf("Expected 1 match, got %d", result.MatchedCount)
	}

	rec := store.created[0]
	if rec.MatchCategory != models.MatchFeeDeduction {
		t.Errorf("Expected fee_deduction, got %s", rec.MatchCategory)
	}
	if rec.MatchConfidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", rec.MatchConfidence)
	}
}

func TestAutoReconcileNoMatch(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	revenues := &fakeRevenueSource{revenues: []*models.RevenueTransaction{
		revenueFixture("rev_1", 100, base),
	}}
	banks := &fakeBankSource{banks: []*models.BankTransaction{
		bankFixture("bank_1", 50, base.AddDate(0, 0, 2)),
	}}
	svc, store := newTestService(revenues, banks, &fakeStore{})

	result, err := svc.AutoReconcile(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !result.Success || result.MatchedCount != 0 {
		t.Fatalf("Expected success with 0 matches, got %+v", result)
	}

	// Empty batches are never handed to the store.
	if store.createCalls != 0 {
		t.Errorf("Expected no persistence call for an empty batch, got %d", store.createCalls)
	}

	if result.Message != "Successfully matched 0 transactions" {
		t.Errorf("Unexpected message: %q", result.Message)
	}
}

func TestAutoReconcileEmptyRevenueShortCircuit(t *testing.T) {
	revenues := &fakeRevenueSource{}
	banks := &fakeBankSource{}
	svc, store := newTestService(revenues, banks, &fakeStore{})

	result, err := svc.AutoReconcile(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !result.Success || result.MatchedCount != 0 {
		t.Fatalf("Expected success with 0 matches, got %+v", result)
	}
	if result.Message != "No unreconciled revenue found" {
		t.Errorf("Unexpected message: %q", result.Message)
	}

	// The bank side must not be queried when there is nothing to match.
	if banks.calls != 0 {
		t.Errorf("Expected no bank fetch, got %d calls", banks.calls)
	}
	if len(store.appendedEntries) != 0 {
		t.Errorf("Expected no audit entry for the empty short-circuit, got %v",
			auditActions(store.appendedEntries))
	}
}

func TestAutoReconcileBankFetchBoundedByEarliestRevenue(t *testing.T) {
	base := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	earlier := base.AddDate(0, 0, -5)
	revenues := &fakeRevenueSource{revenues: []*models.RevenueTransaction{
		revenueFixture("rev_late", 100, base),
		revenueFixture("rev_early", 200, earlier),
	}}
	banks := &fakeBankSource{}
	svc, _ := newTestService(revenues, banks, &fakeStore{})

	if _, err := svc.AutoReconcile(context.Background(), "user_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !banks.startDate.Equal(earlier) {
		t.Errorf("Expected bank fetch from %v, got %v", earlier, banks.startDate)
	}
}

func TestAutoReconcileFetchFailure(t *testing.T) {
	fetchErr := errs.FetchError(errs.CodeSourceUnavailable, "revenue transactions", nil)
	revenues := &fakeRevenueSource{err: fetchErr}
	banks := &fakeBankSource{}
	svc, store := newTestService(revenues, banks, &fakeStore{})

	_, err := svc.AutoReconcile(context.Background(), "user_1")
	if err == nil {
		t.Fatal("Expected an error")
	}

	// The source error must be propagated unchanged.
	if err != error(fetchErr) {
		t.Errorf("Expected the fetch error to pass through unchanged, got %v", err)
	}

	actions := auditActions(store.appendedEntries)
	if len(actions) != 1 || actions[0] != "auto_reconcile_failed" {
		t.Errorf("Expected a single auto_reconcile_failed entry, got %v", actions)
	}
	if store.appendedEntries[0].Status != audit.StatusFailure {
		t.Errorf("Expected failure status, got %s", store.appendedEntries[0].Status)
	}
}

func TestAutoReconcilePersistenceFailure(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	persistErr := errs.PersistenceError(errs.CodeWriteFailed, "create reconciliations", nil)
	revenues := &fakeRevenueSource{revenues: []*models.RevenueTransaction{
		revenueFixture("rev_1", 100, base),
	}}
	banks := &fakeBankSource{banks: []*models.BankTransaction{
		bankFixture("bank_1", 100, base.AddDate(0, 0, 1)),
	}}
	svc, store := newTestService(revenues, banks, &fakeStore{createErr: persistErr})

	_, err := svc.AutoReconcile(context.Background(), "user_1")
	if err != error(persistErr) {
		t.Errorf("Expected the persistence error to pass through unchanged, got %v", err)
	}

	actions := auditActions(store.appendedEntries)
	if len(actions) != 1 || actions[0] != "auto_reconcile_failed" {
		t.Errorf("Expected a single auto_reconcile_failed entry, got %v", actions)
	}
}

func TestAutoReconcileAuditDetails(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	revenues := &fakeRevenueSource{revenues: []*models.RevenueTransaction{
		revenueFixture("rev_1", 100, base),
		revenueFixture("rev_2", 250, base.AddDate(0, 0, 1)),
	}}
	banks := &fakeBankSource{banks: []*models.BankTransaction{
		bankFixture("bank_1", 100, base.AddDate(0, 0, 1)),
		bankFixture("bank_2", 999, base.AddDate(0, 0, 2)),
		bankFixture("bank_3", 250, base.AddDate(0, 0, 2)),
	}}
	svc, store := newTestService(revenues, banks, &fakeStore{})

	if _, err := svc.AutoReconcile(context.Background(), "user_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(store.appendedEntries) != 1 {
		t.Fatalf("Expected 1 audit entry, got %d", len(store.appendedEntries))
	}

	entry := store.appendedEntries[0]
	if entry.Action != "auto_reconcile" {
		t.Errorf("Expected auto_reconcile, got %s", entry.Action)
	}
	if entry.ActorID != "user_1" {
		t.Errorf("Expected actor user_1, got %s", entry.ActorID)
	}
	if entry.Details["revenue_scanned"] != 2 {
		t.Errorf("Expected revenue_scanned 2, got %v", entry.Details["revenue_scanned"])
	}
	if entry.Details["bank_scanned"] != 3 {
		t.Errorf("Expected bank_scanned 3, got %v", entry.Details["bank_scanned"])
	}
	if entry.Details["matches_found"] != 2 {
		t.Errorf("Expected matches_found 2, got %v", entry.Details["matches_found"])
	}
	if _, ok := entry.Details["duration_ms"]; !ok {
		t.Error("Expected duration_ms in audit details")
	}
}

func TestAutoReconcileDeterministic(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	revenueList := []*models.RevenueTransaction{
		revenueFixture("rev_1", 100, base),
		revenueFixture("rev_2", 100, base.Add(time.Hour)),
	}
	bankList := []*models.BankTransaction{
		bankFixture("bank_1", 100, base.AddDate(0, 0, 1)),
		bankFixture("bank_2", 100, base.AddDate(0, 0, 1)),
	}

	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	run := func() []models.Reconciliation {
		store := &fakeStore{}
		svc, _ := newTestService(
			&fakeRevenueSource{revenues: revenueList},
			&fakeBankSource{banks: bankList},
			store,
		)
		svc.now = func() time.Time { return at }
		if _, err := svc.AutoReconcile(context.Background(), "user_1"); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		return store.created
	}

	first := run()
	second := run()

	if len(first) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Expected identical record at index %d, got %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestAutoReconcileEmptyUserID(t *testing.T) {
	svc, _ := newTestService(&fakeRevenueSource{}, &fakeBankSource{}, &fakeStore{})

	_, err := svc.AutoReconcile(context.Background(), "")
	if err == nil {
		t.Fatal("Expected an error for empty user id")
	}

	engineErr, ok := errs.AsEngineError(err)
	if !ok || engineErr.Category != errs.CategoryValidation {
		t.Errorf("Expected a validation error, got %v", err)
	}
}

func TestAutoReconcileAtScale(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping scale test in short mode")
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	revenueList := make([]*models.RevenueTransaction, 0, 1000)
	for i := 0; i < 1000; i++ {
		revenueList = append(revenueList, revenueFixture(
			fmt.Sprintf("rev_%04d", i),
			float64(50+i%500),
			base.Add(time.Duration(i)*time.Hour),
		))
	}

	bankList := make([]*models.BankTransaction, 0, 5000)
	for i := 0; i < 5000; i++ {
		bankList = append(bankList, bankFixture(
			fmt.Sprintf("bank_%04d", i),
			float64(50+i%500),
			base.Add(time.Duration(i)*12*time.Minute).AddDate(0, 0, 1),
		))
	}

	svc, store := newTestService(
		&fakeRevenueSource{revenues: revenueList},
		&fakeBankSource{banks: bankList},
		&fakeStore{},
	)

	result, err := svc.AutoReconcile(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !result.Success {
		t.Fatal("Expected success")
	}
	if result.MatchedCount != len(store.created) {
		t.Errorf("Expected matched count %d to equal persisted records %d",
			result.MatchedCount, len(store.created))
	}

	seenRevenue := map[string]bool{}
	seenBank := map[string]bool{}
	for _, rec := range store.created {
		if seenRevenue[rec.RevenueTransactionID] || seenBank[rec.BankTransactionID] {
			t.Fatal("Expected one-to-one assignment at scale")
		}
		seenRevenue[rec.RevenueTransactionID] = true
		seenBank[rec.BankTransactionID] = true
	}
}

func TestManualReconcile(t *testing.T) {
	store := &fakeStore{}
	svc, _ := newTestService(&fakeRevenueSource{}, &fakeBankSource{}, store)

	rec, err := svc.ManualReconcile(context.Background(), "user_1", "rev_1", "bank_1", "verified manually")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.MatchCategory != models.MatchManual {
		t.Errorf("Expected manual category, got %s", rec.MatchCategory)
	}
	if rec.MatchConfidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %f", rec.MatchConfidence)
	}
	if rec.ReconciledBy != models.ReconciledByManual {
		t.Errorf("Expected reconciled_by manual, got %s", rec.ReconciledBy)
	}
	if rec.CreatorNotes != "verified manually" {
		t.Errorf("Expected notes to be carried, got %q", rec.CreatorNotes)
	}

	if len(store.created) != 1 {
		t.Fatalf("Expected 1 persisted record, got %d", len(store.created))
	}

	actions := auditActions(store.appendedEntries)
	if len(actions) != 1 || actions[0] != "manual_reconcile" {
		t.Errorf("Expected a manual_reconcile audit entry, got %v", actions)
	}
}

func TestManualReconcileRevenueConflict(t *testing.T) {
	store := &fakeStore{reconciledRev: map[string]bool{"rev_1": true}}
	svc, _ := newTestService(&fakeRevenueSource{}, &fakeBankSource{}, store)

	_, err := svc.ManualReconcile(context.Background(), "user_1", "rev_1", "bank_1", "")
	if !errs.IsConflict(err) {
		t.Fatalf("Expected a conflict error, got %v", err)
	}

	if store.createCalls != 0 {
		t.Errorf("Expected no persistence attempt, got %d calls", store.createCalls)
	}

	actions := auditActions(store.appendedEntries)
	if len(actions) != 1 || actions[0] != "manual_reconcile_failed" {
		t.Errorf("Expected a manual_reconcile_failed entry, got %v", actions)
	}
}

func TestManualReconcileBankConflict(t *testing.T) {
	store := &fakeStore{reconciledBank: map[string]bool{"bank_1": true}}
	svc, _ := newTestService(&fakeRevenueSource{}, &fakeBankSource{}, store)

	_, err := svc.ManualReconcile(context.Background(), "user_1", "rev_1", "bank_1", "")
	if !errs.IsConflict(err) {
		t.Fatalf("Expected a conflict error, got %v", err)
	}
}

func TestManualReconcileMissingInput(t *testing.T) {
	svc, _ := newTestService(&fakeRevenueSource{}, &fakeBankSource{}, &fakeStore{})

	tests := []struct {
		name               string
		userID, revID, bID string
	}{
		{"empty user", "", "rev_1", "bank_1"},
		{"empty revenue id", "user_1", "", "bank_1"},
		{"empty bank id", "user_1", "rev_1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ManualReconcile(context.Background(), tt.userID, tt.revID, tt.bID, "")
			if err == nil {
				t.Fatal("Expected a validation error")
			}
			engineErr, ok := errs.AsEngineError(err)
			if !ok || engineErr.Category != errs.CategoryValidation {
				t.Errorf("Expected a validation error, got %v", err)
			}
		})
	}
}

func TestManualReconcileStatusCheckFailure(t *testing.T) {
	statusErr := errs.FetchError(errs.CodeQueryFailed, "reconciliation status", nil)
	store := &fakeStore{statusErr: statusErr}
	svc, _ := newTestService(&fakeRevenueSource{}, &fakeBankSource{}, store)

	_, err := svc.ManualReconcile(context.Background(), "user_1", "rev_1", "bank_1", "")
	if err != error(statusErr) {
		t.Errorf("Expected the status error to pass through unchanged, got %v", err)
	}
}
