package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"golang-revenue-reconciliation/internal/audit"
	"golang-revenue-reconciliation/internal/models"
	"golang-revenue-reconciliation/internal/reconciler"
	errs "golang-revenue-reconciliation/pkg/errors"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// SQLiteStore provides durable storage for transactions, reconciliations, and
// the audit trail. UNIQUE indexes on the revenue and bank transaction ids
// enforce one-to-one matching at the database level.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ reconciler.RevenueSource       = (*SQLiteStore)(nil)
	_ reconciler.BankSource          = (*SQLiteStore)(nil)
	_ reconciler.ReconciliationStore = (*SQLiteStore)(nil)
	_ audit.Store                    = (*SQLiteStore)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS revenue_transactions (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	platform         TEXT NOT NULL,
	amount           TEXT NOT NULL,
	transaction_date TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_revenue_user_date
	ON revenue_transactions (user_id, transaction_date);

CREATE TABLE IF NOT EXISTS bank_transactions (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	amount           TEXT NOT NULL,
	transaction_date TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_bank_user_date
	ON bank_transactions (user_id, transaction_date);

CREATE TABLE IF NOT EXISTS reconciliations (
	id                     TEXT PRIMARY KEY,
	user_id                TEXT NOT NULL,
	revenue_transaction_id TEXT NOT NULL UNIQUE,
	bank_transaction_id    TEXT NOT NULL UNIQUE,
	match_category         TEXT NOT NULL,
	match_confidence       REAL NOT NULL,
	reconciled_by          TEXT NOT NULL,
	reconciled_at          TEXT NOT NULL,
	creator_notes          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS audit_log (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	action    TEXT NOT NULL,
	actor_id  TEXT NOT NULL DEFAULT '',
	status    TEXT NOT NULL,
	details   TEXT NOT NULL DEFAULT '{}',
	timestamp TEXT NOT NULL
);
`

// NewSQLiteStore opens (and if needed initializes) a SQLite ledger at the
// given path. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errs.PersistenceError(errs.CodeWriteFailed, "open database", err).
			WithContext("path", path)
	}

	// An in-memory database exists per connection, so the pool must be
	// limited to one.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, errs.PersistenceError(errs.CodeWriteFailed, "enable foreign keys", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errs.PersistenceError(errs.CodeWriteFailed, "initialize schema", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRevenueTransactions upserts revenue transactions into the ledger.
func (s *SQLiteStore) SaveRevenueTransactions(ctx context.Context, transactions []*models.RevenueTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.PersistenceError(errs.CodeWriteFailed, "save revenue transactions", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO revenue_transactions
		(id, user_id, platform, amount, transaction_date)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errs.PersistenceError(errs.CodeWriteFailed, "save revenue transactions", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rev := range transactions {
		_, err := stmt.ExecContext(ctx,
			rev.ID,
			rev.UserID,
			rev.Platform,
			rev.Amount.String(),
			rev.TransactionDate.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return errs.PersistenceError(errs.CodeWriteFailed, "save revenue transactions", err).
				WithContext("transaction_id", rev.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.PersistenceError(errs.CodeWriteFailed, "save revenue transactions", err)
	}
	return nil
}

// SaveBankTransactions upserts bank transactions into the ledger.
func (s *SQLiteStore) SaveBankTransactions(ctx context.Context, userID string, transactions []*models.BankTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.PersistenceError(errs.CodeWriteFailed, "save bank transactions", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bank_transactions
		(id, user_id, amount, transaction_date, description)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errs.PersistenceError(errs.CodeWriteFailed, "save bank transactions", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, bank := range transactions {
		_, err := stmt.ExecContext(ctx,
			bank.ID,
			userID,
			bank.Amount.String(),
			bank.TransactionDate.UTC().Format(time.RFC3339),
			bank.Description,
		)
		if err != nil {
			return errs.PersistenceError(errs.CodeWriteFailed, "save bank transactions", err).
				WithContext("transaction_id", bank.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.PersistenceError(errs.CodeWriteFailed, "save bank transactions", err)
	}
	return nil
}

// FetchUnreconciledRevenue implements reconciler.RevenueSource.
func (s *SQLiteStore) FetchUnreconciledRevenue(ctx context.Context, userID string) ([]*models.RevenueTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, platform, amount, transaction_date
		FROM revenue_transactions r
		WHERE r.user_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM reconciliations m
			WHERE m.revenue_transaction_id = r.id
		  )
		ORDER BY transaction_date, id
	`, userID)
	if err != nil {
		return nil, errs.FetchError(errs.CodeQueryFailed, "revenue transactions", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.RevenueTransaction
	for rows.Next() {
		var rev models.RevenueTransaction
		var amount, date string
		if err := rows.Scan(&rev.ID, &rev.UserID, &rev.Platform, &amount, &date); err != nil {
			return nil, errs.FetchError(errs.CodeQueryFailed, "revenue transactions", err)
		}
		if rev.Amount, err = models.ParseDecimalFromString(amount); err != nil {
			return nil, errs.ValidationError(errs.CodeInvalidAmount, "amount", amount, err).
				WithContext("transaction_id", rev.ID)
		}
		if rev.TransactionDate, err = models.ParseTimeWithFormats(date); err != nil {
			return nil, errs.ValidationError(errs.CodeInvalidDate, "transaction_date", date, err).
				WithContext("transaction_id", rev.ID)
		}
		out = append(out, &rev)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.FetchError(errs.CodeQueryFailed, "revenue transactions", err)
	}
	return out, nil
}

// FetchUnreconciledBankTransactions implements reconciler.BankSource.
func (s *SQLiteStore) FetchUnreconciledBankTransactions(ctx context.Context, userID string, startDate time.Time) ([]*models.BankTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, transaction_date, description
		FROM bank_transactions b
		WHERE b.user_id = ?
		  AND b.transaction_date >= ?
		  AND NOT EXISTS (
			SELECT 1 FROM reconciliations m
			WHERE m.bank_transaction_id = b.id
		  )
		ORDER BY transaction_date, id
	`, userID, startDate.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, errs.FetchError(errs.CodeQueryFailed, "bank transactions", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.BankTransaction
	for rows.Next() {
		var bank models.BankTransaction
		var amount, date string
		if err := rows.Scan(&bank.ID, &amount, &date, &bank.Description); err != nil {
			return nil, errs.FetchError(errs.CodeQueryFailed, "bank transactions", err)
		}
		if bank.Amount, err = models.ParseDecimalFromString(amount); err != nil {
			return nil, errs.ValidationError(errs.CodeInvalidAmount, "amount", amount, err).
				WithContext("transaction_id", bank.ID)
		}
		if bank.TransactionDate, err = models.ParseTimeWithFormats(date); err != nil {
			return nil, errs.ValidationError(errs.CodeInvalidDate, "transaction_date", date, err).
				WithContext("transaction_id", bank.ID)
		}
		out = append(out, &bank)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.FetchError(errs.CodeQueryFailed, "bank transactions", err)
	}
	return out, nil
}

// CreateReconciliations implements reconciler.ReconciliationStore. The batch
// is written in a single transaction and rolled back entirely if any record
// violates the one-to-one constraint.
func (s *SQLiteStore) CreateReconciliations(ctx context.Context, records []models.Reconciliation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.PersistenceError(errs.CodeWriteFailed, "create reconciliations", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reconciliations
		(id, user_id, revenue_transaction_id, bank_transaction_id,
		 match_category, match_confidence, reconciled_by, reconciled_at, creator_notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errs.PersistenceError(errs.CodeWriteFailed, "create reconciliations", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			uuid.NewString(),
			rec.UserID,
			rec.RevenueTransactionID,
			rec.BankTransactionID,
			string(rec.MatchCategory),
			rec.MatchConfidence,
			string(rec.ReconciledBy),
			rec.ReconciledAt.UTC().Format(time.RFC3339),
			rec.CreatorNotes,
		)
		if err != nil {
			return mapInsertError(err, rec)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.PersistenceError(errs.CodeWriteFailed, "create reconciliations", err)
	}
	return nil
}

// mapInsertError turns a UNIQUE violation into a conflict error naming the
// side that was already matched.
func mapInsertError(err error, rec models.Reconciliation) error {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return errs.ConflictError("revenue or bank", rec.RevenueTransactionID).
			WithContext("bank_transaction_id", rec.BankTransactionID)
	}
	return errs.PersistenceError(errs.CodeWriteFailed, "create reconciliations", err).
		WithContext("revenue_transaction_id", rec.RevenueTransactionID)
}

// IsRevenueReconciled implements reconciler.ReconciliationStore.
func (s *SQLiteStore) IsRevenueReconciled(ctx context.Context, revenueTransactionID string) (bool, error) {
	return s.exists(ctx, "revenue_transaction_id", revenueTransactionID)
}

// IsBankReconciled implements reconciler.ReconciliationStore.
func (s *SQLiteStore) IsBankReconciled(ctx context.Context, bankTransactionID string) (bool, error) {
	return s.exists(ctx, "bank_transaction_id", bankTransactionID)
}

func (s *SQLiteStore) exists(ctx context.Context, column, id string) (bool, error) {
	var found bool
	query := "SELECT EXISTS (SELECT 1 FROM reconciliations WHERE " + column + " = ?)"
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&found); err != nil {
		return false, errs.FetchError(errs.CodeQueryFailed, "reconciliation status", err).
			WithContext("transaction_id", id)
	}
	return found, nil
}

// ListReconciliations returns all stored reconciliations ordered by revenue
// transaction id.
func (s *SQLiteStore) ListReconciliations(ctx context.Context) ([]models.Reconciliation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, revenue_transaction_id, bank_transaction_id,
		       match_category, match_confidence, reconciled_by, reconciled_at, creator_notes
		FROM reconciliations
		ORDER BY revenue_transaction_id
	`)
	if err != nil {
		return nil, errs.FetchError(errs.CodeQueryFailed, "reconciliations", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Reconciliation
	for rows.Next() {
		var rec models.Reconciliation
		var category, by, at string
		if err := rows.Scan(&rec.UserID, &rec.RevenueTransactionID, &rec.BankTransactionID,
			&category, &rec.MatchConfidence, &by, &at, &rec.CreatorNotes); err != nil {
			return nil, errs.FetchError(errs.CodeQueryFailed, "reconciliations", err)
		}
		rec.MatchCategory = models.MatchCategory(category)
		rec.ReconciledBy = models.ReconciledBy(by)
		if rec.ReconciledAt, err = models.ParseTimeWithFormats(at); err != nil {
			return nil, errs.ValidationError(errs.CodeInvalidDate, "reconciled_at", at, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.FetchError(errs.CodeQueryFailed, "reconciliations", err)
	}
	return out, nil
}

// AppendAuditEntry implements audit.Store.
func (s *SQLiteStore) AppendAuditEntry(ctx context.Context, entry audit.Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return errs.PersistenceError(errs.CodeWriteFailed, "append audit entry", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (action, actor_id, status, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, entry.Action, entry.ActorID, string(entry.Status), string(details),
		entry.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return errs.PersistenceError(errs.CodeWriteFailed, "append audit entry", err)
	}
	return nil
}
