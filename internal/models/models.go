// Package models defines the domain records of the revenue reconciliation
// engine: platform-reported revenue transactions, bank-feed deposits, and the
// append-only Reconciliation ledger entries that link the two.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchCategory classifies how a revenue transaction was linked to a bank
// deposit.
type MatchCategory string

const (
	// MatchExact is an exact amount match settled within the fast-settlement
	// threshold.
	MatchExact MatchCategory = "exact_match"

	// MatchFeeDeduction is a deposit slightly below the reported revenue,
	// consistent with platform fees.
	MatchFeeDeduction MatchCategory = "fee_deduction"

	// MatchHoldPeriod is an exact amount match whose deposit lagged beyond the
	// fast-settlement threshold.
	MatchHoldPeriod MatchCategory = "hold_period"

	// MatchManual is an operator-confirmed link.
	MatchManual MatchCategory = "manual"
)

// String returns the string representation of MatchCategory.
func (mc MatchCategory) String() string {
	return string(mc)
}

// IsValid checks if the match category is valid.
func (mc MatchCategory) IsValid() bool {
	switch mc {
	case MatchExact, MatchFeeDeduction, MatchHoldPeriod, MatchManual:
		return true
	}
	return false
}

// ReconciledBy identifies which path produced a reconciliation.
type ReconciledBy string

const (
	ReconciledByAuto   ReconciledBy = "auto"
	ReconciledByManual ReconciledBy = "manual"
)

// IsValid checks if the reconciled-by value is valid.
func (rb ReconciledBy) IsValid() bool {
	return rb == ReconciledByAuto || rb == ReconciledByManual
}

// RevenueTransaction is an earnings event reported by a creator's external
// platform. Records are produced by the ingestion subsystem and are read-only
// here.
type RevenueTransaction struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Platform        string          `json:"platform"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate time.Time       `json:"transaction_date"`
}

// Validate performs basic validation on the RevenueTransaction.
func (rt *RevenueTransaction) Validate() error {
	if strings.TrimSpace(rt.ID) == "" {
		return fmt.Errorf("revenue transaction ID cannot be empty")
	}

	if strings.TrimSpace(rt.UserID) == "" {
		return fmt.Errorf("revenue transaction user ID cannot be empty")
	}

	if rt.Amount.IsNegative() {
		return fmt.Errorf("revenue transaction amount cannot be negative")
	}

	if rt.TransactionDate.IsZero() {
		return fmt.Errorf("revenue transaction date cannot be zero")
	}

	return nil
}

// String returns a string representation of the RevenueTransaction.
func (rt *RevenueTransaction) String() string {
	return fmt.Sprintf("RevenueTransaction{ID: %s, User: %s, Platform: %s, Amount: %s, Date: %s}",
		rt.ID, rt.UserID, rt.Platform, rt.Amount.String(), rt.TransactionDate.Format(time.RFC3339))
}

// BankTransaction is an actual deposit recorded in the creator's bank feed.
// Records are produced by the bank-feed subsystem and are read-only here.
type BankTransaction struct {
	ID              string          `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate time.Time       `json:"transaction_date"`
	Description     string          `json:"description,omitempty"`
}

// Validate performs basic validation on the BankTransaction.
func (bt *BankTransaction) Validate() error {
	if strings.TrimSpace(bt.ID) == "" {
		return fmt.Errorf("bank transaction ID cannot be empty")
	}

	if bt.TransactionDate.IsZero() {
		return fmt.Errorf("bank transaction date cannot be zero")
	}

	return nil
}

// String returns a string representation of the BankTransaction.
func (bt *BankTransaction) String() string {
	return fmt.Sprintf("BankTransaction{ID: %s, Amount: %s, Date: %s}",
		bt.ID, bt.Amount.String(), bt.TransactionDate.Format(time.RFC3339))
}

// Reconciliation is the persisted link asserting that a revenue transaction
// and a bank transaction represent the same economic event. Records are
// created once and never updated or deleted.
type Reconciliation struct {
	UserID               string        `json:"user_id"`
	RevenueTransactionID string        `json:"revenue_transaction_id"`
	BankTransactionID    string        `json:"bank_transaction_id"`
	MatchCategory        MatchCategory `json:"match_category"`
	MatchConfidence      float64       `json:"match_confidence"`
	ReconciledBy         ReconciledBy  `json:"reconciled_by"`
	ReconciledAt         time.Time     `json:"reconciled_at"`
	CreatorNotes         string        `json:"creator_notes,omitempty"`
}

// Validate performs basic validation on the Reconciliation.
func (r *Reconciliation) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("reconciliation user ID cannot be empty")
	}

	if strings.TrimSpace(r.RevenueTransactionID) == "" {
		return fmt.Errorf("reconciliation revenue transaction ID cannot be empty")
	}

	if strings.TrimSpace(r.BankTransactionID) == "" {
		return fmt.Errorf("reconciliation bank transaction ID cannot be empty")
	}

	if !r.MatchCategory.IsValid() {
		return fmt.Errorf("invalid match category: %s", r.MatchCategory)
	}

	if r.MatchConfidence < 0.0 || r.MatchConfidence > 1.0 {
		return fmt.Errorf("match confidence must be between 0.0 and 1.0: %f", r.MatchConfidence)
	}

	if !r.ReconciledBy.IsValid() {
		return fmt.Errorf("invalid reconciled_by value: %s", r.ReconciledBy)
	}

	if r.ReconciledAt.IsZero() {
		return fmt.Errorf("reconciled_at cannot be zero")
	}

	return nil
}

// String returns a string representation of the Reconciliation.
func (r *Reconciliation) String() string {
	return fmt.Sprintf("Reconciliation{Revenue: %s, Bank: %s, Category: %s, Confidence: %.2f, By: %s}",
		r.RevenueTransactionID, r.BankTransactionID, r.MatchCategory, r.MatchConfidence, r.ReconciledBy)
}

// MarshalJSON implements custom JSON marshaling for Reconciliation so the
// timestamp is rendered as RFC 3339.
func (r *Reconciliation) MarshalJSON() ([]byte, error) {
	type Alias Reconciliation
	return json.Marshal(&struct {
		ReconciledAt string `json:"reconciled_at"`
		*Alias
	}{
		ReconciledAt: r.ReconciledAt.UTC().Format(time.RFC3339),
		Alias:        (*Alias)(r),
	})
}

// Utility functions for parsing input records.

// ParseDecimalFromString parses a decimal amount from a string, tolerating
// currency symbols and thousand separators.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseTimeWithFormats attempts to parse a timestamp using the formats that
// commonly appear in platform exports and bank feeds. Date-only values parse
// to midnight UTC.
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"01/02/2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}
