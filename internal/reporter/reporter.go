// Package reporter renders reconciliation run results for the CLI in console,
// JSON, and CSV formats.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang-revenue-reconciliation/internal/models"
	"golang-revenue-reconciliation/internal/reconciler"
	errs "golang-revenue-reconciliation/pkg/errors"
)

// Format selects the output rendering.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
)

// IsValid checks if the format is supported.
func (f Format) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	}
	return false
}

// Report bundles a run result with the reconciliations it produced.
type Report struct {
	Result          *reconciler.RunResult   `json:"result"`
	Reconciliations []models.Reconciliation `json:"reconciliations"`
	GeneratedAt     time.Time               `json:"generated_at"`
}

// NewReport creates a report for a completed run.
func NewReport(result *reconciler.RunResult, reconciliations []models.Reconciliation) *Report {
	return &Report{
		Result:          result,
		Reconciliations: reconciliations,
		GeneratedAt:     time.Now().UTC(),
	}
}

// Write renders the report to w in the given format.
func Write(w io.Writer, report *Report, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatCSV:
		return writeCSV(w, report)
	case FormatConsole, "":
		return writeConsole(w, report)
	default:
		return errs.ValidationError(errs.CodeInvalidConfig, "output_format", string(format), nil)
	}
}

func writeJSON(w io.Writer, report *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return errs.InternalError("encode report", err)
	}
	return nil
}

func writeCSV(w io.Writer, report *Report) error {
	writer := csv.NewWriter(w)

	header := []string{
		"revenue_transaction_id", "bank_transaction_id", "match_category",
		"match_confidence", "reconciled_by", "reconciled_at", "creator_notes",
	}
	if err := writer.Write(header); err != nil {
		return errs.InternalError("write report", err)
	}

	for _, rec := range report.Reconciliations {
		row := []string{
			rec.RevenueTransactionID,
			rec.BankTransactionID,
			string(rec.MatchCategory),
			strconv.FormatFloat(rec.MatchConfidence, 'f', -1, 64),
			string(rec.ReconciledBy),
			rec.ReconciledAt.UTC().Format(time.RFC3339),
			rec.CreatorNotes,
		}
		if err := writer.Write(row); err != nil {
			return errs.InternalError("write report", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errs.InternalError("write report", err)
	}
	return nil
}

func writeConsole(w io.Writer, report *Report) error {
	fmt.Fprintln(w, "Reconciliation Report")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintf(w, "Generated: %s\n\n", report.GeneratedAt.Format(time.RFC3339))

	if report.Result != nil {
		fmt.Fprintf(w, "Status:  %s\n", statusWord(report.Result.Success))
		fmt.Fprintf(w, "Matched: %d\n", report.Result.MatchedCount)
		fmt.Fprintf(w, "Message: %s\n", report.Result.Message)
	}

	if len(report.Reconciliations) == 0 {
		fmt.Fprintln(w, "\nNo reconciliations to display.")
		return nil
	}

	categories := make(map[models.MatchCategory]int)
	for _, rec := range report.Reconciliations {
		categories[rec.MatchCategory]++
	}

	fmt.Fprintln(w, "\nBy category:")
	for _, category := range []models.MatchCategory{
		models.MatchExact, models.MatchFeeDeduction, models.MatchHoldPeriod, models.MatchManual,
	} {
		if count := categories[category]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", category, count)
		}
	}

	fmt.Fprintln(w, "\nMatches:")
	for _, rec := range report.Reconciliations {
		fmt.Fprintf(w, "  %s -> %s  (%s, confidence %.2f)\n",
			rec.RevenueTransactionID, rec.BankTransactionID,
			rec.MatchCategory, rec.MatchConfidence)
	}

	return nil
}

func statusWord(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
