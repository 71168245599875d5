package cmd

import (
	"context"
	"fmt"
	"os"

	"golang-revenue-reconciliation/internal/audit"
	"golang-revenue-reconciliation/internal/matcher"
	"golang-revenue-reconciliation/internal/models"
	"golang-revenue-reconciliation/internal/parsers"
	"golang-revenue-reconciliation/internal/reconciler"
	"golang-revenue-reconciliation/internal/repository"
	"golang-revenue-reconciliation/internal/reporter"
	errs "golang-revenue-reconciliation/pkg/errors"
	"golang-revenue-reconciliation/pkg/logger"

	"github.com/spf13/cobra"
)

// ledger is the store surface the CLI needs: the reconciler's collaborator
// interfaces plus seeding and inspection.
type ledger interface {
	reconciler.RevenueSource
	reconciler.BankSource
	reconciler.ReconciliationStore
	audit.Store

	SaveRevenueTransactions(ctx context.Context, transactions []*models.RevenueTransaction) error
	SaveBankTransactions(ctx context.Context, userID string, transactions []*models.BankTransaction) error
	ListReconciliations(ctx context.Context) ([]models.Reconciliation, error)
	Close() error
}

var reconcileFlags struct {
	userID       string
	revenueFile  string
	bankFile     string
	dbPath       string
	maxDiffDays  int
	outputFormat string
	outputFile   string
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Automatically match revenue against bank deposits",
	Long: `Reconcile fetches a user's unreconciled revenue transactions and bank
deposits, scores all candidate pairs inside the settlement window, and
persists the best one-to-one matches.

With --db the matches are written to a SQLite ledger and previously matched
transactions are excluded from later runs. Without --db the run is kept in
memory and only reported.

Examples:
  revrecon reconcile --revenue-file revenue.csv --bank-file deposits.csv --user user_1
  revrecon reconcile --db ledger.db --revenue-file revenue.csv --bank-file deposits.csv --user user_1
  revrecon reconcile --db ledger.db --user user_1 --output-format csv --output-file matches.csv`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&reconcileFlags.userID, "user", "u", "", "user to reconcile (required)")
	reconcileCmd.Flags().StringVar(&reconcileFlags.revenueFile, "revenue-file", "", "CSV file with revenue transactions")
	reconcileCmd.Flags().StringVar(&reconcileFlags.bankFile, "bank-file", "", "CSV file with bank transactions")
	reconcileCmd.Flags().StringVar(&reconcileFlags.dbPath, "db", "", "SQLite ledger path (in-memory when omitted)")
	reconcileCmd.Flags().IntVar(&reconcileFlags.maxDiffDays, "max-diff-days", 14, "settlement window in days")
	reconcileCmd.Flags().StringVar(&reconcileFlags.outputFormat, "output-format", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVar(&reconcileFlags.outputFile, "output-file", "", "write the report to a file instead of stdout")

	reconcileCmd.MarkFlagRequired("user")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := openLedger(reconcileFlags.dbPath)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	defer func() { _ = store.Close() }()

	if err := seedLedger(ctx, store, reconcileFlags.userID, reconcileFlags.revenueFile, reconcileFlags.bankFile); err != nil {
		os.Exit(handler.HandleError(err))
	}

	config := matcher.DefaultMatchingConfig()
	config.MaxDiffDays = reconcileFlags.maxDiffDays
	if err := config.Validate(); err != nil {
		os.Exit(handler.HandleError(err))
	}

	log := logger.GetGlobalLogger()
	service := reconciler.NewService(store, store, store, audit.NewRecorder(log, store), config, log)

	result, err := service.AutoReconcile(ctx, reconcileFlags.userID)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	records, err := store.ListReconciliations(ctx)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	report := reporter.NewReport(result, records)
	if err := writeReport(report, reconcileFlags.outputFormat, reconcileFlags.outputFile); err != nil {
		os.Exit(handler.HandleError(err))
	}

	return nil
}

func openLedger(dbPath string) (ledger, error) {
	if dbPath == "" {
		return repository.NewMemoryStore(), nil
	}
	return repository.NewSQLiteStore(dbPath)
}

func seedLedger(ctx context.Context, store ledger, userID, revenueFile, bankFile string) error {
	if revenueFile != "" {
		parser, err := parsers.NewRevenueParser(nil)
		if err != nil {
			return err
		}
		revenues, _, err := parser.ParseFile(revenueFile)
		if err != nil {
			return err
		}
		if err := store.SaveRevenueTransactions(ctx, revenues); err != nil {
			return err
		}
	}

	if bankFile != "" {
		parser, err := parsers.NewBankParser(nil)
		if err != nil {
			return err
		}
		banks, _, err := parser.ParseFile(bankFile)
		if err != nil {
			return err
		}
		if err := store.SaveBankTransactions(ctx, userID, banks); err != nil {
			return err
		}
	}

	return nil
}

func writeReport(report *reporter.Report, format, outputFile string) error {
	out := os.Stdout
	if outputFile != "" {
		file, err := os.Create(outputFile)
		if err != nil {
			return errs.PersistenceError(errs.CodeWriteFailed, "create report file", err).
				WithContext("path", outputFile)
		}
		defer func() { _ = file.Close() }()
		out = file
	}

	if err := reporter.Write(out, report, reporter.Format(format)); err != nil {
		return err
	}

	if outputFile != "" {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", outputFile)
	}
	return nil
}
