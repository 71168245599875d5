package cmd

import (
	"context"
	"fmt"
	"os"

	"golang-revenue-reconciliation/internal/audit"
	"golang-revenue-reconciliation/internal/reconciler"
	"golang-revenue-reconciliation/pkg/logger"

	"github.com/spf13/cobra"
)

var matchFlags struct {
	userID    string
	revenueID string
	bankID    string
	notes     string
	dbPath    string
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Manually match a revenue transaction to a bank deposit",
	Long: `Match creates an operator-confirmed link between one revenue transaction
and one bank deposit. Both transactions must be unreconciled; a transaction
that is already part of a match is rejected.

Examples:
  revrecon match --db ledger.db --user user_1 --revenue-id rev_42 --bank-id bank_7
  revrecon match --db ledger.db --user user_1 --revenue-id rev_42 --bank-id bank_7 --notes "confirmed by statement"`,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringVarP(&matchFlags.userID, "user", "u", "", "user owning both transactions (required)")
	matchCmd.Flags().StringVar(&matchFlags.revenueID, "revenue-id", "", "revenue transaction id (required)")
	matchCmd.Flags().StringVar(&matchFlags.bankID, "bank-id", "", "bank transaction id (required)")
	matchCmd.Flags().StringVar(&matchFlags.notes, "notes", "", "optional operator notes")
	matchCmd.Flags().StringVar(&matchFlags.dbPath, "db", "", "SQLite ledger path (required)")

	matchCmd.MarkFlagRequired("user")
	matchCmd.MarkFlagRequired("revenue-id")
	matchCmd.MarkFlagRequired("bank-id")
	matchCmd.MarkFlagRequired("db")
}

func runMatch(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := openLedger(matchFlags.dbPath)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	defer func() { _ = store.Close() }()

	log := logger.GetGlobalLogger()
	service := reconciler.NewService(store, store, store, audit.NewRecorder(log, store), nil, log)

	record, err := service.ManualReconcile(ctx, matchFlags.userID, matchFlags.revenueID, matchFlags.bankID, matchFlags.notes)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	fmt.Printf("Matched %s -> %s (%s)\n",
		record.RevenueTransactionID, record.BankTransactionID, record.MatchCategory)
	return nil
}
