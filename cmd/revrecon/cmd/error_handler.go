package cmd

import (
	"fmt"
	"os"
	"strings"

	errs "golang-revenue-reconciliation/pkg/errors"
	"golang-revenue-reconciliation/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler renders engine errors for the terminal and maps them to
// process exit codes.
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler.
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints a user-facing message and returns the exit code.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if engineErr, ok := errs.AsEngineError(err); ok {
		return h.handleEngineError(engineErr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleEngineError(err *errs.EngineError) int {
	fmt.Fprintln(os.Stderr, "Error: "+errs.FormatForDisplay(err))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	if os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory") {
		fmt.Fprintln(os.Stderr, "Error: File not found")
		fmt.Fprintln(os.Stderr, "Suggestion: Check if the file path is correct and the file exists")
		return 2
	}

	if os.IsPermission(err) || strings.Contains(err.Error(), "permission denied") {
		fmt.Fprintln(os.Stderr, "Error: Permission denied")
		fmt.Fprintln(os.Stderr, "Suggestion: Check file permissions and ensure you have read access")
		return 2
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintln(os.Stderr, "Run with --verbose for more detail")
	}
	return 1
}
