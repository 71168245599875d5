package parsers

import (
	"golang-revenue-reconciliation/internal/models"
	errs "golang-revenue-reconciliation/pkg/errors"
	"golang-revenue-reconciliation/pkg/logger"
)

// BankFileConfig maps the columns of a bank statement export to the model
// fields.
type BankFileConfig struct {
	IDColumn          string
	AmountColumn      string
	DateColumn        string
	DescriptionColumn string
	HasHeader         bool
	Delimiter         rune
}

// DefaultBankFileConfig returns the column mapping used by the standard bank
// statement export.
func DefaultBankFileConfig() *BankFileConfig {
	return &BankFileConfig{
		IDColumn:          "id",
		AmountColumn:      "amount",
		DateColumn:        "transaction_date",
		DescriptionColumn: "description",
		HasHeader:         true,
		Delimiter:         ',',
	}
}

// Validate checks that all required column names are present.
func (c *BankFileConfig) Validate() error {
	for _, col := range []struct{ name, value string }{
		{"id_column", c.IDColumn},
		{"amount_column", c.AmountColumn},
		{"date_column", c.DateColumn},
	} {
		if col.value == "" {
			return errs.ValidationError(errs.CodeInvalidConfig, col.name, col.value, nil)
		}
	}
	return nil
}

// BankParser loads bank transaction CSV files.
type BankParser struct {
	config *BankFileConfig
	logger logger.Logger
}

// NewBankParser creates a parser with the given column mapping. A nil config
// uses the default mapping.
func NewBankParser(config *BankFileConfig) (*BankParser, error) {
	if config == nil {
		config = DefaultBankFileConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &BankParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("bank_parser"),
	}, nil
}

// ParseFile reads all bank transactions from the file at path.
func (p *BankParser) ParseFile(path string) ([]*models.BankTransaction, *ParseStats, error) {
	file, reader, err := openCSV(path, p.config.Delimiter, p.logger)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = file.Close() }()

	stats := &ParseStats{}
	line := 0

	var headers headerMap
	if p.config.HasHeader {
		row, ok, err := readRow(reader, path, 1)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, stats, nil
		}
		line = 1
		headers = buildHeaderMap(row)
	} else {
		// Positional layout: id, amount, date, description.
		headers = headerMap{
			p.config.IDColumn:          0,
			p.config.AmountColumn:      1,
			p.config.DateColumn:        2,
			p.config.DescriptionColumn: 3,
		}
	}

	idIdx, err := headers.index(path, p.config.IDColumn)
	if err != nil {
		return nil, nil, err
	}
	amountIdx, err := headers.index(path, p.config.AmountColumn)
	if err != nil {
		return nil, nil, err
	}
	dateIdx, err := headers.index(path, p.config.DateColumn)
	if err != nil {
		return nil, nil, err
	}
	descriptionIdx := -1
	if p.config.DescriptionColumn != "" {
		descriptionIdx, _ = headers.index(path, p.config.DescriptionColumn)
	}

	var out []*models.BankTransaction
	for {
		row, ok, err := readRow(reader, path, line+1)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		line++
		stats.TotalRows++

		if isEmptyRow(row) {
			stats.SkippedRows++
			continue
		}

		bank := &models.BankTransaction{
			ID:          fieldAt(row, idIdx),
			Description: fieldAt(row, descriptionIdx),
		}
		if bank.ID == "" {
			return nil, nil, errs.ParseError(errs.CodeMissingField, path, line, p.config.IDColumn, nil)
		}

		amount := fieldAt(row, amountIdx)
		if bank.Amount, err = models.ParseDecimalFromString(amount); err != nil {
			return nil, nil, errs.ParseError(errs.CodeInvalidAmount, path, line, p.config.AmountColumn, err)
		}

		date := fieldAt(row, dateIdx)
		if bank.TransactionDate, err = models.ParseTimeWithFormats(date); err != nil {
			return nil, nil, errs.ParseError(errs.CodeInvalidDate, path, line, p.config.DateColumn, err)
		}

		out = append(out, bank)
		stats.ParsedRows++
	}

	p.logger.WithFields(logger.Fields{
		"file_path":   path,
		"parsed_rows": stats.ParsedRows,
		"total_rows":  stats.TotalRows,
	}).Info("Parsed bank statement file")

	return out, stats, nil
}
