package parsers

import (
	"golang-revenue-reconciliation/internal/models"
	errs "golang-revenue-reconciliation/pkg/errors"
	"golang-revenue-reconciliation/pkg/logger"
)

// RevenueFileConfig maps the columns of a revenue export to the model fields.
type RevenueFileConfig struct {
	IDColumn       string
	UserIDColumn   string
	PlatformColumn string
	AmountColumn   string
	DateColumn     string
	HasHeader      bool
	Delimiter      rune
}

// DefaultRevenueFileConfig returns the column mapping used by the standard
// revenue export.
func DefaultRevenueFileConfig() *RevenueFileConfig {
	return &RevenueFileConfig{
		IDColumn:       "id",
		UserIDColumn:   "user_id",
		PlatformColumn: "platform",
		AmountColumn:   "amount",
		DateColumn:     "transaction_date",
		HasHeader:      true,
		Delimiter:      ',',
	}
}

// Validate checks that all required column names are present.
func (c *RevenueFileConfig) Validate() error {
	for _, col := range []struct{ name, value string }{
		{"id_column", c.IDColumn},
		{"user_id_column", c.UserIDColumn},
		{"amount_column", c.AmountColumn},
		{"date_column", c.DateColumn},
	} {
		if col.value == "" {
			return errs.ValidationError(errs.CodeInvalidConfig, col.name, col.value, nil)
		}
	}
	return nil
}

// RevenueParser loads revenue transaction CSV files.
type RevenueParser struct {
	config *RevenueFileConfig
	logger logger.Logger
}

// NewRevenueParser creates a parser with the given column mapping. A nil
// config uses the default mapping.
func NewRevenueParser(config *RevenueFileConfig) (*RevenueParser, error) {
	if config == nil {
		config = DefaultRevenueFileConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &RevenueParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("revenue_parser"),
	}, nil
}

// ParseFile reads all revenue transactions from the file at path.
func (p *RevenueParser) ParseFile(path string) ([]*models.RevenueTransaction, *ParseStats, error) {
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
		// Positional layout: id, user_id, platform, amount, date.
		headers = headerMap{
			p.config.IDColumn:       0,
			p.config.UserIDColumn:   1,
			p.config.PlatformColumn: 2,
			p.config.AmountColumn:   3,
			p.config.DateColumn:     4,
		}
	}

	idIdx, err := headers.index(path, p.config.IDColumn)
	if err != nil {
		return nil, nil, err
	}
	userIdx, err := headers.index(path, p.config.UserIDColumn)
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
	platformIdx := -1
	if p.config.PlatformColumn != "" {
		platformIdx, _ = headers.index(path, p.config.PlatformColumn)
	}

	var out []*models.RevenueTransaction
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

		rev := &models.RevenueTransaction{
			ID:       fieldAt(row, idIdx),
			UserID:   fieldAt(row, userIdx),
			Platform: fieldAt(row, platformIdx),
		}
		if rev.ID == "" {
			return nil, nil, errs.ParseError(errs.CodeMissingField, path, line, p.config.IDColumn, nil)
		}
		if rev.UserID == "" {
			return nil, nil, errs.ParseError(errs.CodeMissingField, path, line, p.config.UserIDColumn, nil)
		}

		amount := fieldAt(row, amountIdx)
		if rev.Amount, err = models.ParseDecimalFromString(amount); err != nil {
			return nil, nil, errs.ParseError(errs.CodeInvalidAmount, path, line, p.config.AmountColumn, err)
		}

		date := fieldAt(row, dateIdx)
		if rev.TransactionDate, err = models.ParseTimeWithFormats(date); err != nil {
			return nil, nil, errs.ParseError(errs.CodeInvalidDate, path, line, p.config.DateColumn, err)
		}

		out = append(out, rev)
		stats.ParsedRows++
	}

	p.logger.WithFields(logger.Fields{
		"file_path":   path,
		"parsed_rows": stats.ParsedRows,
		"total_rows":  stats.TotalRows,
	}).Info("Parsed revenue file")

	return out, stats, nil
}
