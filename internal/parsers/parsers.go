// Package parsers loads revenue and bank transaction CSV files into the
// engine's models.
//
// Column mappings are configurable so that exports from different platforms
// and banks can be ingested without preprocessing. Amounts accept currency
// symbols and thousands separators; dates accept RFC 3339 timestamps and the
// common date-only formats.
package parsers

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	errs "golang-revenue-reconciliation/pkg/errors"
	"golang-revenue-reconciliation/pkg/logger"
)

// ParseStats summarizes a parsing run.
type ParseStats struct {
	TotalRows   int
	ParsedRows  int
	SkippedRows int
}

// headerMap resolves configured column names to their indexes, case
// insensitively.
type headerMap map[string]int

func buildHeaderMap(headers []string) headerMap {
	m := make(headerMap, len(headers))
	for i, h := range headers {
		m[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return m
}

func (m headerMap) index(file, column string) (int, error) {
	if i, ok := m[strings.ToLower(column)]; ok {
		return i, nil
	}
	return -1, errs.ParseError(errs.CodeMissingColumn, file, 1, column, nil)
}

func openCSV(path string, delimiter rune, log logger.Logger) (*os.File, *csv.Reader, error) {
	log.WithField("file_path", path).Debug("Opening CSV file")

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errs.FetchError(errs.CodeSourceUnavailable, path, err)
	}

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	return file, reader, nil
}

func readRow(reader *csv.Reader, file string, line int) ([]string, bool, error) {
	row, err := reader.Read()
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.ParseError(errs.CodeInvalidFormat, file, line, "", err)
	}
	return row, true, nil
}

func isEmptyRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func fieldAt(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}
