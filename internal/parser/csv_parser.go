package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"greenlight-billing/internal/domain"
	"greenlight-billing/pkg/logger"
)

var requiredColumns = []string{"date", "description", "amount"}

// ParseStats counts what happened to each data row of a statement.
type ParseStats struct {
	Rows    int `json:"rows"`
	Parsed  int `json:"parsed"`
	Skipped int `json:"skipped"`
}

// StatementParser reads bank statements into unmatched transactions
type StatementParser interface {
	Parse(r io.Reader, batchSize int, callback func([]domain.Transaction) error) (ParseStats, error)
}

// CSVStatementParser streams a CSV statement with columns date, description,
// amount and an optional reference. Column order is free; names are case-insensitive.
type CSVStatementParser struct {
	source string // bank identifier
}

func NewCSVStatementParser(source string) *CSVStatementParser {
	return &CSVStatementParser{source: source}
}

// ParseFile opens filePath and parses it.
func (p *CSVStatementParser) ParseFile(filePath string, batchSize int, callback func([]domain.Transaction) error) (ParseStats, error) {
	file, err := os.Open(filePath)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("file", filePath).Error("Failed to open file")
		return ParseStats{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(file, batchSize, callback)
}

// Parse reads rows in streaming mode and hands them to callback in batches.
// Rows that cannot be parsed are logged and skipped.
func (p *CSVStatementParser) Parse(r io.Reader, batchSize int, callback func([]domain.Transaction) error) (ParseStats, error) {
	var stats ParseStats
	if batchSize <= 0 {
		batchSize = 1000
	}

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to read CSV header")
		return stats, fmt.Errorf("failed to read header: %w", err)
	}

	columnMap := mapColumns(header)
	if missing := missingColumns(columnMap); len(missing) > 0 {
		return stats, fmt.Errorf("invalid CSV format: missing required columns (%s)", strings.Join(missing, ", "))
	}

	batch := make([]domain.Transaction, 0, batchSize)
	lineNumber := 1

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lineNumber++
		stats.Rows++
		if err != nil {
			// only malformed rows are skippable; a failing reader would repeat forever
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				logger.GetLogger().WithError(err).WithField("line", lineNumber).Error("Failed to read CSV input")
				return stats, fmt.Errorf("failed to read line %d: %w", lineNumber, err)
			}
			logger.GetLogger().WithError(err).WithField("line", lineNumber).Warn("Failed to read CSV row, skipping")
			stats.Skipped++
			continue
		}

		tx, err := p.parseRecord(record, columnMap, lineNumber)
		if err != nil {
			logger.GetLogger().WithError(err).WithField("line", lineNumber).Warn("Failed to parse record, skipping")
			stats.Skipped++
			continue
		}

		batch = append(batch, *tx)
		stats.Parsed++

		if len(batch) >= batchSize {
			if err := callback(batch); err != nil {
				return stats, err
			}
			batch = make([]domain.Transaction, 0, batchSize)
		}
	}

	if len(batch) > 0 {
		if err := callback(batch); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

func (p *CSVStatementParser) parseRecord(record []string, columnMap map[string]int, lineNumber int) (*domain.Transaction, error) {
	field := func(name string) string {
		i, ok := columnMap[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	dateStr := field("date")
	date, err := parseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date '%s' at line %d: %w", dateStr, lineNumber, err)
	}

	amountStr := field("amount")
	amount, err := ParseAmount(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount '%s' at line %d: %w", amountStr, lineNumber, err)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("non-credit amount %s at line %d", amount.String(), lineNumber)
	}

	description := field("description")
	if description == "" {
		return nil, fmt.Errorf("empty description at line %d", lineNumber)
	}

	tx := domain.NewTransaction(uuid.New().String(), date, description, amount)
	tx.Reference = field("reference")
	tx.Source = p.source
	return &tx, nil
}

// ParseAmount accepts plain decimals as well as "$1,234.50" and "(12.00)" for negatives.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

func mapColumns(header []string) map[string]int {
	columnMap := make(map[string]int)
	for i, col := range header {
		normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		columnMap[normalized] = i
	}
	return columnMap
}

func missingColumns(columnMap map[string]int) []string {
	var missing []string
	for _, col := range requiredColumns {
		if _, exists := columnMap[col]; !exists {
			missing = append(missing, col)
		}
	}
	return missing
}

func parseDate(dateStr string) (time.Time, error) {
	formats := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"02/01/2006",
		"2006/01/02",
		"02-Jan-2006",
		time.RFC3339,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
