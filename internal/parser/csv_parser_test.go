package parser

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenlight-billing/internal/domain"
)

func TestCSVStatementParser_ParseFile(t *testing.T) {
	tmpDir := t.TempDir()
	csvFile := filepath.Join(tmpDir, "statement.csv")

	csvContent := `Date,Description,Amount,Reference
2024-01-15,PAYMENT J SMITH,100.50,REF001
2024-01-16,BANK FEE,-2.75,REF002
2024-01-17,"PAYMENT, A JONES","$1,300.00",
not-a-date,PAYMENT,10.00,REF004
`

	require.NoError(t, os.WriteFile(csvFile, []byte(csvContent), 0644))

	p := NewCSVStatementParser("Butterfield")
	var transactions []domain.Transaction

	stats, err := p.ParseFile(csvFile, 100, func(batch []domain.Transaction) error {
		transactions = append(transactions, batch...)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, ParseStats{Rows: 4, Parsed: 2, Skipped: 2}, stats)
	require.Len(t, transactions, 2)

	first := transactions[0]
	assert.Equal(t, "REF001", first.Reference)
	assert.Equal(t, "Butterfield", first.Source)
	assert.Equal(t, domain.TransactionUnmatched, first.Status)
	assert.True(t, first.PendingAmount.Equal(decimal.RequireFromString("100.50")))
	assert.NotEmpty(t, first.ID)

	assert.Equal(t, "PAYMENT, A JONES", transactions[1].Description)
	assert.Empty(t, transactions[1].Reference)
	assert.True(t, transactions[1].Amount.Equal(decimal.NewFromInt(1300)))
}

func TestCSVStatementParser_Batches(t *testing.T) {
	var b strings.Builder
	b.WriteString("amount,description,date\n")
	for i := 0; i < 5; i++ {
		b.WriteString("10.00,PAYMENT,2024-01-15\n")
	}

	var sizes []int
	stats, err := NewCSVStatementParser("bank").Parse(strings.NewReader(b.String()), 2, func(batch []domain.Transaction) error {
		sizes = append(sizes, len(batch))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, 5, stats.Parsed)
}

func TestCSVStatementParser_CallbackErrorStops(t *testing.T) {
	input := "date,description,amount\n2024-01-15,A,1\n2024-01-16,B,2\n"
	boom := errors.New("store unavailable")

	_, err := NewCSVStatementParser("bank").Parse(strings.NewReader(input), 1, func([]domain.Transaction) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestCSVStatementParser_ReaderErrorStops(t *testing.T) {
	input := io.MultiReader(
		strings.NewReader("Date,Description,Amount,Reference\n2024-01-15,PAYMENT,10.00,REF001\n"),
		failingReader{err: errors.New("connection reset")},
	)

	calls := 0
	stats, err := NewCSVStatementParser("bank").Parse(input, 100, func([]domain.Transaction) error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 1, stats.Parsed)
	assert.Equal(t, 0, stats.Skipped)
	assert.Zero(t, calls)
}

func TestCSVStatementParser_InvalidFormat(t *testing.T) {
	_, err := NewCSVStatementParser("bank").Parse(strings.NewReader("id,value\n1,100\n"), 100, func([]domain.Transaction) error {
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "date, description, amount")
}

func TestCSVStatementParser_MissingFile(t *testing.T) {
	_, err := NewCSVStatementParser("bank").ParseFile(filepath.Join(t.TempDir(), "none.csv"), 10, func([]domain.Transaction) error {
		return nil
	})

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"100":       "100",
		"$1,234.50": "1234.5",
		"(12.00)":   "-12",
		" 0.01 ":    "0.01",
		"-5":        "-5",
	}
	for in, want := range cases {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "%q -> %s", in, got)
	}

	_, err := ParseAmount("abc")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2024-03-05", "05/03/2024", "2024/03/05", "05-Mar-2024", "2024-03-05T00:00:00Z"} {
		d, err := parseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, 5, d.Day(), in)
		assert.Equal(t, 3, int(d.Month()), in)
	}
}
