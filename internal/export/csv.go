package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVOptions configures CSV output.
type CSVOptions struct {
	Delimiter  rune
	UseCRLF    bool
	DateFormat string
}

// DefaultCSVOptions returns semicolon-separated output, which spreadsheet
// tools in French locales open without an import dialog.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:  ';',
		DateFormat: "2006-01-02",
	}
}

// WriteLedgerCSV writes the ledger with default options.
func WriteLedgerCSV(w io.Writer, l *Ledger) error {
	return WriteLedgerCSVWithOptions(w, l, DefaultCSVOptions())
}

// WriteLedgerCSVWithOptions writes one row per expense and a closing total
// row. Amounts are plain integers so the file stays machine-readable.
func WriteLedgerCSVWithOptions(w io.Writer, l *Ledger, opts CSVOptions) error {
	writer := csv.NewWriter(w)
	writer.Comma = opts.Delimiter
	writer.UseCRLF = opts.UseCRLF

	if err := writer.Write(ledgerColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, e := range l.Expenses {
		record := []string{
			e.Date.Format(opts.DateFormat),
			e.Description,
			CategoryLabel(e.Category),
			formatAmount(e.Amount),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	if err := writer.Write([]string{"", "Total", "", formatAmount(l.Total)}); err != nil {
		return fmt.Errorf("failed to write total: %w", err)
	}

	writer.Flush()
	return writer.Error()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64)
}
