// Package export renders project expense ledgers and status reports as CSV,
// Excel and PDF documents, and archives ledgers to S3.
package export

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"teranga-build/portal/portal-backend/internal/portal"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts csv, xlsx or pdf (case-insensitive). Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

var categoryLabels = map[portal.ExpenseCategory]string{
	portal.ExpenseMaterials: "Matériaux",
	portal.ExpenseLabor:     "Main d'œuvre",
	portal.ExpenseEquipment: "Équipement",
	portal.ExpenseOther:     "Autre",
}

// CategoryLabel returns the French label of an expense category.
func CategoryLabel(c portal.ExpenseCategory) string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

var ledgerColumns = []string{"Date", "Description", "Catégorie", "Montant (F CFA)"}

// Ledger is the expense ledger of one project, oldest expense first.
type Ledger struct {
	Project     portal.Project
	Expenses    []portal.ProjectExpense
	Total       float64
	GeneratedAt time.Time
}

// NewLedger sorts expenses by date and sums them. The input slice is not
// modified.
func NewLedger(project portal.Project, expenses []portal.ProjectExpense, generatedAt time.Time) *Ledger {
	sorted := slices.Clone(expenses)
	slices.SortStableFunc(sorted, func(a, b portal.ProjectExpense) int {
		return a.Date.Compare(b.Date)
	})
	var total float64
	for _, e := range sorted {
		total += e.Amount
	}
	return &Ledger{Project: project, Expenses: sorted, Total: total, GeneratedAt: generatedAt}
}

// Filename is the download name of the ledger in format f.
func (l *Ledger) Filename(f Format) string {
	return fmt.Sprintf("depenses-%s-%s.%s", l.Project.ID, l.GeneratedAt.Format("20060102"), f)
}

// Render writes the ledger to w in format f.
func (l *Ledger) Render(w io.Writer, f Format) error {
	switch f {
	case FormatCSV:
		return WriteLedgerCSV(w, l)
	case FormatXLSX:
		return WriteLedgerExcel(w, l)
	case FormatPDF:
		return WriteLedgerPDF(w, l)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}
