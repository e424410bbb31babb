package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"teranga-build/portal/portal-backend/internal/portal"
)

// PDFColor represents an RGB color
type PDFColor struct {
	R, G, B int
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize       string
	Orientation    string // portrait, landscape
	DateFormat     string
	HeaderColor    PDFColor
	AlternateColor PDFColor
	FontFamily     string
	FontSize       float64
	TitleFontSize  float64
	Margin         float64
}

// DefaultPDFOptions returns A4 portrait output.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Orientation:    "portrait",
		DateFormat:     "02/01/2006",
		HeaderColor:    PDFColor{R: 68, G: 114, B: 196},
		AlternateColor: PDFColor{R: 242, G: 242, B: 242},
		FontFamily:     "Arial",
		FontSize:       10,
		TitleFontSize:  16,
		Margin:         15,
	}
}

// document wraps gofpdf with the portal's page layout. The core fonts are
// cp1252, so every string goes through tr.
type document struct {
	pdf     *gofpdf.Fpdf
	options PDFOptions
	tr      func(string) string
}

func newDocument(options PDFOptions, title string) *document {
	orientation := "P"
	if options.Orientation == "landscape" {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", options.PageSize, "")
	pdf.SetMargins(options.Margin, options.Margin+5, options.Margin)
	pdf.SetAutoPageBreak(true, options.Margin+5)

	d := &document{pdf: pdf, options: options}
	cp1252 := pdf.UnicodeTranslatorFromDescriptor("")
	d.tr = func(s string) string {
		// U+202F has no cp1252 code point.
		return cp1252(strings.ReplaceAll(s, "\u202f", " "))
	}
	pdf.SetTitle(title, true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(options.FontFamily, "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	return d
}

func (d *document) title(title, subtitle string, generatedAt time.Time) {
	d.pdf.SetFont(d.options.FontFamily, "B", d.options.TitleFontSize)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.CellFormat(0, 10, d.tr(title), "", 1, "C", false, 0, "")
	if subtitle != "" {
		d.pdf.SetFont(d.options.FontFamily, "", d.options.FontSize+2)
		d.pdf.SetTextColor(80, 80, 80)
		d.pdf.CellFormat(0, 8, d.tr(subtitle), "", 1, "C", false, 0, "")
	}
	d.pdf.SetFont(d.options.FontFamily, "I", d.options.FontSize-1)
	d.pdf.SetTextColor(128, 128, 128)
	d.pdf.CellFormat(0, 6, d.tr("Généré le "+generatedAt.Format(d.options.DateFormat+" 15:04")), "", 1, "C", false, 0, "")
	d.pdf.Ln(6)
}

type summaryItem struct {
	label string
	value string
}

func (d *document) summary(heading string, items []summaryItem) {
	d.pdf.SetFont(d.options.FontFamily, "B", d.options.FontSize+2)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.CellFormat(0, 8, d.tr(heading), "", 1, "L", false, 0, "")
	d.pdf.Ln(2)
	for _, item := range items {
		d.pdf.SetFont(d.options.FontFamily, "B", d.options.FontSize)
		d.pdf.CellFormat(60, 6, d.tr(item.label+" :"), "", 0, "L", false, 0, "")
		d.pdf.SetFont(d.options.FontFamily, "", d.options.FontSize)
		d.pdf.CellFormat(0, 6, d.tr(item.value), "", 1, "L", false, 0, "")
	}
	d.pdf.Ln(6)
}

type column struct {
	label string
	width float64 // share of the printable width
	align string
}

func (d *document) table(columns []column, rows [][]string) {
	pageWidth, _ := d.pdf.GetPageSize()
	left, _, right, bottom := d.pdf.GetMargins()
	available := pageWidth - left - right
	_, pageHeight := d.pdf.GetPageSize()

	widths := make([]float64, len(columns))
	for i, c := range columns {
		widths[i] = c.width * available
	}

	header := func() {
		d.pdf.SetFont(d.options.FontFamily, "B", d.options.FontSize+1)
		d.pdf.SetFillColor(d.options.HeaderColor.R, d.options.HeaderColor.G, d.options.HeaderColor.B)
		d.pdf.SetTextColor(255, 255, 255)
		for i, c := range columns {
			d.pdf.CellFormat(widths[i], 8, d.tr(c.label), "1", 0, "C", true, 0, "")
		}
		d.pdf.Ln(-1)
		d.pdf.SetFont(d.options.FontFamily, "", d.options.FontSize)
		d.pdf.SetTextColor(0, 0, 0)
	}
	header()

	for i, row := range rows {
		if d.pdf.GetY()+7 > pageHeight-bottom {
			d.pdf.AddPage()
			header()
		}
		if i%2 == 1 {
			d.pdf.SetFillColor(d.options.AlternateColor.R, d.options.AlternateColor.G, d.options.AlternateColor.B)
		} else {
			d.pdf.SetFillColor(255, 255, 255)
		}
		for j, val := range row {
			text := d.tr(val)
			for len(text) > 3 && d.pdf.GetStringWidth(text)+2 > widths[j] {
				text = text[:len(text)-4] + "..."
			}
			d.pdf.CellFormat(widths[j], 7, text, "1", 0, columns[j].align, true, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *document) totalLine(label, value string, labelWidth float64) {
	pageWidth, _ := d.pdf.GetPageSize()
	left, _, right, _ := d.pdf.GetMargins()
	available := pageWidth - left - right
	d.pdf.SetFont(d.options.FontFamily, "B", d.options.FontSize)
	d.pdf.CellFormat(labelWidth*available, 8, d.tr(label), "1", 0, "R", false, 0, "")
	d.pdf.CellFormat((1-labelWidth)*available, 8, d.tr(value), "1", 1, "R", false, 0, "")
}

func (d *document) output(w io.Writer) error {
	if err := d.pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

// WriteLedgerPDF writes the ledger as a printable table.
func WriteLedgerPDF(w io.Writer, l *Ledger) error {
	opts := DefaultPDFOptions()
	d := newDocument(opts, "Relevé des dépenses")
	d.title("Relevé des dépenses", l.Project.Name, l.GeneratedAt)

	items := []summaryItem{{"Dépenses", strconv.Itoa(len(l.Expenses))}}
	if l.Project.Budget != nil {
		items = append(items, summaryItem{"Budget", portal.FormatCurrency(*l.Project.Budget)})
	}
	items = append(items, summaryItem{"Total dépensé", portal.FormatCurrency(l.Total)})
	d.summary("Synthèse", items)

	rows := make([][]string, len(l.Expenses))
	for i, e := range l.Expenses {
		rows[i] = []string{
			e.Date.Format(opts.DateFormat),
			e.Description,
			CategoryLabel(e.Category),
			portal.FormatCurrency(e.Amount),
		}
	}
	d.table([]column{
		{"Date", 0.15, "L"},
		{"Description", 0.45, "L"},
		{"Catégorie", 0.18, "L"},
		{"Montant", 0.22, "R"},
	}, rows)
	d.totalLine("Total", portal.FormatCurrency(l.Total), 0.78)

	return d.output(w)
}

// WriteProjectReport writes a one-document status report: schedule, budget
// and the checklist with open prerequisites.
func WriteProjectReport(w io.Writer, overview *portal.ProjectOverview, generatedAt time.Time) error {
	opts := DefaultPDFOptions()
	p := overview.Project
	d := newDocument(opts, "Rapport de projet")
	d.title("Rapport de projet", p.Name, generatedAt)

	items := []summaryItem{
		{"Statut", overview.StatusLabel},
		{"Avancement", fmt.Sprintf("%d %%", overview.ChecklistProgress)},
	}
	if p.Location != nil {
		items = append(items, summaryItem{"Localisation", *p.Location})
	}
	if p.StartDate != nil && p.EndDate != nil {
		items = append(items, summaryItem{"Période", p.StartDate.Format(opts.DateFormat) + " - " + p.EndDate.Format(opts.DateFormat)})
		items = append(items, summaryItem{"Avancement attendu", fmt.Sprintf("%.0f %%", overview.Delay.TimeProgress)})
	}
	if overview.Delay.IsDelayed {
		items = append(items, summaryItem{"Retard", fmt.Sprintf("%d jours", overview.Delay.DelayDays)})
	} else {
		items = append(items, summaryItem{"Retard", "Aucun"})
	}
	if overview.Budget != "" {
		items = append(items, summaryItem{"Budget", overview.Budget})
	}
	items = append(items, summaryItem{"Dépensé", overview.Spent})
	d.summary("Synthèse", items)

	if len(overview.Checklist) > 0 {
		titles := make(map[string]string, len(overview.Checklist))
		for _, entry := range overview.Checklist {
			titles[entry.ID] = entry.Title
		}
		rows := make([][]string, len(overview.Checklist))
		for i, entry := range overview.Checklist {
			state := "A faire"
			if entry.IsCompleted {
				state = "Fait"
			}
			blockers := make([]string, len(entry.BlockedBy))
			for j, id := range entry.BlockedBy {
				blockers[j] = titles[id]
			}
			rows[i] = []string{entry.Title, state, strings.Join(blockers, ", ")}
		}
		d.table([]column{
			{"Tâche", 0.5, "L"},
			{"État", 0.15, "C"},
			{"En attente de", 0.35, "L"},
		}, rows)
	}

	return d.output(w)
}
