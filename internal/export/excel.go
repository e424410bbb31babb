package export

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	ledgerSheet    = "Dépenses"
	dateNumFmt     = "dd/mm/yyyy"
	currencyNumFmt = `#,##0 "F CFA"`
)

// ExcelStyle describes the look of a group of cells.
type ExcelStyle struct {
	Bold      bool
	FontColor string
	FillColor string
	Alignment string
	Border    bool
	NumFmt    string
}

var (
	headerStyle   = ExcelStyle{Bold: true, FontColor: "FFFFFF", FillColor: "4472C4", Alignment: "center", Border: true}
	textStyle     = ExcelStyle{Alignment: "left", Border: true}
	dateStyle     = ExcelStyle{Alignment: "left", Border: true, NumFmt: dateNumFmt}
	amountStyle   = ExcelStyle{Alignment: "right", Border: true, NumFmt: currencyNumFmt}
	totalStyle    = ExcelStyle{Bold: true, Alignment: "right", Border: true, NumFmt: currencyNumFmt}
	totalTagStyle = ExcelStyle{Bold: true, Alignment: "left", Border: true}
)

// WriteLedgerExcel writes the ledger as a single-sheet workbook with a frozen,
// filterable header and a total row.
func WriteLedgerExcel(w io.Writer, l *Ledger) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	styles := map[*ExcelStyle]int{}
	for _, s := range []*ExcelStyle{&headerStyle, &textStyle, &dateStyle, &amountStyle, &totalStyle, &totalTagStyle} {
		id, err := createStyle(file, s)
		if err != nil {
			return fmt.Errorf("failed to create style: %w", err)
		}
		styles[s] = id
	}

	widths := make([]int, len(ledgerColumns))
	for i, col := range ledgerColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(ledgerSheet, cell, col); err != nil {
			return fmt.Errorf("failed to set header: %w", err)
		}
		widths[i] = utf8.RuneCountInString(col)
	}
	last, _ := excelize.CoordinatesToCellName(len(ledgerColumns), 1)
	if err := file.SetCellStyle(ledgerSheet, "A1", last, styles[&headerStyle]); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, e := range l.Expenses {
		row := i + 2
		values := []interface{}{e.Date, e.Description, CategoryLabel(e.Category), e.Amount}
		rowStyles := []int{styles[&dateStyle], styles[&textStyle], styles[&textStyle], styles[&amountStyle]}
		for col, val := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := file.SetCellValue(ledgerSheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if err := file.SetCellStyle(ledgerSheet, cell, cell, rowStyles[col]); err != nil {
				return fmt.Errorf("failed to style cell: %w", err)
			}
		}
		if n := utf8.RuneCountInString(e.Description); n > widths[1] {
			widths[1] = n
		}
	}

	totalRow := len(l.Expenses) + 2
	tagCell, _ := excelize.CoordinatesToCellName(2, totalRow)
	sumCell, _ := excelize.CoordinatesToCellName(4, totalRow)
	if err := file.SetCellValue(ledgerSheet, tagCell, "Total"); err != nil {
		return fmt.Errorf("failed to set total: %w", err)
	}
	if err := file.SetCellValue(ledgerSheet, sumCell, l.Total); err != nil {
		return fmt.Errorf("failed to set total: %w", err)
	}
	if len(l.Expenses) > 0 {
		formula := fmt.Sprintf("SUM(D2:D%d)", totalRow-1)
		if err := file.SetCellFormula(ledgerSheet, sumCell, formula); err != nil {
			return fmt.Errorf("failed to set total formula: %w", err)
		}
	}
	_ = file.SetCellStyle(ledgerSheet, tagCell, tagCell, styles[&totalTagStyle])
	_ = file.SetCellStyle(ledgerSheet, sumCell, sumCell, styles[&totalStyle])

	if err := file.SetPanes(ledgerSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	if len(l.Expenses) > 0 {
		if err := file.AutoFilter(ledgerSheet, "A1:"+last, nil); err != nil {
			return fmt.Errorf("failed to add filter: %w", err)
		}
	}

	widths[3] = 18
	for i, width := range widths {
		// Min width 12, max width 60
		width = min(max(width+2, 12), 60)
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = file.SetColWidth(ledgerSheet, col, col, float64(width))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func createStyle(file *excelize.File, cfg *ExcelStyle) (int, error) {
	style := &excelize.Style{
		Font:      &excelize.Font{Bold: cfg.Bold, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: cfg.Alignment, Vertical: "center"},
	}
	if cfg.FontColor != "" {
		style.Font.Color = cfg.FontColor
	}
	if cfg.FillColor != "" {
		style.Fill = excelize.Fill{Type: "pattern", Color: []string{cfg.FillColor}, Pattern: 1}
	}
	if cfg.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "D9D9D9", Style: 1},
			{Type: "top", Color: "D9D9D9", Style: 1},
			{Type: "bottom", Color: "D9D9D9", Style: 1},
			{Type: "right", Color: "D9D9D9", Style: 1},
		}
	}
	if cfg.NumFmt != "" {
		numFmt := cfg.NumFmt
		style.CustomNumFmt = &numFmt
	}
	return file.NewStyle(style)
}
