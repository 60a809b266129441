// Package export renders document lists as spreadsheets.
package export

import (
	"fmt"
	"io"

	"epatra/internal/utils"
	"epatra/pkg/types"

	"github.com/xuri/excelize/v2"
)

const (
	SheetDocuments = "Documents"
	ContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type column struct {
	header string
	width  float64
	value  func(d *types.Document) any
}

var columns = []column{
	{"ID", 36, func(d *types.Document) any { return d.ID }},
	{"कार्यालय / Office", 24, func(d *types.Document) any { return utils.PtrString(d.Office) }},
	{"प्राप्तकर्ता / Recipient", 24, func(d *types.Document) any { return utils.PtrString(d.RecipientName) }},
	{"अनुक्रमांक / Serial No.", 16, func(d *types.Document) any { return utils.PtrString(d.SerialNumber) }},
	{"पत्र दिनांक / Letter Date", 16, func(d *types.Document) any { return utils.PtrString(d.LetterDate) }},
	{"प्राप्त दिनांक / Received Date", 16, func(d *types.Document) any { return utils.PtrString(d.ReceivedDate) }},
	{"लेखक / Author", 20, func(d *types.Document) any { return utils.PtrString(d.Author) }},
	{"पत्र प्रकार / Letter Type", 18, func(d *types.Document) any { return utils.PtrString(d.LetterType) }},
	{"विषय / Subject", 40, func(d *types.Document) any { return utils.PtrString(d.Subject) }},
	{"मुद्दा / Topic", 30, func(d *types.Document) any { return utils.PtrString(d.Topic) }},
	{"मोबाईल / Mobile", 16, func(d *types.Document) any { return utils.PtrString(d.Mobile) }},
	{"दस्तऐवज संख्या / Documents", 12, func(d *types.Document) any { return utils.PtrString(d.DocumentCount) }},
	{"स्थिती / Status", 12, func(d *types.Document) any { return string(d.Status) }},
	{"OCR %", 10, func(d *types.Document) any {
		if d.OCRConfidence == nil {
			return ""
		}
		return *d.OCRConfidence
	}},
	{"मूळ फाईल / Original File", 30, func(d *types.Document) any { return d.OriginalName }},
	{"तयार / Created", 20, func(d *types.Document) any { return d.CreatedAt.Format("2006-01-02 15:04") }},
}

// Headers returns the bilingual column headers in sheet order.
func Headers() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.header
	}
	return out
}

// WriteDocuments writes one header row followed by one row per document.
func WriteDocuments(w io.Writer, docs []*types.Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetDocuments); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, c := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetDocuments, cell, c.header); err != nil {
			return fmt.Errorf("failed to write header %s: %w", cell, err)
		}

		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetDocuments, name, name, c.width); err != nil {
			return fmt.Errorf("failed to size column %s: %w", name, err)
		}
	}

	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(SheetDocuments, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for r, doc := range docs {
		for i, c := range columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if err := f.SetCellValue(SheetDocuments, cell, c.value(doc)); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(SheetDocuments, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header row: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	return nil
}

// Filename names an export by its timestamp.
func Filename(stamp string) string {
	return fmt.Sprintf("epatra-documents-%s.xlsx", stamp)
}
