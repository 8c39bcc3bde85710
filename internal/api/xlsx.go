package api

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/valter-silva-au/recall-review/pkg/models"
)

var resultsHeader = []string{
	"Task ID", "Student ID", "Student", "Unit", "Session", "Grade",
	"Mistakes", "Hard errors", "Status", "Approved at", "AI summary",
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>
<Override PartName="/xl/worksheets/sheet1.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>
</Types>`

const rootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>
</Relationships>`

const workbookXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets><sheet name="Results" sheetId="1" r:id="rId1"/></sheets>
</workbook>`

const workbookRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
</Relationships>`

// WriteResultsWorkbook writes a single-sheet .xlsx with one row per report.
// Cells are inline strings so the package needs no shared string table.
func WriteResultsWorkbook(w io.Writer, reports []models.Report) error {
	zw := zip.NewWriter(w)
	parts := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"xl/workbook.xml", workbookXML},
		{"xl/_rels/workbook.xml.rels", workbookRelsXML},
		{"xl/worksheets/sheet1.xml", sheetXML(reports)},
	}
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("creating %s: %w", p.name, err)
		}
		if _, err := io.WriteString(f, p.body); err != nil {
			return fmt.Errorf("writing %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing workbook: %w", err)
	}
	return nil
}

func sheetXML(reports []models.Report) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>`)
	writeRow(&b, 1, resultsHeader)
	for i, r := range reports {
		approved := ""
		if r.IsApproved() {
			approved = r.ApprovedAt.UTC().Format(time.RFC3339)
		}
		writeRow(&b, i+2, []string{
			r.TaskID,
			r.StudentID,
			r.StudentName,
			r.UnitID,
			strconv.Itoa(r.SessionIndex),
			string(r.FinalGradeSuggestion),
			strconv.Itoa(r.MistakeCount),
			strconv.Itoa(r.HardErrorCount()),
			string(r.Status),
			approved,
			r.AISummaryComment,
		})
	}
	b.WriteString(`</sheetData></worksheet>`)
	return b.String()
}

func writeRow(b *strings.Builder, row int, cells []string) {
	fmt.Fprintf(b, `<row r="%d">`, row)
	for col, v := range cells {
		fmt.Fprintf(b, `<c r="%s%d" t="inlineStr"><is><t xml:space="preserve">`, columnName(col), row)
		_ = xml.EscapeText(b, []byte(v))
		b.WriteString(`</t></is></c>`)
	}
	b.WriteString(`</row>`)
}

// columnName converts a zero-based column index to A, B, ..., Z, AA, ...
func columnName(i int) string {
	name := ""
	for i >= 0 {
		name = string(rune('A'+i%26)) + name
		i = i/26 - 1
	}
	return name
}
