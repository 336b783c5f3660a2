package docconv

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// renderXlsx emits one section per non-empty sheet holding a markdown table
// whose header is the sheet's first row.
func renderXlsx(src *Source) (string, string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(src.Data))
	if err != nil {
		return "", "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var sections []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			zap.S().Named("docconv").Warnf("could not read %s sheet: %v", sheet, err)
			continue
		}
		table := markdownTable(rows)
		if table == "" {
			continue
		}
		sections = append(sections, "## "+sheet+"\n\n"+table)
	}

	if len(sections) == 0 {
		return "", "", fmt.Errorf("workbook has no data")
	}

	title := strings.TrimSuffix(src.Name, ".xlsx")
	if title == "" {
		title = f.GetSheetList()[0]
	}
	return strings.Join(sections, "\n\n"), title, nil
}

func markdownTable(rows [][]string) string {
	// drop trailing empty rows, excelize keeps them for formatted cells
	for len(rows) > 0 && isEmptyRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return ""
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(row) {
				cell = escapeCell(row[i])
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteByte('\n')
	}

	writeRow(rows[0])
	sb.WriteString("|")
	for i := 0; i < width; i++ {
		sb.WriteString(" --- |")
	}
	sb.WriteByte('\n')
	for _, row := range rows[1:] {
		writeRow(row)
	}

	return strings.TrimRight(sb.String(), "\n")
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
