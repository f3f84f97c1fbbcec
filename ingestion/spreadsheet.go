package ingestion

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractXLSX renders every non-empty sheet as a "[Sheet: name]" block with
// one line per row and the non-empty cells separated by " | ".
func extractXLSX(data []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("could not read Excel: %w", err)
	}
	defer book.Close()

	names := book.GetSheetList()
	sheets := make([]string, 0, len(names))
	for _, name := range names {
		rows, err := book.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("could not read Excel sheet %s: %w", name, err)
		}

		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				if cell != "" {
					cells = append(cells, cell)
				}
			}
			line := strings.Join(cells, " | ")
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		sheets = append(sheets, fmt.Sprintf("[Sheet: %s]\n%s", name, strings.Join(lines, "\n")))
	}
	return strings.Join(sheets, "\n\n"), nil
}
