package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extract returns the plain text of data together with the detected format.
func Extract(data []byte, filename string) (string, DocumentFormat, error) {
	format := DetectFormat(filename)

	var (
		text string
		err  error
	)
	switch format {
	case FormatPDF:
		text, err = extractPDF(data)
	case FormatDOCX:
		text, err = extractDOCX(data)
	case FormatPPTX:
		text, err = extractPPTX(data)
	case FormatXLSX:
		text, err = extractXLSX(data)
	case FormatJSON:
		text = extractJSON(data)
	default:
		text = decodeText(data)
	}
	if err != nil {
		return "", format, err
	}
	return text, format, nil
}

func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "")
}

func extractJSON(data []byte) string {
	text := decodeText(data)
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(text), "", "  "); err != nil {
		return text
	}
	return buf.String()
}

func extractPDF(data []byte) (text string, err error) {
	// the reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("could not read PDF: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("could not read PDF: %w", err)
	}

	pages := make([]string, 0, doc.NumPage())
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		plain, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract text of page %d: %w", i, err)
		}
		plain = strings.TrimSpace(normalizePlainText(plain))
		if plain == "" {
			continue
		}
		pages = append(pages, fmt.Sprintf("[Page %d]\n%s", i, plain))
	}
	return strings.Join(pages, "\n\n"), nil
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
