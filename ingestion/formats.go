// Package ingestion turns uploaded files into text, compares the chunking
// strategies on it and indexes the chosen strategy's chunks.
package ingestion

import (
	"path/filepath"
	"strings"
)

// DocumentFormat names the detected format of an uploaded file.
type DocumentFormat string

const (
	FormatText     DocumentFormat = "txt"
	FormatMarkdown DocumentFormat = "markdown"
	FormatPDF      DocumentFormat = "pdf"
	FormatDOCX     DocumentFormat = "docx"
	FormatPPTX     DocumentFormat = "pptx"
	FormatXLSX     DocumentFormat = "xlsx"
	FormatCSV      DocumentFormat = "csv"
	FormatJSON     DocumentFormat = "json"
)

// DetectFormat infers a format from the file extension. Unknown extensions are
// reported as themselves and read as plain text; no extension means txt.
func DetectFormat(path string) DocumentFormat {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "":
		return FormatText
	case "md", "markdown":
		return FormatMarkdown
	case "pdf":
		return FormatPDF
	case "docx", "doc":
		return FormatDOCX
	case "pptx", "ppt":
		return FormatPPTX
	case "xlsx", "xls":
		return FormatXLSX
	case "csv":
		return FormatCSV
	case "json":
		return FormatJSON
	default:
		return DocumentFormat(ext)
	}
}

// known reports whether the format is one directory ingestion picks up.
func (f DocumentFormat) known() bool {
	switch f {
	case FormatText, FormatMarkdown, FormatPDF, FormatDOCX, FormatPPTX, FormatXLSX, FormatCSV, FormatJSON:
		return true
	}
	return false
}
