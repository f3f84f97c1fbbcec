package ingestion

import (
	"path/filepath"
	"regexp"
	"strings"
)

const maxCollectionBase = 50

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// CollectionName derives the index collection name of an uploaded file.
func CollectionName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" {
		base = ""
	}
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	name := unsafeNameChars.ReplaceAllString(base, "_")
	if len(name) > maxCollectionBase {
		name = name[:maxCollectionBase]
	}
	if name == "" {
		return "rag_document"
	}
	return "rag_" + name
}
