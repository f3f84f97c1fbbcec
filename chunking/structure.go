package chunking

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fabfab/rag-explorer/domain"
)

const introductionHeading = "Introduction"

var (
	headingPattern   = regexp.MustCompile(`(?m)^(?:#{1,6}[ \t].+|[A-Z][A-Z \t]{3,}:?)\r?$`)
	paragraphPattern = regexp.MustCompile(`\n\s*\n`)
)

type section struct {
	heading    string
	body       string
	start, end int // byte offsets
}

// DocumentStructure splits text at heading lines, either markdown headers or
// ALL-CAPS lines of at least four characters. Text before the first heading
// belongs to an implicit "Introduction" section. Without any heading the text
// is split into blank-line separated paragraphs.
func DocumentStructure(text string) []domain.Chunk {
	sections := headingSections(text)
	if sections == nil {
		sections = paragraphSections(text)
	}

	chunks := make([]domain.Chunk, 0, len(sections))
	for i, s := range sections {
		t := s.heading
		switch {
		case s.body == "":
		case s.heading == "":
			t = s.body
		default:
			t = s.heading + "\n" + s.body
		}
		heading := s.heading
		if heading == "" {
			heading = fmt.Sprintf("Paragraph %d", i+1)
		}
		chunks = append(chunks, domain.Chunk{
			ID:            i,
			Text:          t,
			TokenEstimate: EstimateTokens(t),
			StartOffset:   utf8.RuneCountInString(text[:s.start]),
			EndOffset:     utf8.RuneCountInString(text[:s.end]),
			Strategy:      domain.StrategyDocumentStructure,
			Metadata: map[string]any{
				"heading":       heading,
				"section_index": i,
			},
		})
	}
	return chunks
}

// headingSections returns nil when text has no heading line.
func headingSections(text string) []section {
	matches := headingPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	sections := make([]section, 0, len(matches)+1)
	heading, start, bodyStart := introductionHeading, 0, 0
	for _, m := range matches {
		body := strings.TrimSpace(text[bodyStart:m[0]])
		// a heading directly followed by another heading still gets its own
		// chunk; an empty introduction does not
		if body != "" || heading != introductionHeading {
			sections = append(sections, section{heading: heading, body: body, start: start, end: m[0]})
		}
		heading = strings.TrimSpace(text[m[0]:m[1]])
		start, bodyStart = m[0], m[1]
	}
	sections = append(sections, section{
		heading: heading,
		body:    strings.TrimSpace(text[bodyStart:]),
		start:   start,
		end:     len(text),
	})
	return sections
}

func paragraphSections(text string) []section {
	var sections []section
	add := func(from, to int) {
		raw := text[from:to]
		rest := strings.TrimLeftFunc(raw, unicode.IsSpace)
		trimmed := strings.TrimRightFunc(rest, unicode.IsSpace)
		if trimmed == "" {
			return
		}
		s := from + len(raw) - len(rest)
		sections = append(sections, section{body: trimmed, start: s, end: s + len(trimmed)})
	}

	prev := 0
	for _, m := range paragraphPattern.FindAllStringIndex(text, -1) {
		add(prev, m[0])
		prev = m[1]
	}
	add(prev, len(text))
	return sections
}
