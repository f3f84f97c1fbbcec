package ingestion

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// documentXML mirrors the parts of word/document.xml that carry text.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

var slidePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func openArchive(data []byte) (*zip.Reader, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open office archive: %w", err)
	}
	return reader, nil
}

func readEntry(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file.Name, err)
	}
	return content, nil
}

// extractDOCX returns the non-empty paragraphs of the document separated by
// blank lines.
func extractDOCX(data []byte) (string, error) {
	reader, err := openArchive(data)
	if err != nil {
		return "", fmt.Errorf("could not read DOCX: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		content, err := readEntry(file)
		if err != nil {
			return "", fmt.Errorf("could not read DOCX: %w", err)
		}

		var doc documentXML
		if err := xml.Unmarshal(content, &doc); err != nil {
			return "", fmt.Errorf("could not read DOCX: %w", err)
		}

		paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
		for _, para := range doc.Body.Paragraphs {
			var sb strings.Builder
			for _, r := range para.Runs {
				for _, t := range r.Text {
					sb.WriteString(t.Content)
				}
			}
			if p := strings.TrimSpace(sb.String()); p != "" {
				paragraphs = append(paragraphs, p)
			}
		}
		return strings.Join(paragraphs, "\n\n"), nil
	}
	return "", errors.New("could not read DOCX: word/document.xml is missing")
}

// extractPPTX labels the text of every slide with its number.
func extractPPTX(data []byte) (string, error) {
	reader, err := openArchive(data)
	if err != nil {
		return "", fmt.Errorf("could not read PPTX: %w", err)
	}

	type slide struct {
		number int
		file   *zip.File
	}
	var slides []slide
	for _, file := range reader.File {
		m := slidePattern.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{number: n, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	parts := make([]string, 0, len(slides))
	for _, s := range slides {
		content, err := readEntry(s.file)
		if err != nil {
			return "", fmt.Errorf("could not read PPTX: %w", err)
		}
		lines, err := drawingText(content)
		if err != nil {
			return "", fmt.Errorf("could not read PPTX slide %d: %w", s.number, err)
		}
		if len(lines) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("[Slide %d]\n%s", s.number, strings.Join(lines, "\n")))
	}
	return strings.Join(parts, "\n\n"), nil
}

// drawingText collects the text runs of every <a:p> paragraph in a slide.
func drawingText(content []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	var (
		lines   []string
		current strings.Builder
		inText  bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if line := strings.TrimSpace(current.String()); line != "" {
					lines = append(lines, line)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return lines, nil
}
