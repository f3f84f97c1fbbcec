package ingestion

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/fabfab/rag-explorer/chunking"
	"github.com/fabfab/rag-explorer/domain"
	"github.com/fabfab/rag-explorer/embeddings"
	"github.com/fabfab/rag-explorer/vectorstore"
)

const sample = "# Intro\nRetrieval augmented generation grounds answers. It cites sources.\n\n" +
	"## Chunking\nChunks are compared side by side. Each strategy has trade-offs.\n"

func newTestService(t *testing.T) (*Service, *vectorstore.MemoryIndex) {
	t.Helper()
	embedder := embeddings.NewHashEmbedder(64)
	index := vectorstore.NewMemoryIndex()
	logger := log.New(io.Discard, "", 0)
	svc := NewService(chunking.NewSegmenter(embedder, logger), embedder, index, nil, logger, Config{})
	return svc, index
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]DocumentFormat{
		"notes.md":    FormatMarkdown,
		"REPORT.PDF":  FormatPDF,
		"legacy.doc":  FormatDOCX,
		"deck.ppt":    FormatPPTX,
		"sheet.xlsx":  FormatXLSX,
		"data.csv":    FormatCSV,
		"README":      FormatText,
		"script.yaml": DocumentFormat("yaml"),
	}
	for name, want := range cases {
		assert.Equal(t, want, DetectFormat(name), name)
	}
}

func TestExtractPlainFormats(t *testing.T) {
	text, format, err := Extract([]byte("a,b\n1,2\n"), "table.csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, format)
	assert.Equal(t, "a,b\n1,2\n", text)

	text, format, err = Extract([]byte(`{"a":1}`), "doc.json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, format)
	assert.Equal(t, "{\n  \"a\": 1\n}", text)

	text, _, err = Extract([]byte(`{broken`), "doc.json")
	require.NoError(t, err)
	assert.Equal(t, "{broken", text)

	text, _, err = Extract([]byte("ok\xffdone"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "okdone", text)
}

func TestExtractDOCX(t *testing.T) {
	data := buildZip(t, map[string]string{
		"word/document.xml": `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>
</w:body>
</w:document>`,
	})

	text, format, err := Extract(data, "report.docx")
	require.NoError(t, err)
	assert.Equal(t, FormatDOCX, format)
	assert.Equal(t, "Hello world\n\nSecond paragraph", text)
}

func TestExtractPPTXOrdersSlides(t *testing.T) {
	slide := func(text string) string {
		return `<p:sld xmlns:p="p" xmlns:a="a"><p:cSld><p:spTree><p:sp><p:txBody>` +
			`<a:p><a:r><a:t>` + text + `</a:t></a:r></a:p>` +
			`</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	data := buildZip(t, map[string]string{
		"ppt/slides/slide10.xml": slide("Ten"),
		"ppt/slides/slide2.xml":  slide("Two"),
		"ppt/slides/slide1.xml":  slide("One"),
	})

	text, _, err := Extract(data, "deck.pptx")
	require.NoError(t, err)
	assert.Equal(t, "[Slide 1]\nOne\n\n[Slide 2]\nTwo\n\n[Slide 10]\nTen", text)
}

func TestExtractXLSX(t *testing.T) {
	book := excelize.NewFile()
	defer book.Close()

	require.NoError(t, book.SetSheetRow("Sheet1", "A1", &[]any{"name", "age"}))
	require.NoError(t, book.SetSheetRow("Sheet1", "A2", &[]any{"Ada", 36}))
	require.NoError(t, book.SetCellValue("Sheet1", "A4", "after gap"))
	require.NoError(t, book.SetCellValue("Sheet1", "C4", "last"))
	_, err := book.NewSheet("Empty")
	require.NoError(t, err)
	_, err = book.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, book.SetCellValue("Notes", "B1", "remember"))

	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	text, format, err := Extract(buf.Bytes(), "people.xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)
	assert.Equal(t, "[Sheet: Sheet1]\nname | age\nAda | 36\nafter gap | last\n\n[Sheet: Notes]\nremember", text)
}

func TestExtractFailures(t *testing.T) {
	_, _, err := Extract([]byte("not a pdf"), "broken.pdf")
	assert.Error(t, err)

	_, _, err = Extract([]byte("not a zip"), "broken.docx")
	assert.Error(t, err)

	_, _, err = Extract([]byte("x"), "sheet.xlsx")
	assert.Error(t, err)
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "rag_my_report_v2", CollectionName("my report v2.pdf"))
	assert.Equal(t, "rag_archive_tar", CollectionName("archive.tar.gz"))
	assert.Equal(t, "rag_notes", CollectionName("/tmp/uploads/notes.md"))
	assert.Equal(t, "rag_document", CollectionName(".pdf"))

	long := CollectionName(strings.Repeat("a", 80) + ".txt")
	assert.Equal(t, "rag_"+strings.Repeat("a", 50), long)
}

func TestAnalyzeRunsEveryStrategy(t *testing.T) {
	svc, index := newTestService(t)

	resp, err := svc.Analyze(context.Background(), AnalyzeRequest{Filename: "guide.md", Data: []byte(sample)})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, FormatMarkdown, resp.Format)
	assert.Equal(t, "rag_guide", resp.Collection)
	assert.Equal(t, len([]rune(sample)), resp.TotalChars)
	assert.Equal(t, len(strings.Fields(sample)), resp.TotalWords)
	assert.False(t, resp.Indexed)
	require.Len(t, resp.Strategies, len(domain.Strategies))
	for i, a := range resp.Strategies {
		assert.Equal(t, domain.Strategies[i], a.Strategy)
		assert.NotEmpty(t, a.Chunks)
	}

	cols, err := index.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestAnalyzeAutoIndex(t *testing.T) {
	svc, index := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Analyze(ctx, AnalyzeRequest{
		Filename:      "guide.md",
		Data:          []byte(sample),
		AutoIndex:     true,
		IndexStrategy: "document_structure",
	})
	require.NoError(t, err)
	assert.True(t, resp.Indexed)
	assert.Equal(t, domain.StrategyDocumentStructure, resp.IndexedStrategy)
	assert.Equal(t, 2, resp.IndexedChunks)

	n, err := index.Count(ctx, "rag_guide")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := svc.Delete(ctx, "rag_guide")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	_, err = index.Count(ctx, "rag_guide")
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)

	_, err = svc.Delete(ctx, "rag_guide")
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	svc.cfg.MaxUploadBytes = 16
	ctx := context.Background()

	cases := []AnalyzeRequest{
		{Filename: "empty.txt"},
		{Filename: "big.txt", Data: bytes.Repeat([]byte("a"), 17)},
		{Filename: "a.txt", Data: []byte("text"), IndexStrategy: "bogus"},
		{Filename: "a.txt", Data: []byte("text"), ChunkTokens: -1},
		{Filename: "blank.txt", Data: []byte("   \n ")},
		{Filename: "broken.pdf", Data: []byte("nope")},
	}
	for _, req := range cases {
		_, err := svc.Analyze(ctx, req)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, req.Filename)
	}
}

func TestAnalyzeDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.md"), []byte(sample), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.txt"), []byte("Just one sentence here."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.txt"), []byte("  "), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89, 0x50}, 0o644))

	svc, index := newTestService(t)
	out, err := svc.AnalyzeDirectory(context.Background(), dir, AnalyzeRequest{AutoIndex: true})
	require.NoError(t, err)
	require.Len(t, out, 2)

	cols, err := index.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "rag_one", cols[0].Name)
	assert.Equal(t, "rag_two", cols[1].Name)

	_, err = svc.AnalyzeDirectory(context.Background(), filepath.Join(dir, "missing"), AnalyzeRequest{})
	assert.Error(t, err)
}
