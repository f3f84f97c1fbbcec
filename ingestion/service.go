package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fabfab/rag-explorer/chunking"
	"github.com/fabfab/rag-explorer/domain"
	"github.com/fabfab/rag-explorer/embeddings"
	"github.com/fabfab/rag-explorer/knowledge"
	"github.com/fabfab/rag-explorer/vectorstore"
)

const (
	DefaultMaxUploadBytes = 10_000_000
	DefaultIndexStrategy  = domain.StrategySemantic
)

type Config struct {
	MaxUploadBytes int64
	Chunking       chunking.Params
}

type Service struct {
	segmenter *chunking.Segmenter
	embedder  embeddings.Embedder
	index     vectorstore.Index
	driver    neo4j.DriverWithContext
	logger    *log.Logger
	cfg       Config
}

// NewService wires the write path. driver may be nil, in which case the
// knowledge graph is not maintained.
func NewService(segmenter *chunking.Segmenter, embedder embeddings.Embedder, index vectorstore.Index, driver neo4j.DriverWithContext, logger *log.Logger, cfg Config) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	return &Service{
		segmenter: segmenter,
		embedder:  embedder,
		index:     index,
		driver:    driver,
		logger:    logger,
		cfg:       cfg,
	}
}

type AnalyzeRequest struct {
	Filename      string
	Data          []byte
	ChunkTokens   int
	AutoIndex     bool
	IndexStrategy string
}

type AnalyzeResponse struct {
	ID              string              `json:"analysis_id"`
	Filename        string              `json:"filename"`
	Format          DocumentFormat      `json:"file_format"`
	Collection      string              `json:"collection_name"`
	TotalChars      int                 `json:"total_chars"`
	TotalWords      int                 `json:"total_words"`
	Indexed         bool                `json:"indexed"`
	IndexedStrategy domain.Strategy     `json:"indexed_strategy,omitempty"`
	IndexedChunks   int                 `json:"indexed_chunks"`
	Strategies      []chunking.Analysis `json:"strategies"`
}

// Analyze extracts the text of one file, runs every chunking strategy over it
// and, when requested, indexes the chunks of the chosen strategy. Indexing
// failures are logged and reported through Indexed rather than failing the
// analysis.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	if len(req.Data) == 0 {
		return AnalyzeResponse{}, fmt.Errorf("file is empty: %w", domain.ErrInvalidInput)
	}
	if int64(len(req.Data)) > s.cfg.MaxUploadBytes {
		return AnalyzeResponse{}, fmt.Errorf("file too large, max %d bytes: %w", s.cfg.MaxUploadBytes, domain.ErrInvalidInput)
	}
	if req.ChunkTokens < 0 {
		return AnalyzeResponse{}, fmt.Errorf("chunk size must not be negative: %w", domain.ErrInvalidInput)
	}

	strategy := DefaultIndexStrategy
	if name := strings.TrimSpace(req.IndexStrategy); name != "" {
		parsed, ok := domain.ParseStrategy(name)
		if !ok {
			return AnalyzeResponse{}, fmt.Errorf("unknown chunking strategy %q: %w", name, domain.ErrInvalidInput)
		}
		strategy = parsed
	}

	text, format, err := Extract(req.Data, req.Filename)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("extract text: %w: %w", domain.ErrInvalidInput, err)
	}
	if strings.TrimSpace(text) == "" {
		return AnalyzeResponse{}, fmt.Errorf("no text could be extracted from %s: %w", req.Filename, domain.ErrInvalidInput)
	}

	params := s.cfg.Chunking
	if req.ChunkTokens > 0 {
		params.ChunkTokens = req.ChunkTokens
	}

	results, err := s.segmenter.RunAll(ctx, text, params)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("run chunking strategies: %w", err)
	}

	resp := AnalyzeResponse{
		ID:         uuid.NewString(),
		Filename:   req.Filename,
		Format:     format,
		Collection: CollectionName(req.Filename),
		TotalChars: utf8.RuneCountInString(text),
		TotalWords: len(strings.Fields(text)),
		Strategies: results,
	}

	if !req.AutoIndex {
		return resp, nil
	}

	var chunks []domain.Chunk
	for _, r := range results {
		if r.Strategy == strategy {
			chunks = r.Chunks
		}
	}

	if err := s.indexChunks(ctx, resp.Collection, chunks); err != nil {
		s.logger.Printf("indexing %s failed: %v", resp.Collection, err)
		return resp, nil
	}
	resp.Indexed = true
	resp.IndexedStrategy = strategy
	resp.IndexedChunks = len(chunks)
	s.logger.Printf("indexed %s (%d %s chunks)", resp.Collection, len(chunks), strategy)

	if s.driver != nil {
		if err := knowledge.SyncCollection(ctx, s.driver, graphCollection(resp, chunks)); err != nil {
			s.logger.Printf("sync knowledge graph for %s: %v", resp.Collection, err)
		}
	}
	return resp, nil
}

func (s *Service) indexChunks(ctx context.Context, collection string, chunks []domain.Chunk) error {
	if s.embedder == nil {
		return fmt.Errorf("embedder not configured")
	}
	if s.index == nil {
		return fmt.Errorf("index not configured")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("generate embeddings: %w", err)
		}
	}

	records, err := vectorstore.RecordsFromChunks(chunks, vectors)
	if err != nil {
		return err
	}
	if err := s.index.Upsert(ctx, collection, records); err != nil {
		return fmt.Errorf("upsert collection: %w", err)
	}
	return nil
}

func graphCollection(resp AnalyzeResponse, chunks []domain.Chunk) knowledge.Collection {
	nodes := make([]knowledge.Chunk, len(chunks))
	for i, c := range chunks {
		heading, _ := c.Metadata["heading"].(string)
		nodes[i] = knowledge.Chunk{
			ID:      uuid.NewString(),
			Index:   c.ID,
			Text:    c.Text,
			Heading: heading,
		}
	}
	return knowledge.Collection{
		Name:     resp.Collection,
		Document: resp.Filename,
		Format:   string(resp.Format),
		Strategy: string(resp.IndexedStrategy),
		Chunks:   nodes,
	}
}

// Delete removes a collection from the index and, when configured, from the
// knowledge graph.
func (s *Service) Delete(ctx context.Context, name string) (int, error) {
	if s.index == nil {
		return 0, fmt.Errorf("index not configured")
	}
	chunks, err := s.index.Count(ctx, name)
	if err != nil {
		return 0, err
	}
	if err := s.index.Delete(ctx, name); err != nil {
		return 0, err
	}
	s.logger.Printf("deleted collection %s (%d chunks)", name, chunks)
	if s.driver != nil {
		if err := knowledge.DeleteCollection(ctx, s.driver, name); err != nil {
			s.logger.Printf("delete %s from knowledge graph: %v", name, err)
		}
	}
	return chunks, nil
}

// AnalyzeDirectory analyses every supported file below dir with the settings
// of tmpl. Files that fail are logged and skipped.
func (s *Service) AnalyzeDirectory(ctx context.Context, dir string, tmpl AnalyzeRequest) ([]AnalyzeResponse, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}

	entries := make([]string, 0)
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if DetectFormat(d.Name()).known() {
			entries = append(entries, path)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("walk data directory: %w", err)
	}

	if len(entries) == 0 {
		s.logger.Printf("no supported files found in %s", dir)
		return nil, nil
	}

	out := make([]AnalyzeResponse, 0, len(entries))
	for _, path := range entries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Printf("read %s: %v", path, err)
			continue
		}
		req := tmpl
		req.Filename = filepath.Base(path)
		req.Data = data
		resp, err := s.Analyze(ctx, req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			s.logger.Printf("analyze failed for %s: %v", path, err)
			continue
		}
		out = append(out, resp)
	}
	return out, nil
}
