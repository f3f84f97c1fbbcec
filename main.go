package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cobra"

	"github.com/fabfab/rag-explorer/chat"
	"github.com/fabfab/rag-explorer/chunking"
	"github.com/fabfab/rag-explorer/config"
	"github.com/fabfab/rag-explorer/database"
	"github.com/fabfab/rag-explorer/domain"
	"github.com/fabfab/rag-explorer/embeddings"
	"github.com/fabfab/rag-explorer/ingestion"
	"github.com/fabfab/rag-explorer/knowledge"
	"github.com/fabfab/rag-explorer/llm"
	"github.com/fabfab/rag-explorer/retrieval"
	"github.com/fabfab/rag-explorer/vectorstore"
)

var (
	cfg    config.Config
	logger = log.New(os.Stderr, "", log.LstdFlags)
)

var rootCmd = &cobra.Command{
	Use:           "rag-explorer",
	Short:         "Compare chunking and prompting strategies for retrieval augmented generation",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Printf("error: %v", err)
		cancel()
		os.Exit(1)
	}
}

// app holds the services shared by every command.
type app struct {
	index     vectorstore.Index
	ingestion *ingestion.Service
	chat      *chat.Service
	closers   []func()
}

func newApp(ctx context.Context) (*app, error) {
	a := &app{}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder setup: %w", err)
	}

	switch cfg.Store.Backend {
	case config.StoreMemory, "":
		a.index = vectorstore.NewMemoryIndex()
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		dim := embeddings.Dimension(embedder, cfg.Embeddings.Dimension)
		if err := database.EnsureRAGSchema(ctx, pool, dim); err != nil {
			a.Close()
			return nil, err
		}
		a.index = vectorstore.NewPostgresIndex(pool, dim, logger)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}

	var (
		driver neo4j.DriverWithContext
		graph  chat.GraphStore
	)
	if cfg.GraphEnabled {
		driver, err = database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("neo4j connection: %w", err)
		}
		a.closers = append(a.closers, func() { _ = driver.Close(context.Background()) })
		graph = knowledge.NewNeo4jGraphStore(driver)
	}

	client, err := llm.NewClient(cfg)
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		logger.Printf("answer generation disabled: %v", err)
		client = nil
	case err != nil:
		a.Close()
		return nil, fmt.Errorf("llm setup: %w", err)
	}

	a.ingestion = ingestion.NewService(
		chunking.NewSegmenter(embedder, logger),
		embedder,
		a.index,
		driver,
		logger,
		ingestion.Config{
			MaxUploadBytes: cfg.MaxUploadBytes,
			Chunking: chunking.Params{
				ChunkTokens:         cfg.Chunking.ChunkTokens,
				MaxSentences:        cfg.Chunking.MaxSentences,
				SimilarityThreshold: chunking.Threshold(cfg.Chunking.SimilarityThreshold),
				MinChunkSentences:   cfg.Chunking.MinChunkSentences,
			},
		},
	)
	a.chat = chat.NewService(
		retrieval.NewRetriever(a.index, embedder, logger),
		a.index,
		graph,
		client,
		logger,
		chat.Options{GenerationTimeout: cfg.LLM.Timeout},
	)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
