package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fabfab/rag-explorer/api"
	"github.com/fabfab/rag-explorer/chat"
	"github.com/fabfab/rag-explorer/ingestion"
	"github.com/fabfab/rag-explorer/retrieval"
)

var (
	analyzeChunkTokens int
	analyzeStrategy    string
	analyzeNoIndex     bool
	analyzeJSON        bool

	askCollections []string
	askFiles       []string
	askTopK        int
	askStrategy    string
	askRole        string
	askAll         bool
	askJSON        bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file or directory>",
	Short: "Compare the chunking strategies on a document and index it",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from indexed collections",
	Long: `Retrieves the best matching chunks across the named collections and
answers with one prompting strategy, or all four with --all.

With the memory store nothing survives between runs; pass --file to index
documents before asking.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show generator configuration and indexed collections",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <collection>",
	Short: "Delete an indexed collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeChunkTokens, "chunk-size", 0, "target tokens per fixed-size chunk")
	analyzeCmd.Flags().StringVar(&analyzeStrategy, "strategy", "", "chunking strategy to index (default semantic)")
	analyzeCmd.Flags().BoolVar(&analyzeNoIndex, "no-index", false, "only compare strategies")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output the full analysis as JSON")

	askCmd.Flags().StringSliceVarP(&askCollections, "collection", "c", nil, "collection to search (repeatable or comma separated)")
	askCmd.Flags().StringSliceVarP(&askFiles, "file", "f", nil, "document to index before asking")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", chat.DefaultTopK, "number of chunks to retrieve")
	askCmd.Flags().StringVar(&askStrategy, "strategy", "", "prompting strategy (default chain_of_thought)")
	askCmd.Flags().StringVar(&askRole, "role", "", "expert role for the role_based strategy")
	askCmd.Flags().BoolVar(&askAll, "all", false, "run all four prompting strategies")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the response as JSON")

	rootCmd.AddCommand(serveCmd, analyzeCmd, askCmd, statusCmd, deleteCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(a.chat, a.ingestion, cfg.MaxUploadBytes, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s (store %s)", cfg.HTTPAddr, cfg.Store.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := ingestion.AnalyzeRequest{
		ChunkTokens:   analyzeChunkTokens,
		AutoIndex:     !analyzeNoIndex,
		IndexStrategy: analyzeStrategy,
	}

	info, err := os.Stat(args[0])
	if err != nil {
		return err
	}

	var results []ingestion.AnalyzeResponse
	if info.IsDir() {
		results, err = a.ingestion.AnalyzeDirectory(ctx, args[0], req)
		if err != nil {
			return err
		}
	} else {
		req.Filename = args[0]
		req.Data, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		resp, err := a.ingestion.Analyze(ctx, req)
		if err != nil {
			return err
		}
		results = append(results, resp)
	}

	if analyzeJSON {
		return printJSON(cmd, results)
	}
	for _, r := range results {
		printAnalysis(cmd, r)
	}
	return nil
}

func printAnalysis(cmd *cobra.Command, r ingestion.AnalyzeResponse) {
	cmd.Printf("%s (%s): %d chars, %d words\n", r.Filename, r.Format, r.TotalChars, r.TotalWords)
	for _, s := range r.Strategies {
		cmd.Printf("  %-20s %4d chunks  avg %6.1f tokens\n", s.Strategy, s.ChunkCount, s.AvgTokens)
	}
	if r.Indexed {
		cmd.Printf("  indexed %d %s chunks as %s\n", r.IndexedChunks, r.IndexedStrategy, r.Collection)
	}
	cmd.Println()
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	collections := retrieval.Normalize(askCollections)
	for _, path := range askFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		resp, err := a.ingestion.Analyze(ctx, ingestion.AnalyzeRequest{Filename: path, Data: data, AutoIndex: true})
		if err != nil {
			return err
		}
		if !resp.Indexed {
			return fmt.Errorf("indexing %s failed", path)
		}
		collections = append(collections, resp.Collection)
	}

	resp, err := a.chat.Answer(ctx, chat.Request{
		Question:         strings.Join(args, " "),
		Collections:      collections,
		TopK:             askTopK,
		RunAllStrategies: askAll,
		Strategy:         askStrategy,
		Role:             askRole,
	})
	if err != nil {
		return err
	}

	if askJSON {
		return printJSON(cmd, resp)
	}

	cmd.Printf("Confidence: %.1f (%s)\n", resp.Confidence.Score, resp.Confidence.Label)
	cmd.Println(resp.Confidence.Explanation)
	cmd.Println()
	for _, r := range resp.Results {
		cmd.Printf("== %s ==\n", r.Meta.Name)
		if r.Err != nil {
			cmd.Printf("error: %v\n\n", r.Err)
			continue
		}
		cmd.Println(r.Answer)
		cmd.Printf("(%s, %d tokens)\n\n", r.Model, r.TokensUsed)
	}
	cmd.Println("Sources:")
	for i, c := range resp.RetrievedChunks {
		cmd.Printf("  [%d] %s #%d (%.4f)\n", i+1, c.SourceCollection, c.ChunkID, c.SimilarityScore)
	}
	for _, f := range resp.Failures {
		cmd.Printf("  skipped %s: %s\n", f.Collection, f.Error)
	}
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.chat.Status(cmd.Context())
	if err != nil {
		return err
	}

	cmd.Printf("LLM configured: %t\n", status.LLMConfigured)
	if len(status.Collections) == 0 {
		cmd.Println("No collections indexed.")
		return nil
	}
	for _, c := range status.Collections {
		cmd.Printf("  %s (%d chunks)\n", c.Name, c.Chunks)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	chunks, err := a.ingestion.Delete(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	cmd.Printf("deleted %s (%d chunks)\n", args[0], chunks)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
