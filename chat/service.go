package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/fabfab/rag-explorer/domain"
	"github.com/fabfab/rag-explorer/knowledge"
	"github.com/fabfab/rag-explorer/llm"
	"github.com/fabfab/rag-explorer/prompting"
	"github.com/fabfab/rag-explorer/retrieval"
	"github.com/fabfab/rag-explorer/vectorstore"
)

type Service struct {
	retriever *retrieval.Retriever
	index     vectorstore.Index
	graph     GraphStore
	llm       llm.Client
	logger    *log.Logger
	timeout   time.Duration
}

// GraphStore is the provenance lookup used to annotate answers. It is
// optional.
type GraphStore = knowledge.GraphStore

type Options struct {
	// GenerationTimeout bounds every strategy call on top of the client's own
	// timeout. Zero leaves it to the client.
	GenerationTimeout time.Duration
}

// NewService wires the query and status surfaces. llmClient may be nil, in
// which case Answer reports domain.ErrNotConfigured; graph may be nil.
func NewService(retriever *retrieval.Retriever, index vectorstore.Index, graph GraphStore, llmClient llm.Client, logger *log.Logger, opts Options) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		retriever: retriever,
		index:     index,
		graph:     graph,
		llm:       llmClient,
		logger:    logger,
		timeout:   opts.GenerationTimeout,
	}
}

// Answer retrieves context for the question across the requested collections
// and runs one prompting strategy, or all of them in parallel.
func (s *Service) Answer(ctx context.Context, req Request) (Response, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Response{}, fmt.Errorf("question cannot be empty: %w", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(question) > MaxQuestionRunes {
		return Response{}, fmt.Errorf("question longer than %d characters: %w", MaxQuestionRunes, domain.ErrInvalidInput)
	}
	collections := retrieval.Normalize(req.Collections)
	if len(collections) == 0 {
		return Response{}, fmt.Errorf("at least one collection is required: %w", domain.ErrInvalidInput)
	}
	if req.TopK <= 0 {
		return Response{}, fmt.Errorf("top_k must be positive, got %d: %w", req.TopK, domain.ErrInvalidInput)
	}
	strategy, err := prompting.Lookup(req.Strategy)
	if err != nil {
		return Response{}, err
	}
	if s.llm == nil {
		return Response{}, fmt.Errorf("answer generator: %w", domain.ErrNotConfigured)
	}

	result, err := s.retriever.Retrieve(ctx, question, collections, req.TopK)
	if err != nil {
		return Response{}, err
	}

	confidence, err := retrieval.Score(result.Chunks)
	if err != nil {
		return Response{}, fmt.Errorf("score confidence: %w", err)
	}

	multiDoc := len(collections) > 1
	contextText := prompting.BuildContext(result.Chunks, multiDoc)

	resp := Response{
		Question:        question,
		RetrievedChunks: result.Chunks,
		ContextUsed:     contextText,
		Confidence:      confidence,
		MultiDoc:        multiDoc,
		Sources:         collections,
		Provenance:      s.provenance(ctx, result.Chunks),
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, Failure{Collection: f.Collection, Error: f.Err.Error()})
	}

	if req.RunAllStrategies {
		resp.Mode = ModeAllStrategies
		results, err := s.generateAll(ctx, prompting.Build(contextText, question, req.Role))
		if err != nil {
			return Response{}, err
		}
		resp.Results = results
		return resp, nil
	}

	resp.Mode = ModeSingleStrategy
	spec, err := prompting.BuildOne(strategy, contextText, question, req.Role)
	if err != nil {
		return Response{}, err
	}
	res := s.generate(ctx, spec)
	if res.Err != nil {
		return Response{}, res.Err
	}
	resp.Results = []StrategyResult{res}
	return resp, nil
}

// generateAll dispatches every spec concurrently. A failing strategy is
// recorded in its own slot; the slice keeps the order of specs.
func (s *Service) generateAll(ctx context.Context, specs []prompting.Spec) ([]StrategyResult, error) {
	results := make([]StrategyResult, len(specs))

	var g errgroup.Group
	for i, spec := range specs {
		g.Go(func() error {
			results[i] = s.generate(ctx, spec)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.Err != nil {
			s.logger.Printf("strategy %s failed: %v", r.Strategy, r.Err)
		}
	}
	return results, nil
}

func (s *Service) generate(ctx context.Context, spec prompting.Spec) StrategyResult {
	res := StrategyResult{
		Strategy:     spec.Strategy,
		Meta:         spec.Meta,
		SystemPrompt: spec.SystemPrompt,
		UserPrompt:   spec.UserPrompt,
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	completion, err := s.llm.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: spec.SystemPrompt},
		{Role: llm.RoleUser, Content: spec.UserPrompt},
	})
	if err != nil {
		res.Err = &domain.GenerationError{Strategy: string(spec.Strategy), Err: err}
		res.Error = res.Err.Error()
		return res
	}

	res.Answer = strings.TrimSpace(completion.Answer)
	res.Model = completion.Model
	res.Usage = completion.Usage
	res.TokensUsed = completion.Usage.TotalTokens
	return res
}

func (s *Service) provenance(ctx context.Context, chunks []domain.RetrievedChunk) map[string]knowledge.Insight {
	if s.graph == nil || len(chunks) == 0 {
		return nil
	}

	names := make([]string, 0, len(chunks))
	for _, c := range chunks {
		names = append(names, c.SourceCollection)
	}

	insights, err := s.graph.CollectionInsights(ctx, retrieval.Normalize(names))
	if err != nil {
		s.logger.Printf("graph insights error: %v", err)
		return nil
	}
	if len(insights) == 0 {
		return nil
	}
	return insights
}

// Status reports whether answers can be generated and what is indexed.
func (s *Service) Status(ctx context.Context) (Status, error) {
	status := Status{LLMConfigured: s.llm != nil, Collections: []vectorstore.Collection{}}
	if s.index == nil {
		return status, nil
	}

	cols, err := s.index.List(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("list collections: %w", err)
	}
	if cols != nil {
		status.Collections = cols
	}
	return status, nil
}

// Prompts renders every prompting strategy for a caller supplied context
// without calling the generator.
func (s *Service) Prompts(contextText, question, role string) (PromptPreview, error) {
	if strings.TrimSpace(contextText) == "" {
		return PromptPreview{}, fmt.Errorf("context cannot be empty: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(question) == "" {
		return PromptPreview{}, fmt.Errorf("question cannot be empty: %w", domain.ErrInvalidInput)
	}

	preview := contextText
	if utf8.RuneCountInString(preview) > contextPreviewRunes {
		preview = string([]rune(preview)[:contextPreviewRunes]) + "..."
	}

	return PromptPreview{
		Question:       question,
		ContextPreview: preview,
		Strategies:     prompting.Build(contextText, question, role),
	}, nil
}
