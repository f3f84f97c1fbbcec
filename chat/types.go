package chat

import (
	"github.com/fabfab/rag-explorer/domain"
	"github.com/fabfab/rag-explorer/knowledge"
	"github.com/fabfab/rag-explorer/llm"
	"github.com/fabfab/rag-explorer/prompting"
	"github.com/fabfab/rag-explorer/retrieval"
	"github.com/fabfab/rag-explorer/vectorstore"
)

const (
	ModeAllStrategies   = "all_strategies"
	ModeSingleStrategy  = "single_strategy"
	DefaultTopK         = 3
	MaxQuestionRunes    = 4000
	contextPreviewRunes = 300
)

type Request struct {
	Question         string
	Collections      []string
	TopK             int
	RunAllStrategies bool
	Strategy         string
	Role             string
}

// StrategyResult is the outcome of one prompting strategy. Exactly one of
// Answer and Error is set.
type StrategyResult struct {
	Strategy     prompting.Strategy `json:"strategy"`
	Meta         prompting.Meta     `json:"meta"`
	SystemPrompt string             `json:"system_prompt"`
	UserPrompt   string             `json:"user_prompt"`
	Answer       string             `json:"answer,omitempty"`
	Model        string             `json:"model,omitempty"`
	Usage        llm.Usage          `json:"usage"`
	TokensUsed   int                `json:"tokens_used"`
	Error        string             `json:"error,omitempty"`

	Err error `json:"-"`
}

type Failure struct {
	Collection string `json:"collection"`
	Error      string `json:"error"`
}

type Response struct {
	Question        string                       `json:"question"`
	RetrievedChunks []domain.RetrievedChunk      `json:"retrieved_chunks"`
	ContextUsed     string                       `json:"context_used"`
	Mode            string                       `json:"mode"`
	Results         []StrategyResult             `json:"results"`
	Confidence      retrieval.Confidence         `json:"confidence"`
	MultiDoc        bool                         `json:"multi_doc"`
	Sources         []string                     `json:"sources"`
	Failures        []Failure                    `json:"partial_failures,omitempty"`
	Provenance      map[string]knowledge.Insight `json:"provenance,omitempty"`
}

type Status struct {
	LLMConfigured bool                     `json:"llm_configured"`
	Collections   []vectorstore.Collection `json:"available_collections"`
}

type PromptPreview struct {
	Question       string           `json:"question"`
	ContextPreview string           `json:"context_preview"`
	Strategies     []prompting.Spec `json:"strategies"`
}
