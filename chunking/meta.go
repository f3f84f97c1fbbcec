package chunking

import "github.com/fabfab/rag-explorer/domain"

// StrategyMeta describes a strategy for display next to its results.
type StrategyMeta struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Pros        []string `json:"pros"`
	Cons        []string `json:"cons"`
	UseWhen     string   `json:"use_when"`
	Color       string   `json:"color"`
	Icon        string   `json:"icon"`
}

var strategyMeta = map[domain.Strategy]StrategyMeta{
	domain.StrategyFixedSize: {
		Name:        "Fixed-Size Chunking",
		Description: "Splits text into equal token-sized chunks regardless of content.",
		Pros:        []string{"Simple & fast", "Predictable sizes", "Zero compute overhead"},
		Cons:        []string{"May break mid-sentence", "Ignores meaning"},
		UseWhen:     "Large documents, quick baseline RAG",
		Color:       "#6366f1",
		Icon:        "⊞",
	},
	domain.StrategySentenceBased: {
		Name:        "Sentence-Based Chunking",
		Description: "Groups sentences together, respecting natural language boundaries.",
		Pros:        []string{"Meaning preserved", "Clean readable chunks", "No broken sentences"},
		Cons:        []string{"Uneven sizes", "No semantic awareness"},
		UseWhen:     "Articles, policies, clean prose documents",
		Color:       "#10b981",
		Icon:        "≡",
	},
	domain.StrategySemantic: {
		Name:        "Semantic Chunking",
		Description: "Splits where topic changes using embedding similarity between sentences.",
		Pros:        []string{"Best semantic relevance", "Topic-coherent chunks", "Production-grade"},
		Cons:        []string{"Slower (needs embeddings)", "Threshold tuning needed"},
		UseWhen:     "High-accuracy RAG, enterprise search, mixed-topic documents",
		Color:       "#f59e0b",
		Icon:        "◈",
	},
	domain.StrategyDocumentStructure: {
		Name:        "Document-Structure Chunking",
		Description: "Splits by headings, sections, and paragraphs using document hierarchy.",
		Pros:        []string{"Very natural splits", "Preserves hierarchy", "High precision"},
		Cons:        []string{"Needs structured documents", "Fails on unformatted text"},
		UseWhen:     "PDFs, manuals, legal docs, structured reports",
		Color:       "#ef4444",
		Icon:        "⊡",
	},
}

// MetaFor returns the display metadata of strategy, or a zero value for an
// unknown one.
func MetaFor(strategy domain.Strategy) StrategyMeta {
	return strategyMeta[strategy]
}
