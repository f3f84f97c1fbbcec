package domain

// Strategy names a chunk segmentation strategy.
type Strategy string

const (
	StrategyFixedSize         Strategy = "fixed_size"
	StrategySentenceBased     Strategy = "sentence_based"
	StrategySemantic          Strategy = "semantic"
	StrategyDocumentStructure Strategy = "document_structure"
)

// Strategies lists the segmentation strategies in their canonical order.
var Strategies = []Strategy{
	StrategyFixedSize,
	StrategySentenceBased,
	StrategySemantic,
	StrategyDocumentStructure,
}

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (Strategy, bool) {
	for _, s := range Strategies {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

// Chunk is a contiguous span of a document produced by one strategy. Offsets
// are rune positions in the source text, EndOffset exclusive.
type Chunk struct {
	ID            int            `json:"id"`
	Text          string         `json:"text"`
	TokenEstimate int            `json:"token_count"`
	StartOffset   int            `json:"start_char"`
	EndOffset     int            `json:"end_char"`
	Strategy      Strategy       `json:"strategy"`
	Metadata      map[string]any `json:"metadata"`
}

// RetrievedChunk is a chunk returned by a similarity query. SimilarityScore is
// in [0,1] where 1 means identical direction.
type RetrievedChunk struct {
	ChunkID          int               `json:"chunk_id"`
	Text             string            `json:"text"`
	SimilarityScore  float64           `json:"similarity_score"`
	SourceCollection string            `json:"source_collection"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}
