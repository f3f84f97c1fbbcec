package retrieval

import (
	"fmt"
	"math"

	"github.com/fabfab/rag-explorer/domain"
)

const (
	LabelHigh    = "High"
	LabelMedium  = "Medium"
	LabelLow     = "Low"
	LabelVeryLow = "Very Low"
)

// Confidence rates how well the retrieved chunks cover a question. Score is a
// percentage; TopScore and AvgScore are the underlying similarities expressed
// as percentages with one decimal.
type Confidence struct {
	Score       float64 `json:"score"`
	Label       string  `json:"label"`
	Color       string  `json:"color"`
	Explanation string  `json:"explanation"`
	TopScore    float64 `json:"top_score"`
	AvgScore    float64 `json:"avg_score"`
}

type band struct {
	min         float64
	label       string
	color       string
	explanation string
}

// bands are checked in order; the lower bound is inclusive.
var bands = []band{
	{75, LabelHigh, "#10b981", "The document strongly covers this topic."},
	{50, LabelMedium, "#f59e0b", "The document partially covers this topic."},
	{30, LabelLow, "#ef4444", "The document may not fully answer this question."},
	{math.Inf(-1), LabelVeryLow, "#6b7280", "This question may be outside the document's scope."},
}

// Score weighs the top similarity at 60% and the mean at 40%. chunks must be
// non-empty and ordered by descending similarity.
func Score(chunks []domain.RetrievedChunk) (Confidence, error) {
	if len(chunks) == 0 {
		return Confidence{}, fmt.Errorf("score confidence of no chunks: %w", domain.ErrInvalidInput)
	}

	top := chunks[0].SimilarityScore
	total := 0.0
	for _, c := range chunks {
		total += c.SimilarityScore
	}
	avg := total / float64(len(chunks))

	weighted := 0.6*top + 0.4*avg
	pct := round1(weighted * 100)

	b := bands[len(bands)-1]
	for _, candidate := range bands {
		if pct >= candidate.min {
			b = candidate
			break
		}
	}

	return Confidence{
		Score:       pct,
		Label:       b.label,
		Color:       b.color,
		Explanation: fmt.Sprintf("Top chunk matched at %.1f%%. %s", top*100, b.explanation),
		TopScore:    round1(top * 100),
		AvgScore:    round1(avg * 100),
	}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
