package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Insight describes where a collection came from.
type Insight struct {
	Document   string   `json:"document"`
	Format     string   `json:"format,omitempty"`
	Strategy   string   `json:"strategy,omitempty"`
	ChunkCount int      `json:"chunk_count"`
	Siblings   []string `json:"siblings,omitempty"`
}

// GraphStore looks up provenance for indexed collections.
type GraphStore interface {
	CollectionInsights(ctx context.Context, names []string) (map[string]Insight, error)
}

type Neo4jGraphStore struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jGraphStore(driver neo4j.DriverWithContext) *Neo4jGraphStore {
	return &Neo4jGraphStore{driver: driver}
}

func (s *Neo4jGraphStore) CollectionInsights(ctx context.Context, names []string) (map[string]Insight, error) {
	if s.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if len(names) == 0 {
		return map[string]Insight{}, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (d:Document)-[:HAS_COLLECTION]->(c:Collection)
		WHERE c.name IN $names
		OPTIONAL MATCH (c)-[:HAS_CHUNK]->(ch:Chunk)
		OPTIONAL MATCH (d)-[:HAS_COLLECTION]->(sibling:Collection)
		WHERE sibling.name <> c.name
		RETURN c.name AS name,
		       d.name AS document,
		       d.format AS format,
		       c.strategy AS strategy,
		       count(DISTINCT ch) AS chunkCount,
		       collect(DISTINCT sibling.name) AS siblings
	`, map[string]any{"names": names})
	if err != nil {
		return nil, fmt.Errorf("run neo4j insights query: %w", err)
	}

	insights := make(map[string]Insight, len(names))
	for result.Next(ctx) {
		record := result.Record()
		nameVal, _ := record.Get("name")
		name, ok := nameVal.(string)
		if !ok {
			continue
		}
		documentVal, _ := record.Get("document")
		formatVal, _ := record.Get("format")
		strategyVal, _ := record.Get("strategy")
		countVal, _ := record.Get("chunkCount")
		siblingsVal, _ := record.Get("siblings")

		insights[name] = Insight{
			Document:   asString(documentVal),
			Format:     asString(formatVal),
			Strategy:   asString(strategyVal),
			ChunkCount: asInt(countVal),
			Siblings:   convertStringSlice(siblingsVal),
		}
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("neo4j insights result error: %w", err)
	}

	return insights, nil
}

var _ GraphStore = (*Neo4jGraphStore)(nil)

func asString(value any) string {
	s, _ := value.(string)
	return s
}

func asInt(value any) int {
	switch v := value.(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	}
	return 0
}

func convertStringSlice(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
