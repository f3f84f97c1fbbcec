// Package knowledge mirrors indexed collections into a Neo4j provenance graph:
// (:Document)-[:HAS_COLLECTION]->(:Collection)-[:HAS_CHUNK]->(:Chunk).
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Collection struct {
	Name     string
	Document string
	Format   string
	Strategy string
	Chunks   []Chunk
}

type Chunk struct {
	ID      string
	Index   int
	Text    string
	Heading string
}

// SyncCollection writes one collection and replaces its prior chunk nodes in
// a single write transaction.
func SyncCollection(ctx context.Context, driver neo4j.DriverWithContext, col Collection) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}
	if col.Name == "" {
		return fmt.Errorf("collection name is empty")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"name":     col.Name,
		"document": col.Document,
		"format":   col.Format,
		"strategy": col.Strategy,
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (d:Document {name: $document})
			SET d.format = $format,
			    d.updated_at = datetime()
			MERGE (c:Collection {name: $name})
			SET c.strategy = $strategy,
			    c.updated_at = datetime()
		`, params); err != nil {
			return nil, fmt.Errorf("upsert collection node: %w", err)
		}

		// a collection belongs to exactly one document
		if _, err := tx.Run(ctx, `
			MATCH (:Document)-[r:HAS_COLLECTION]->(c:Collection {name: $name})
			DELETE r
		`, params); err != nil {
			return nil, fmt.Errorf("remove stale document relation: %w", err)
		}
		if _, err := tx.Run(ctx, `
			MATCH (d:Document {name: $document}), (c:Collection {name: $name})
			MERGE (d)-[:HAS_COLLECTION]->(c)
		`, params); err != nil {
			return nil, fmt.Errorf("link collection to document: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (c:Collection {name: $name})-[:HAS_CHUNK]->(ch:Chunk)
			DETACH DELETE ch
		`, params); err != nil {
			return nil, fmt.Errorf("clear existing chunk nodes: %w", err)
		}

		for _, chunk := range col.Chunks {
			if _, err := tx.Run(ctx, `
				MATCH (c:Collection {name: $name})
				CREATE (ch:Chunk {id: $chunk_id, index: $chunk_index, text: $chunk_text, heading: $chunk_heading})
				CREATE (c)-[:HAS_CHUNK {order: $chunk_index}]->(ch)
			`, map[string]any{
				"name":          col.Name,
				"chunk_id":      chunk.ID,
				"chunk_index":   chunk.Index,
				"chunk_text":    chunk.Text,
				"chunk_heading": chunk.Heading,
			}); err != nil {
				return nil, fmt.Errorf("create chunk node %d: %w", chunk.Index, err)
			}
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document)
			WHERE NOT (d)-[:HAS_COLLECTION]->(:Collection)
			DELETE d
		`, nil); err != nil {
			return nil, fmt.Errorf("cleanup orphan documents: %w", err)
		}

		return nil, nil
	})
	return err
}

// DeleteCollection removes a collection and its chunks. A document left
// without collections is removed too.
func DeleteCollection(ctx context.Context, driver neo4j.DriverWithContext, name string) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MATCH (c:Collection {name: $name})
			OPTIONAL MATCH (c)-[:HAS_CHUNK]->(ch:Chunk)
			DETACH DELETE ch, c
		`, map[string]any{"name": name}); err != nil {
			return nil, fmt.Errorf("delete collection node: %w", err)
		}
		if _, err := tx.Run(ctx, `
			MATCH (d:Document)
			WHERE NOT (d)-[:HAS_COLLECTION]->(:Collection)
			DELETE d
		`, nil); err != nil {
			return nil, fmt.Errorf("cleanup orphan documents: %w", err)
		}
		return nil, nil
	})
	return err
}
