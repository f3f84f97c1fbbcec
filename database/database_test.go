package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/rag-explorer/config"
)

func TestEnsureRAGSchemaRejectsInvalidInput(t *testing.T) {
	assert.Error(t, EnsureRAGSchema(context.Background(), nil, 384))
	assert.Error(t, EnsureRAGSchema(context.Background(), nil, 0))
}

func TestDatabaseConnectivity(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database connectivity checks")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPostgresPool(ctx, cfg.PostgresDSN)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, EnsureRAGSchema(ctx, pool, cfg.Embeddings.Dimension))
	// idempotent
	require.NoError(t, EnsureRAGSchema(ctx, pool, cfg.Embeddings.Dimension))

	driver, err := NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	require.NoError(t, err)
	defer func() { assert.NoError(t, driver.Close(ctx)) }()

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer func() { assert.NoError(t, session.Close(ctx)) }()

	result, err := session.Run(ctx, "RETURN 1 AS ok", nil)
	require.NoError(t, err)
	_, err = result.Consume(ctx)
	assert.NoError(t, err)
}
