package graph

import (
	"context"
	"time"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/types"
)

// Client is the boundary to the graph database. Implementations must be
// safe for concurrent use; writers above this interface rely entirely on
// MERGE semantics for correctness under concurrent callers.
type Client interface {
	// Connect establishes the connection, retrying with exponential
	// backoff while the store is warming up.
	Connect(ctx context.Context) error

	// Close releases the underlying driver.
	Close(ctx context.Context) error

	// Health verifies the store is reachable.
	Health(ctx context.Context) error

	// Read executes a Cypher query in a read transaction.
	Read(ctx context.Context, cypher string, params map[string]any) (Result, error)

	// Write executes a Cypher statement in a write transaction.
	Write(ctx context.Context, cypher string, params map[string]any) (Result, error)
}

// Result holds the records and write counters of one executed statement.
type Result struct {
	Records []map[string]any

	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
}

// Config holds connection options for the graph store.
type Config struct {
	// URI uses the bolt/neo4j URI schemes; encryption is selected by
	// scheme (bolt:// vs bolt+s://).
	URI      string
	Username string
	Password string
	Database string

	MaxConnectionPoolSize   int
	ConnectionTimeout       time.Duration
	MaxTransactionRetryTime time.Duration
}

// DefaultConfig returns connection defaults for a local store.
func DefaultConfig() Config {
	return Config{
		URI:                     "bolt://localhost:7687",
		Username:                "neo4j",
		Password:                "password",
		MaxConnectionPoolSize:   50,
		ConnectionTimeout:       30 * time.Second,
		MaxTransactionRetryTime: 30 * time.Second,
	}
}

// Validate checks the configuration before a driver is constructed.
func (c Config) Validate() error {
	if c.URI == "" {
		return types.NewError(types.GRAPH_INVALID_CONFIG, "URI is required")
	}
	if c.Username == "" {
		return types.NewError(types.GRAPH_INVALID_CONFIG, "username is required")
	}
	if c.Password == "" {
		return types.NewError(types.GRAPH_INVALID_CONFIG, "password is required")
	}
	if c.ConnectionTimeout <= 0 {
		return types.NewError(types.GRAPH_INVALID_CONFIG, "connection timeout must be positive")
	}
	if c.MaxTransactionRetryTime < 0 {
		return types.NewError(types.GRAPH_INVALID_CONFIG, "transaction retry time must not be negative")
	}
	return nil
}
