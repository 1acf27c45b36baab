package graph

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/types"
)

// Neo4jClient implements Client against a Neo4j server.
type Neo4jClient struct {
	config Config
	driver neo4j.DriverWithContext
}

// NewNeo4jClient creates a client; Connect must be called before use.
func NewNeo4jClient(config Config) (*Neo4jClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Neo4jClient{config: config}, nil
}

// Connect builds the driver and verifies connectivity, retrying with
// exponential backoff so a store that is still warming up does not fail
// startup. Per-write retries are the caller's decision, not ours.
func (c *Neo4jClient) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(c.config.Username, c.config.Password, "")

	driverConfig := func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = c.config.MaxConnectionPoolSize
		cfg.ConnectionAcquisitionTimeout = c.config.ConnectionTimeout
		cfg.MaxTransactionRetryTime = c.config.MaxTransactionRetryTime
	}

	var lastErr error
	const maxRetries = 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		driver, err := neo4j.NewDriverWithContext(c.config.URI, auth, driverConfig)
		if err == nil {
			if err = driver.VerifyConnectivity(ctx); err == nil {
				c.driver = driver
				return nil
			}
			_ = driver.Close(ctx)
		}
		lastErr = err

		if ctx.Err() != nil {
			return types.WrapError(types.GRAPH_CONNECTION_FAILED,
				"connection attempt cancelled", ctx.Err())
		}

		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.config.ConnectionTimeout {
			delay = c.config.ConnectionTimeout
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.WrapError(types.GRAPH_CONNECTION_FAILED,
				"connection attempt cancelled", ctx.Err())
		}
	}

	return types.NewRetryableError(types.GRAPH_CONNECTION_FAILED,
		fmt.Sprintf("failed to connect after %d attempts", maxRetries), lastErr)
}

// Close releases the driver.
func (c *Neo4jClient) Close(ctx context.Context) error {
	if c.driver == nil {
		return nil
	}
	if err := c.driver.Close(ctx); err != nil {
		return types.WrapError(types.GRAPH_CONNECTION_CLOSED, "failed to close driver", err)
	}
	c.driver = nil
	return nil
}

// Health verifies connectivity on the existing driver.
func (c *Neo4jClient) Health(ctx context.Context) error {
	if c.driver == nil {
		return types.NewError(types.GRAPH_CONNECTION_CLOSED, "driver not connected")
	}
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return types.NewRetryableError(types.GRAPH_CONNECTION_FAILED, "connectivity check failed", err)
	}
	return nil
}

// Read executes cypher in a read transaction.
func (c *Neo4jClient) Read(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return c.run(ctx, cypher, params, neo4j.AccessModeRead)
}

// Write executes cypher in a write transaction.
func (c *Neo4jClient) Write(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return c.run(ctx, cypher, params, neo4j.AccessModeWrite)
}

func (c *Neo4jClient) run(ctx context.Context, cypher string, params map[string]any, mode neo4j.AccessMode) (Result, error) {
	if c.driver == nil {
		return Result{}, types.NewError(types.GRAPH_CONNECTION_CLOSED, "driver not connected")
	}

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.config.Database,
		AccessMode:   mode,
	})
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		neoResult, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := neoResult.Collect(ctx)
		if err != nil {
			return nil, err
		}
		summary, err := neoResult.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return convertResult(records, summary), nil
	}

	var result any
	var err error
	if mode == neo4j.AccessModeRead {
		result, err = session.ExecuteRead(ctx, work)
	} else {
		result, err = session.ExecuteWrite(ctx, work)
	}
	if err != nil {
		code := types.GRAPH_QUERY_FAILED
		if mode == neo4j.AccessModeWrite {
			code = types.GRAPH_WRITE_FAILED
		}
		return Result{}, types.WrapError(code, "statement execution failed", err)
	}

	return result.(Result), nil
}

func convertResult(records []*neo4j.Record, summary neo4j.ResultSummary) Result {
	result := Result{Records: make([]map[string]any, 0, len(records))}

	for _, record := range records {
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = record.Values[i]
		}
		result.Records = append(result.Records, row)
	}

	if summary != nil && summary.Counters() != nil {
		counters := summary.Counters()
		result.NodesCreated = counters.NodesCreated()
		result.NodesDeleted = counters.NodesDeleted()
		result.RelationshipsCreated = counters.RelationshipsCreated()
		result.RelationshipsDeleted = counters.RelationshipsDeleted()
		result.PropertiesSet = counters.PropertiesSet()
	}

	return result
}
