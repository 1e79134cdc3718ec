// Package graph provides the Memgraph/Neo4j write pipeline: batched node
// upserts, relationship creation between existing nodes, index management,
// sync watermarks and review gating. All access goes over Bolt.
package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/sync/semaphore"
)

// Runner executes Cypher statements and returns result rows as plain maps.
// *Client is the production implementation; processors and services depend on
// this interface so they can be exercised against substitute backends.
type Runner interface {
	Write(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	Read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Config holds graph database configuration
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// MaxConcurrent bounds concurrent driver sessions. The underlying driver
	// calls are blocking; this is the process-wide write throttle.
	MaxConcurrent int
}

// Client wraps the Neo4j driver for Memgraph compatibility
type Client struct {
	driver neo4j.DriverWithContext
	logger ectologger.Logger
	sem    *semaphore.Weighted
}

// NewClient creates a new graph database client
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	uri := fmt.Sprintf("bolt://%s:%d", cfg.Host, cfg.Port)

	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}

	return &Client{
		driver: driver,
		logger: logger,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
	}, nil
}

// Close closes the driver connection
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// VerifyConnectivity checks if the database is reachable
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// Write runs a single Cypher statement in a write transaction and collects
// the result rows.
func (c *Client) Write(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.Write")
	defer span.End()

	return c.run(ctx, neo4j.AccessModeWrite, cypher, params)
}

// Read runs a single Cypher statement in a read transaction and collects the
// result rows.
func (c *Client) Read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.Read")
	defer span.End()

	return c.run(ctx, neo4j.AccessModeRead, cypher, params)
}

func (c *Client) run(ctx context.Context, mode neo4j.AccessMode, cypher string, params map[string]any) ([]map[string]any, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode})
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		var rows []map[string]any
		for result.Next(ctx) {
			record := result.Record()
			row := make(map[string]any, len(record.Keys))
			for _, key := range record.Keys {
				val, _ := record.Get(key)
				row[key] = val
			}
			rows = append(rows, row)
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return rows, nil
	}

	var res any
	var err error
	if mode == neo4j.AccessModeWrite {
		res, err = session.ExecuteWrite(ctx, work)
	} else {
		res, err = session.ExecuteRead(ctx, work)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.([]map[string]any), nil
}
