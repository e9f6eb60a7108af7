package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/kg/builder"
	"github.com/CedricPei/MAS-RAG/internal/metrics"
	"github.com/CedricPei/MAS-RAG/pkg/circuitbreaker"
	"github.com/CedricPei/MAS-RAG/pkg/config"
	"github.com/CedricPei/MAS-RAG/pkg/logger"
	"github.com/CedricPei/MAS-RAG/pkg/retry"
)

// Client exports dataset lineage to Neo4j.
type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(ctx context.Context, cfg config.Neo4jConfig) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j client initialized", zap.String("uri", cfg.URI))

	return &Client{
		driver:      driver,
		database:    cfg.Database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWrite(ctx context.Context, work func(tx neo4j.ManagedTransaction) error) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)

			_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
				return nil, work(tx)
			})
			return err
		})
	})
}

// EnsureConstraints makes node keys unique per label.
func (c *Client) EnsureConstraints(ctx context.Context) error {
	return c.executeWrite(ctx, func(tx neo4j.ManagedTransaction) error {
		for _, kind := range builder.NodeKinds {
			query := fmt.Sprintf("CREATE CONSTRAINT %s_key IF NOT EXISTS FOR (n:%s) REQUIRE n.key IS UNIQUE",
				kind, kind)
			if _, err := tx.Run(ctx, query, nil); err != nil {
				return fmt.Errorf("failed to create constraint for %s: %w", kind, err)
			}
		}
		return nil
	})
}

// WriteLineage merges every node and relation of l. Re-exporting the same
// dataset is idempotent.
func (c *Client) WriteLineage(ctx context.Context, l builder.Lineage) error {
	err := c.executeWrite(ctx, func(tx neo4j.ManagedTransaction) error {
		for _, kind := range builder.NodeKinds {
			rows := nodeRows(l.NodesOf(kind))
			if len(rows) == 0 {
				continue
			}
			if _, err := tx.Run(ctx, mergeNodesQuery(kind), map[string]any{"rows": rows}); err != nil {
				return fmt.Errorf("failed to merge %s nodes: %w", kind, err)
			}
		}

		for _, rel := range []builder.RelationType{builder.RelAsksAbout, builder.RelBridgesTo, builder.RelAnsweredBy, builder.RelMentions} {
			rows := edgeRows(l.EdgesOf(rel))
			if len(rows) == 0 {
				continue
			}
			if _, err := tx.Run(ctx, mergeEdgesQuery(rel), map[string]any{"rows": rows}); err != nil {
				return fmt.Errorf("failed to merge %s relations: %w", rel, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.LineageRecords.Add(float64(len(l.NodesOf(builder.KindQuestion))))
	logger.Info("Lineage exported",
		zap.Int("nodes", len(l.Nodes)),
		zap.Int("relations", len(l.Edges)),
	)
	return nil
}

// Counts returns the number of nodes per label for dbID.
func (c *Client) Counts(ctx context.Context, dbID string) (map[string]int64, error) {
	result, err := neo4j.ExecuteQuery(ctx, c.driver, `
		MATCH (n {db_id: $db_id})
		RETURN labels(n)[0] AS label, count(n) AS total
		ORDER BY label`,
		map[string]any{"db_id": dbID},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count lineage: %w", err)
	}

	counts := make(map[string]int64)
	for _, record := range result.Records {
		label, _ := record.Get("label")
		total, _ := record.Get("total")
		name, ok := label.(string)
		n, ok2 := total.(int64)
		if ok && ok2 {
			counts[name] = n
		}
	}
	return counts, nil
}

func mergeNodesQuery(kind builder.NodeKind) string {
	return fmt.Sprintf(`
		UNWIND $rows AS row
		MERGE (n:%s {key: row.key})
		SET n += row.props, n.updated_at = timestamp()`, kind)
}

func mergeEdgesQuery(rel builder.RelationType) string {
	ends := builder.RelationEnds[rel]
	return fmt.Sprintf(`
		UNWIND $rows AS row
		MATCH (a:%s {key: row.from})
		MATCH (b:%s {key: row.to})
		MERGE (a)-[:%s]->(b)`, ends[0], ends[1], rel)
}

func nodeRows(nodes []builder.Node) []map[string]any {
	rows := make([]map[string]any, len(nodes))
	for i, n := range nodes {
		rows[i] = map[string]any{"key": n.Key, "props": n.Props}
	}
	return rows
}

func edgeRows(edges []builder.Edge) []map[string]any {
	rows := make([]map[string]any, len(edges))
	for i, e := range edges {
		rows[i] = map[string]any{"from": e.From, "to": e.To}
	}
	return rows
}
