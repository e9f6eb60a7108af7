package neo4j

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CedricPei/MAS-RAG/internal/kg/builder"
)

func TestMergeQueries(t *testing.T) {
	assert.Contains(t, mergeNodesQuery(builder.KindQuestion), "MERGE (n:Question {key: row.key})")

	q := mergeEdgesQuery(builder.RelMentions)
	assert.Contains(t, q, "MATCH (a:Document {key: row.from})")
	assert.Contains(t, q, "MATCH (b:BridgeEntity {key: row.to})")
	assert.Contains(t, q, "MERGE (a)-[:MENTIONS]->(b)")
}

func TestRows(t *testing.T) {
	rows := nodeRows([]builder.Node{{Kind: builder.KindDatabase, Key: "db", Props: map[string]any{"db_id": "db"}}})
	assert.Equal(t, []map[string]any{{"key": "db", "props": map[string]any{"db_id": "db"}}}, rows)

	edges := edgeRows([]builder.Edge{{Type: builder.RelAsksAbout, From: "db/0", To: "db"}})
	assert.Equal(t, []map[string]any{{"from": "db/0", "to": "db"}}, edges)
}
