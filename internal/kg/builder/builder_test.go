package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
)

func TestBuildLineage(t *testing.T) {
	row := dataset.NewRow([]string{"District", "Score"}, []any{"Example Unified", int64(640)})
	q0 := dataset.QuestionRecord{ID: 0, DBID: "db", Question: dataset.StringPtr("q0"), SQLAnswer: dataset.StringPtr("SELECT 1")}
	q1 := dataset.QuestionRecord{ID: 1, DBID: "db"}

	bridged := []dataset.BridgedRecord{{QuestionRecord: q0, Instance: dataset.BridgeInstance{row}}}
	docs := []dataset.DocumentRecord{{
		QuestionRecord: q0,
		TargetObject:   dataset.BridgeInstance{row},
		Doc:            dataset.StringPtr("text"),
		Answer:         dataset.StringPtr("35 dollars"),
	}}

	l, err := Build("db", []dataset.QuestionRecord{q0, q1}, bridged, docs)
	require.NoError(t, err)

	assert.Len(t, l.NodesOf(KindDatabase), 1)
	assert.Len(t, l.NodesOf(KindQuestion), 2)
	assert.Len(t, l.NodesOf(KindDocument), 1)
	require.Len(t, l.NodesOf(KindBridgeEntity), 1)
	assert.Equal(t, "Example Unified", l.NodesOf(KindBridgeEntity)[0].Props["label"])

	assert.Len(t, l.EdgesOf(RelAsksAbout), 2)
	assert.Len(t, l.EdgesOf(RelBridgesTo), 1)
	assert.Len(t, l.EdgesOf(RelMentions), 1)
	require.Len(t, l.EdgesOf(RelAnsweredBy), 1)
	assert.Equal(t, Edge{Type: RelAnsweredBy, From: "db/0", To: "db/0"}, l.EdgesOf(RelAnsweredBy)[0])

	// the bridge row reached from the question and from the document is one node
	assert.Equal(t, l.EdgesOf(RelBridgesTo)[0].To, l.EdgesOf(RelMentions)[0].To)
}

func TestRelationEndsCoverEveryType(t *testing.T) {
	for _, rel := range []RelationType{RelAsksAbout, RelBridgesTo, RelAnsweredBy, RelMentions} {
		_, ok := RelationEnds[rel]
		assert.True(t, ok, rel)
	}
}
