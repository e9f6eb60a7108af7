package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/oracle"
	"github.com/CedricPei/MAS-RAG/internal/oracle/oracletest"
)

const completeReply = `{
	"question": "For the district of the top reading school, what is the late enrollment fee?",
	"nl2sql_question": "Which district runs the school with the highest average reading score?",
	"sql_answer": "SELECT District FROM schools JOIN satscores ON CDSCode=cds ORDER BY AvgScrRead DESC LIMIT 1",
	"doc_desc": "District enrollment handbook",
	"doc_type": "collection_rule"
}`

func TestProposeTargeted(t *testing.T) {
	fake := oracletest.Texts(completeReply)
	g, err := New(fake, ModeTargeted, nil)
	require.NoError(t, err)

	draft := g.Propose(context.Background(), "TABLE schools", `{"a":1}`, []string{"Earlier question?"})
	assert.Equal(t, StatusComplete, draft.Status)
	require.NotNil(t, draft.SQLAnswer)
	assert.Contains(t, *draft.SQLAnswer, "ORDER BY AvgScrRead")
	// the fixed type wins over whatever the oracle claims
	assert.Equal(t, dataset.DocTypeTargeted, *draft.DocType)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, oracle.FormatJSONObject, reqs[0].Format)
	assert.Equal(t, float32(0.4), reqs[0].Temperature)
	assert.Contains(t, reqs[0].User, "Earlier question?")
	assert.Contains(t, reqs[0].User, `{"a":1}`)
}

func TestProposeOpenUsesAssertedDocType(t *testing.T) {
	g, err := New(oracletest.Texts(completeReply), ModeOpen, nil)
	require.NoError(t, err)

	draft := g.Propose(context.Background(), "s", "{}", nil)
	require.NotNil(t, draft.DocType)
	assert.Equal(t, dataset.DocTypeCollection, *draft.DocType)
}

func TestProposeDegradedReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply oracletest.Reply
		want  Status
	}{
		{"empty", oracletest.Reply{Text: ""}, StatusEmpty},
		{"malformed", oracletest.Reply{Text: "Sure! Here is"}, StatusMalformed},
		{"failed", oracletest.Reply{Err: errors.New("timeout")}, StatusFailed},
		{"incomplete", oracletest.Reply{Text: `{"question":"q"}`}, StatusIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(oracletest.New(tt.reply), ModeCollection, nil)
			require.NoError(t, err)

			draft := g.Propose(context.Background(), "s", "{}", nil)
			assert.Equal(t, tt.want, draft.Status)
			assert.Nil(t, draft.SQLAnswer)
			assert.Equal(t, dataset.DocTypeCollection, *draft.DocType)

			rec := draft.Record(3, "db")
			assert.Equal(t, 3, rec.ID)
			assert.False(t, rec.Executable())
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Collection ")
	require.NoError(t, err)
	assert.Equal(t, ModeCollection, m)

	_, err = ParseMode("rv")
	assert.Error(t, err)
}

func TestModeAccepts(t *testing.T) {
	targeted := dataset.StringPtr(dataset.DocTypeTargeted)
	collection := dataset.StringPtr(dataset.DocTypeCollection)

	assert.True(t, ModeTargeted.Accepts(targeted))
	assert.False(t, ModeTargeted.Accepts(collection))
	assert.False(t, ModeTargeted.Accepts(nil))
	assert.True(t, ModeOpen.Accepts(nil))
	assert.True(t, ModeOpen.Accepts(dataset.StringPtr("anything")))
	assert.Equal(t, float32(0), ModeOpen.Temperature())
}
