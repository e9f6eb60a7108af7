package synthesizer

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

func bridged(docType string) dataset.BridgedRecord {
	return dataset.BridgedRecord{
		QuestionRecord: dataset.QuestionRecord{
			ID:             4,
			DBID:           "california_schools",
			Question:       dataset.StringPtr("What is the late fee for the district of the top reading school?"),
			NL2SQLQuestion: dataset.StringPtr("Which district runs the top reading school?"),
			SQLAnswer:      dataset.StringPtr("SELECT District FROM schools LIMIT 1"),
			DocType:        dataset.StringPtr(docType),
			DocDesc:        dataset.StringPtr("District fee memo"),
		},
		Instance: dataset.BridgeInstance{
			dataset.NewRow([]string{"District", "Score"}, []any{"Example <Unified>", int64(640)}),
		},
	}
}

func TestAuthorFillsDocAndAnswer(t *testing.T) {
	fake := oracletest.Texts(`{"doc":"Example Unified charges a late fee of $25 ...","answer":"$25"}`)
	s := New(fake, nil)

	out := s.Author(context.Background(), bridged(dataset.DocTypeTargeted))
	require.NotNil(t, out.Doc)
	assert.Equal(t, "$25", *out.Answer)
	assert.Equal(t, 4, out.ID)
	assert.Len(t, out.TargetObject, 1)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, float32(0), reqs[0].Temperature)
	assert.Equal(t, oracle.FormatJSONObject, reqs[0].Format)
	assert.Contains(t, reqs[0].User, "[\n  {\n    \"District\": \"Example <Unified>\",\n    \"Score\": 640\n  }\n]")
	assert.Contains(t, reqs[0].User, "District fee memo")
	assert.NotContains(t, reqs[0].System, "several members of the group")
}

func TestAuthorCollectionPrompt(t *testing.T) {
	fake := oracletest.Texts(`{"doc":"d","answer":"a"}`)
	New(fake, nil).Author(context.Background(), bridged(dataset.DocTypeCollection))

	assert.Contains(t, fake.Requests()[0].System, "several members of the group")
}

func TestAuthorDegradesToNullFields(t *testing.T) {
	for name, reply := range map[string]oracletest.Reply{
		"failed":    {Err: errors.New("down")},
		"empty":     {Text: ""},
		"malformed": {Text: "not json"},
	} {
		t.Run(name, func(t *testing.T) {
			out := New(oracletest.New(reply), nil).Author(context.Background(), bridged(dataset.DocTypeTargeted))
			assert.Nil(t, out.Doc)
			assert.Nil(t, out.Answer)
			assert.Equal(t, 4, out.ID)
			assert.NotEmpty(t, out.TargetObject)
		})
	}
}

func TestCanonicalInstance(t *testing.T) {
	text, err := CanonicalInstance(dataset.BridgeInstance{
		dataset.NewRow([]string{"b", "a"}, []any{nil, "x&y"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"b\": null,\n    \"a\": \"x&y\"\n  }\n]", text)
}
