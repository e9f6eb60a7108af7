package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/oracle"
	"github.com/CedricPei/MAS-RAG/internal/prompt"
)

// Querier re-executes bridge queries.
type Querier interface {
	Query(ctx context.Context, dbID, query string) (dataset.BridgeInstance, error)
}

// Reproduction compares a stored bridge instance with a fresh execution.
type Reproduction struct {
	RecordID   int    `json:"record_id"`
	Reproduced bool   `json:"reproduced"`
	Diff       string `json:"diff,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Reproduce re-runs rec's query and requires the exact stored row sequence.
func Reproduce(ctx context.Context, q Querier, rec dataset.BridgedRecord) Reproduction {
	out := Reproduction{RecordID: rec.ID}
	if !rec.Executable() {
		out.Error = "record has no query"
		return out
	}

	got, err := q.Query(ctx, rec.DBID, *rec.SQLAnswer)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	out.Diff = cmp.Diff(rec.Instance, got)
	out.Reproduced = out.Diff == ""
	return out
}

// IDViolations returns the ids that are not strictly greater than the id
// before them.
func IDViolations[T dataset.Identified](items []T) []int {
	var bad []int
	for i := 1; i < len(items); i++ {
		if items[i].RecordID() <= items[i-1].RecordID() {
			bad = append(bad, items[i].RecordID())
		}
	}
	return bad
}

// HeldOut reports whether the oracle can recover the answer from the
// document alone. A document that passes needs its bridge rows.
type HeldOut struct {
	RecordID  int     `json:"record_id"`
	Predicted *string `json:"predicted,omitempty"`
	Leaks     bool    `json:"leaks"`
	Error     string  `json:"error,omitempty"`
}

func CheckHeldOut(ctx context.Context, o oracle.Oracle, rec dataset.DocumentRecord) HeldOut {
	out := HeldOut{RecordID: rec.ID}
	if rec.Doc == nil || rec.Answer == nil || rec.Question == nil {
		out.Error = "record has no document"
		return out
	}

	user, err := prompt.HeldOutUser(prompt.HeldOutInput{Question: *rec.Question, Doc: *rec.Doc})
	if err != nil {
		out.Error = err.Error()
		return out
	}

	resp := oracle.Parse(o.Generate(ctx, oracle.Request{
		System: prompt.HeldOutSystem(),
		User:   user,
		Format: oracle.FormatJSONObject,
	}))
	if !resp.OK() {
		out.Error = fmt.Sprintf("oracle reply %s", resp.Outcome)
		return out
	}

	out.Predicted = resp.String("answer")
	out.Leaks = out.Predicted != nil && sameAnswer(*out.Predicted, *rec.Answer)
	return out
}

func sameAnswer(a, b string) bool {
	norm := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		s = strings.Trim(s, ".\"'")
		return strings.Join(strings.Fields(s), " ")
	}
	return norm(a) != "" && norm(a) == norm(b)
}
