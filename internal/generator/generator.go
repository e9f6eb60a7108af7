package generator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/metrics"
	"github.com/CedricPei/MAS-RAG/internal/oracle"
	"github.com/CedricPei/MAS-RAG/internal/prompt"
)

// Status summarizes what a proposal produced.
type Status int

const (
	// StatusComplete: every required field is present.
	StatusComplete Status = iota
	// StatusIncomplete: the oracle replied with an object missing some fields.
	StatusIncomplete
	StatusEmpty
	StatusMalformed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusIncomplete:
		return "incomplete"
	case StatusEmpty:
		return "empty"
	case StatusMalformed:
		return "malformed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Draft is one proposed question. Absent fields are nil; nothing here has
// been checked against the database.
type Draft struct {
	Question       *string
	NL2SQLQuestion *string
	SQLAnswer      *string
	DocType        *string
	DocDesc        *string
	Status         Status
	Err            error
}

// Record assigns the draft an id within dbID.
func (d Draft) Record(id int, dbID string) dataset.QuestionRecord {
	return dataset.QuestionRecord{
		ID:             id,
		DBID:           dbID,
		Question:       d.Question,
		NL2SQLQuestion: d.NL2SQLQuestion,
		SQLAnswer:      d.SQLAnswer,
		DocType:        d.DocType,
		DocDesc:        d.DocDesc,
	}
}

type Generator struct {
	oracle oracle.Oracle
	mode   Mode
	system string
	logger *zap.Logger
}

func New(o oracle.Oracle, mode Mode, logger *zap.Logger) (*Generator, error) {
	system, err := prompt.QuestionSystem(mode.style())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{oracle: o, mode: mode, system: system, logger: logger}, nil
}

func (g *Generator) Mode() Mode { return g.mode }

// Propose asks the oracle for one new question. Oracle failures are reported
// through Draft.Status and never returned as errors.
func (g *Generator) Propose(ctx context.Context, schemaText, glossary string, prior []string) Draft {
	user, err := prompt.QuestionUser(prompt.QuestionInput{
		Schema:            schemaText,
		Glossary:          glossary,
		ExistingQuestions: prompt.ExistingQuestions(prior),
	})
	if err != nil {
		return Draft{Status: StatusFailed, Err: fmt.Errorf("failed to build question prompt: %w", err), DocType: g.mode.DocType()}
	}

	resp := oracle.Parse(g.oracle.Generate(ctx, oracle.Request{
		System:      g.system,
		User:        user,
		Format:      oracle.FormatJSONObject,
		Temperature: g.mode.Temperature(),
	}))
	metrics.OracleOutcomes.WithLabelValues("generate", resp.Outcome.String()).Inc()

	draft := Draft{
		Question:       resp.String("question"),
		NL2SQLQuestion: resp.String("nl2sql_question"),
		SQLAnswer:      resp.String("sql_answer"),
		DocDesc:        resp.String("doc_desc"),
		DocType:        g.mode.DocType(),
		Err:            resp.Err,
	}
	if draft.DocType == nil {
		draft.DocType = resp.String("doc_type")
	}

	switch resp.Outcome {
	case oracle.OutcomeObject:
		draft.Status = StatusComplete
		if draft.Question == nil || draft.NL2SQLQuestion == nil || draft.SQLAnswer == nil || draft.DocDesc == nil {
			draft.Status = StatusIncomplete
		}
	case oracle.OutcomeEmpty:
		draft.Status = StatusEmpty
	case oracle.OutcomeMalformed:
		draft.Status = StatusMalformed
	default:
		draft.Status = StatusFailed
	}

	if draft.Status != StatusComplete {
		g.logger.Warn("Question draft not complete",
			zap.String("mode", string(g.mode)),
			zap.String("status", draft.Status.String()),
			zap.Error(draft.Err),
		)
	}
	return draft
}
