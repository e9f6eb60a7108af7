package synthesizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/metrics"
	"github.com/CedricPei/MAS-RAG/internal/oracle"
	"github.com/CedricPei/MAS-RAG/internal/prompt"
)

// Synthesizer authors the narrative document for a bridged record.
type Synthesizer struct {
	oracle oracle.Oracle
	logger *zap.Logger
}

func New(o oracle.Oracle, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{oracle: o, logger: logger}
}

// Author returns a DocumentRecord for record. When the oracle fails or its
// reply is unusable, Doc and Answer are nil and the record is still returned
// so the caller can persist it.
func (s *Synthesizer) Author(ctx context.Context, record dataset.BridgedRecord) dataset.DocumentRecord {
	out := dataset.DocumentRecord{
		QuestionRecord: record.QuestionRecord,
		TargetObject:   record.Instance,
	}

	req, err := s.request(record)
	if err != nil {
		s.logger.Error("Failed to build document prompt",
			zap.Int("record_id", record.ID),
			zap.Error(err),
		)
		return out
	}

	resp := oracle.Parse(s.oracle.Generate(ctx, req))
	metrics.OracleOutcomes.WithLabelValues("synthesize", resp.Outcome.String()).Inc()

	out.Doc = resp.String("doc")
	out.Answer = resp.String("answer")

	if !resp.OK() || out.Doc == nil || out.Answer == nil {
		s.logger.Warn("Document reply incomplete",
			zap.String("db_id", record.DBID),
			zap.Int("record_id", record.ID),
			zap.String("outcome", resp.Outcome.String()),
			zap.Error(resp.Err),
		)
	}
	return out
}

func (s *Synthesizer) request(record dataset.BridgedRecord) (oracle.Request, error) {
	instance, err := CanonicalInstance(record.Instance)
	if err != nil {
		return oracle.Request{}, err
	}

	collection := record.DocType != nil && *record.DocType == dataset.DocTypeCollection
	system, err := prompt.DocumentSystem(collection)
	if err != nil {
		return oracle.Request{}, err
	}
	user, err := prompt.DocumentUser(prompt.DocumentInput{
		Question:       dataset.Deref(record.Question),
		NL2SQLQuestion: dataset.Deref(record.NL2SQLQuestion),
		DocDesc:        dataset.Deref(record.DocDesc),
		Instance:       instance,
	})
	if err != nil {
		return oracle.Request{}, err
	}

	return oracle.Request{
		System:      system,
		User:        user,
		Format:      oracle.FormatJSONObject,
		Temperature: 0,
	}, nil
}

// CanonicalInstance renders rows as indented JSON with column order kept and
// no HTML escaping.
func CanonicalInstance(instance dataset.BridgeInstance) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(instance); err != nil {
		return "", fmt.Errorf("failed to encode bridge instance: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
