package verify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/oracle"
)

// Verifier runs the held-out checks over the artifacts of one database.
type Verifier struct {
	querier Querier
	heldOut oracle.Oracle
	lint    LintConfig
	logger  *zap.Logger
}

type Option func(*Verifier)

// WithHeldOut enables the answerability check against o.
func WithHeldOut(o oracle.Oracle) Option {
	return func(v *Verifier) { v.heldOut = o }
}

func WithLintConfig(cfg LintConfig) Option {
	return func(v *Verifier) { v.lint = cfg }
}

func New(q Querier, logger *zap.Logger, opts ...Option) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Verifier{querier: q, lint: DefaultLintConfig(), logger: logger}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type Report struct {
	DBID      string `json:"db_id"`
	Questions int    `json:"questions"`
	Bridged   int    `json:"bridged"`
	Documents int    `json:"documents"`

	IDViolations map[dataset.Artifact][]int `json:"id_violations,omitempty"`

	Reproduced     int            `json:"reproduced"`
	Irreproducible []Reproduction `json:"irreproducible,omitempty"`

	CleanDocuments int               `json:"clean_documents"`
	Findings       []DocumentFinding `json:"findings,omitempty"`
	AvgWords       float64           `json:"avg_words"`

	HeldOutChecked int       `json:"held_out_checked"`
	Leaks          []HeldOut `json:"leaks,omitempty"`
}

// Checked counts every record examined by at least one check.
func (r *Report) Checked() int {
	return r.Questions + r.Bridged + r.Documents
}

// Failed counts records that failed any check.
func (r *Report) Failed() int {
	return len(r.Irreproducible) + len(r.Findings) + len(r.Leaks) + r.idViolations()
}

func (r *Report) idViolations() int {
	n := 0
	for _, ids := range r.IDViolations {
		n += len(ids)
	}
	return n
}

func (v *Verifier) Verify(ctx context.Context, layout dataset.Layout, dbID string) (*Report, error) {
	v.logger.Info("Verifying dataset", zap.String("db_id", dbID))
	report := &Report{DBID: dbID, IDViolations: map[dataset.Artifact][]int{}}

	questions, err := dataset.Load[dataset.QuestionRecord](layout.Questions(dbID))
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	bridged, err := dataset.Load[dataset.BridgedRecord](layout.Bridged(dbID))
	if err != nil {
		return nil, fmt.Errorf("failed to load bridged records: %w", err)
	}
	docs, err := dataset.Load[dataset.DocumentRecord](layout.Documents(dbID))
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	report.Questions, report.Bridged, report.Documents = len(questions), len(bridged), len(docs)

	if bad := IDViolations(questions); len(bad) > 0 {
		report.IDViolations[dataset.ArtifactQuestions] = bad
	}
	if bad := IDViolations(bridged); len(bad) > 0 {
		report.IDViolations[dataset.ArtifactBridged] = bad
	}
	if bad := IDViolations(docs); len(bad) > 0 {
		report.IDViolations[dataset.ArtifactDocuments] = bad
	}

	for _, rec := range bridged {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := Reproduce(ctx, v.querier, rec)
		if r.Reproduced {
			report.Reproduced++
			continue
		}
		report.Irreproducible = append(report.Irreproducible, r)
	}

	totalWords := 0
	for i, rec := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		finding, err := LintDocument(rec, v.lint)
		if err != nil {
			return nil, err
		}
		totalWords += finding.Words
		if finding.Clean() {
			report.CleanDocuments++
		} else {
			report.Findings = append(report.Findings, finding)
		}

		if v.heldOut == nil {
			continue
		}
		v.logger.Debug("Held-out check", zap.Int("index", i+1), zap.Int("total", len(docs)))
		h := CheckHeldOut(ctx, v.heldOut, rec)
		if h.Error != "" {
			v.logger.Warn("Held-out check unavailable", zap.Int("record_id", rec.ID), zap.String("reason", h.Error))
			continue
		}
		report.HeldOutChecked++
		if h.Leaks {
			report.Leaks = append(report.Leaks, h)
		}
	}
	if len(docs) > 0 {
		report.AvgWords = float64(totalWords) / float64(len(docs))
	}

	v.logger.Info("Dataset verified",
		zap.String("db_id", dbID),
		zap.Int("checked", report.Checked()),
		zap.Int("failed", report.Failed()),
	)
	return report, nil
}

func (r *Report) Summary() string {
	return fmt.Sprintf("%d irreproducible, %d lint findings, %d leaks, %d id violations",
		len(r.Irreproducible), len(r.Findings), len(r.Leaks), r.idViolations())
}

func (r *Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, `
Verification Report: %s
========================

Records:
- Questions: %d
- Bridged: %d
- Documents: %d

Bridge reproducibility: %d/%d reproduced
Documents: %d clean, %d with findings (avg %.0f words)
Held-out answerability: %d checked, %d answerable without bridge rows
`,
		r.DBID,
		r.Questions, r.Bridged, r.Documents,
		r.Reproduced, r.Bridged,
		r.CleanDocuments, len(r.Findings), r.AvgWords,
		r.HeldOutChecked, len(r.Leaks),
	)

	for _, artifact := range []dataset.Artifact{dataset.ArtifactQuestions, dataset.ArtifactBridged, dataset.ArtifactDocuments} {
		if ids := r.IDViolations[artifact]; len(ids) > 0 {
			fmt.Fprintf(&b, "\nId order violations in %s: %v\n", artifact, ids)
		}
	}
	for _, rep := range r.Irreproducible {
		reason := rep.Error
		if reason == "" {
			reason = "rows differ"
		}
		fmt.Fprintf(&b, "\nRecord %d not reproduced: %s\n", rep.RecordID, reason)
	}
	for _, f := range r.Findings {
		issues := make([]string, len(f.Issues))
		for i, issue := range f.Issues {
			issues[i] = string(issue)
		}
		fmt.Fprintf(&b, "\nRecord %d: %s\n", f.RecordID, strings.Join(issues, ", "))
	}
	for _, h := range r.Leaks {
		fmt.Fprintf(&b, "\nRecord %d answerable from document alone\n", h.RecordID)
	}

	return b.String()
}
