package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/bridge"
	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/generator"
	"github.com/CedricPei/MAS-RAG/internal/introspect"
	"github.com/CedricPei/MAS-RAG/internal/metrics"
	"github.com/CedricPei/MAS-RAG/internal/oracle"
	"github.com/CedricPei/MAS-RAG/internal/progress"
	"github.com/CedricPei/MAS-RAG/internal/storage/models"
	"github.com/CedricPei/MAS-RAG/internal/synthesizer"
)

// Introspector describes a target database before generation starts.
type Introspector interface {
	Describe(ctx context.Context, dbID string) (introspect.Schema, error)
	LoadGlossary(dbID string) (string, error)
}

// Ledger records run bookkeeping. Failures are logged and never stop a run.
type Ledger interface {
	StartRun(ctx context.Context, run models.Run) error
	RecordDatabase(ctx context.Context, rd models.RunDatabase) error
	FinishRun(ctx context.Context, runID string, status models.RunStatus, errMsg string, at time.Time) error
}

// Plan selects what one run does.
type Plan struct {
	RunID  string
	Mode   generator.Mode
	DBIDs  []string
	Count  int
	Stages []Stage
}

// DatabaseSummary reports the outcome of a run for one database.
type DatabaseSummary struct {
	DBID        string
	State       progress.State
	Generated   int
	Executed    int
	Skipped     int
	Synthesized int
	Carried     int
	Err         error
}

type Summary struct {
	RunID     string
	Databases []DatabaseSummary
}

// Orchestrator drives the stages over each database strictly sequentially.
// It is the only writer of the checkpoint files of the databases it runs.
type Orchestrator struct {
	introspector Introspector
	oracle       oracle.Oracle
	executor     *bridge.Executor
	layoutRoot   string
	observer     progress.Observer
	ledger       Ledger
	logger       *zap.Logger
	now          func() time.Time
}

type Option func(*Orchestrator)

func WithObserver(o progress.Observer) Option {
	return func(orc *Orchestrator) { orc.observer = o }
}

func WithLedger(l Ledger) Option {
	return func(orc *Orchestrator) { orc.ledger = l }
}

func WithClock(now func() time.Time) Option {
	return func(orc *Orchestrator) { orc.now = now }
}

func New(intro Introspector, o oracle.Oracle, executor *bridge.Executor, outputDir string, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	orc := &Orchestrator{
		introspector: intro,
		oracle:       o,
		executor:     executor,
		layoutRoot:   outputDir,
		observer:     progress.Multi{},
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(orc)
	}
	return orc
}

// Layout returns the artifact layout used for mode.
func (o *Orchestrator) Layout(mode generator.Mode) dataset.Layout {
	return dataset.Layout{Root: o.layoutRoot, Prefix: string(mode)}
}

// Run processes every database of plan. Configuration errors fail only the
// database they concern; persistence errors and cancellation abort the run.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (Summary, error) {
	if plan.RunID == "" {
		plan.RunID = uuid.NewString()
	}
	if len(plan.Stages) == 0 {
		plan.Stages = append([]Stage(nil), AllStages...)
	}
	if plan.Count < 0 {
		return Summary{RunID: plan.RunID}, fmt.Errorf("invalid record count %d", plan.Count)
	}

	gen, err := generator.New(o.oracle, plan.Mode, o.logger)
	if err != nil {
		return Summary{RunID: plan.RunID}, fmt.Errorf("failed to create generator: %w", err)
	}

	r := &run{
		orc:    o,
		plan:   plan,
		layout: o.Layout(plan.Mode),
		gen:    gen,
		synth:  synthesizer.New(o.oracle, o.logger),
		logger: o.logger.With(zap.String("run_id", plan.RunID), zap.String("mode", string(plan.Mode))),
	}

	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	o.startLedger(ctx, plan)
	r.logger.Info("Run started",
		zap.Strings("db_ids", plan.DBIDs),
		zap.Strings("stages", stageNames(plan.Stages)),
		zap.Int("count", plan.Count),
	)

	summary := Summary{RunID: plan.RunID}
	var errs []error
	for _, dbID := range plan.DBIDs {
		ds, err := r.database(ctx, dbID)
		summary.Databases = append(summary.Databases, ds)
		if err == nil {
			continue
		}
		if errors.Is(err, dataset.ErrPersist) || ctx.Err() != nil {
			o.finishLedger(plan.RunID, err)
			r.logger.Error("Run aborted", zap.String("db_id", dbID), zap.Error(err))
			return summary, err
		}
		errs = append(errs, err)
	}

	err = errors.Join(errs...)
	o.finishLedger(plan.RunID, err)
	r.logger.Info("Run finished", zap.Int("failed_databases", len(errs)))
	return summary, err
}

func (o *Orchestrator) startLedger(ctx context.Context, plan Plan) {
	if o.ledger == nil {
		return
	}
	err := o.ledger.StartRun(ctx, models.Run{
		ID:        plan.RunID,
		Mode:      string(plan.Mode),
		Stages:    stageNames(plan.Stages),
		DBIDs:     plan.DBIDs,
		Count:     plan.Count,
		StartedAt: o.now(),
	})
	if err != nil {
		o.logger.Warn("Failed to record run start", zap.Error(err))
	}
}

func (o *Orchestrator) finishLedger(runID string, runErr error) {
	if o.ledger == nil {
		return
	}
	status, msg := models.RunSucceeded, ""
	if runErr != nil {
		status, msg = models.RunFailed, runErr.Error()
	}
	// the run context may already be canceled
	if err := o.ledger.FinishRun(context.Background(), runID, status, msg, o.now()); err != nil {
		o.logger.Warn("Failed to record run finish", zap.Error(err))
	}
}
