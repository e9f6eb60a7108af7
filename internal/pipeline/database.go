package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/generator"
	"github.com/CedricPei/MAS-RAG/internal/metrics"
	"github.com/CedricPei/MAS-RAG/internal/progress"
	"github.com/CedricPei/MAS-RAG/internal/storage/models"
	"github.com/CedricPei/MAS-RAG/internal/synthesizer"
)

// run holds the state of one Orchestrator.Run call.
type run struct {
	orc    *Orchestrator
	plan   Plan
	layout dataset.Layout
	gen    *generator.Generator
	synth  *synthesizer.Synthesizer
	logger *zap.Logger
}

func (r *run) database(ctx context.Context, dbID string) (DatabaseSummary, error) {
	ds := DatabaseSummary{DBID: dbID, State: progress.StateIdle}
	log := r.logger.With(zap.String("db_id", dbID))

	r.transition(ctx, &ds, progress.StateIdle, "")

	fail := func(err error) (DatabaseSummary, error) {
		ds.Err = err
		r.transition(ctx, &ds, progress.StateFailed, err.Error())
		log.Error("Database failed", zap.String("state", string(ds.State)), zap.Error(err))
		return ds, err
	}

	if hasStage(r.plan.Stages, StageGenerate) {
		r.transition(ctx, &ds, progress.StateIntrospecting, "")
		schema, err := r.orc.introspector.Describe(ctx, dbID)
		if err != nil {
			return fail(err)
		}
		glossary, err := r.orc.introspector.LoadGlossary(dbID)
		if err != nil {
			return fail(err)
		}

		r.transition(ctx, &ds, progress.StateGenerating, "")
		if err := r.generate(ctx, &ds, schema.Render(), glossary); err != nil {
			return fail(err)
		}
	}

	if hasStage(r.plan.Stages, StageExecute) {
		r.transition(ctx, &ds, progress.StateExecuting, "")
		if err := r.execute(ctx, &ds); err != nil {
			return fail(err)
		}
	}

	if hasStage(r.plan.Stages, StageSynthesize) {
		r.transition(ctx, &ds, progress.StateSynthesizing, "")
		if err := r.synthesize(ctx, &ds); err != nil {
			return fail(err)
		}
	}

	r.transition(ctx, &ds, progress.StateDone, "")
	log.Info("Database done",
		zap.Int("generated", ds.Generated),
		zap.Int("executed", ds.Executed),
		zap.Int("skipped", ds.Skipped),
		zap.Int("synthesized", ds.Synthesized),
		zap.Int("carried", ds.Carried),
	)
	return ds, nil
}

// generate appends plan.Count new questions. Ids continue from the largest
// id already on disk, and every previously persisted question is offered to
// the oracle as something not to repeat.
func (r *run) generate(ctx context.Context, ds *DatabaseSummary, schemaText, glossary string) error {
	cp, err := dataset.OpenCheckpoint[dataset.QuestionRecord](r.layout.Questions(ds.DBID))
	if err != nil {
		return err
	}

	var prior []string
	for _, rec := range cp.Items() {
		if rec.Question != nil {
			prior = append(prior, *rec.Question)
		}
	}

	for i := 0; i < r.plan.Count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()

		draft := r.gen.Propose(ctx, schemaText, glossary, prior)
		// an interrupted oracle call is not a reply; leave the id unused
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := draft.Record(dataset.NextID(cp.Items()), ds.DBID)
		if err := persist(cp, rec); err != nil {
			return err
		}
		if rec.Question != nil {
			prior = append(prior, *rec.Question)
		}

		ds.Generated++
		outcome := draft.Status.String()
		metrics.RecordsTotal.WithLabelValues(string(StageGenerate), outcome).Inc()
		metrics.StageDuration.WithLabelValues(string(StageGenerate)).Observe(time.Since(start).Seconds())
		r.record(ds, progress.StateGenerating, rec.ID, i+1, r.plan.Count, outcome)
	}
	return nil
}

// execute bridges every question not yet present in the bridged artifact.
func (r *run) execute(ctx context.Context, ds *DatabaseSummary) error {
	input, err := dataset.Load[dataset.QuestionRecord](r.layout.Questions(ds.DBID))
	if err != nil {
		return err
	}
	cp, err := dataset.OpenCheckpoint[dataset.BridgedRecord](r.layout.Bridged(ds.DBID))
	if err != nil {
		return err
	}
	done := dataset.IDSet(cp.Items())

	for i, rec := range input {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := done[rec.ID]; ok {
			ds.Carried++
			continue
		}
		start := time.Now()

		bridged, ok := r.orc.executor.Execute(ctx, rec)
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome := "bridged"
		if ok {
			if err := persist(cp, bridged); err != nil {
				return err
			}
			ds.Executed++
		} else {
			outcome = "skipped"
			ds.Skipped++
		}

		metrics.RecordsTotal.WithLabelValues(string(StageExecute), outcome).Inc()
		metrics.StageDuration.WithLabelValues(string(StageExecute)).Observe(time.Since(start).Seconds())
		r.record(ds, progress.StateExecuting, rec.ID, i+1, len(input), outcome)
	}
	return nil
}

// synthesize authors a document for every viable bridged record of the run's
// mode that has none yet.
func (r *run) synthesize(ctx context.Context, ds *DatabaseSummary) error {
	loaded, err := dataset.Load[dataset.BridgedRecord](r.layout.Bridged(ds.DBID))
	if err != nil {
		return err
	}
	var input []dataset.BridgedRecord
	for _, rec := range loaded {
		if rec.Viable() && r.plan.Mode.Accepts(rec.DocType) {
			input = append(input, rec)
		}
	}

	cp, err := dataset.OpenCheckpoint[dataset.DocumentRecord](r.layout.Documents(ds.DBID))
	if err != nil {
		return err
	}
	done := dataset.IDSet(cp.Items())

	for i, rec := range input {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := done[rec.ID]; ok {
			ds.Carried++
			continue
		}
		start := time.Now()

		doc := r.synth.Author(ctx, rec)
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := persist(cp, doc); err != nil {
			return err
		}
		ds.Synthesized++

		outcome := "authored"
		if doc.Doc == nil || doc.Answer == nil {
			outcome = "partial"
		}
		metrics.RecordsTotal.WithLabelValues(string(StageSynthesize), outcome).Inc()
		metrics.StageDuration.WithLabelValues(string(StageSynthesize)).Observe(time.Since(start).Seconds())
		r.record(ds, progress.StateSynthesizing, rec.ID, i+1, len(input), outcome)
	}
	return nil
}

// persist appends item to cp and counts the checkpoint write.
func persist[T any](cp *dataset.Checkpoint[T], item T) error {
	err := cp.Append(item)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.CheckpointWrites.WithLabelValues(status).Inc()
	return err
}

func (r *run) transition(ctx context.Context, ds *DatabaseSummary, state progress.State, msg string) {
	ds.State = state
	r.emit(progress.Event{DBID: ds.DBID, State: state, Message: msg})

	if r.orc.ledger == nil {
		return
	}
	rd := models.RunDatabase{
		RunID:       r.plan.RunID,
		DBID:        ds.DBID,
		State:       string(state),
		Generated:   ds.Generated,
		Executed:    ds.Executed,
		Skipped:     ds.Skipped,
		Synthesized: ds.Synthesized,
		Carried:     ds.Carried,
		Error:       msg,
		UpdatedAt:   r.orc.now(),
	}
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := r.orc.ledger.RecordDatabase(ctx, rd); err != nil {
		r.logger.Warn("Failed to record database state", zap.String("db_id", ds.DBID), zap.Error(err))
	}
}

func (r *run) record(ds *DatabaseSummary, state progress.State, id, index, total int, outcome string) {
	recordID := id
	r.emit(progress.Event{
		DBID:     ds.DBID,
		State:    state,
		RecordID: &recordID,
		Index:    index,
		Total:    total,
		Outcome:  outcome,
	})
}

func (r *run) emit(e progress.Event) {
	e.RunID = r.plan.RunID
	e.Time = r.orc.now()
	r.orc.observer.Observe(e)
}
