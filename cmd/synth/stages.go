package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/pipeline"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Design new questions and their bridge queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, []pipeline.Stage{pipeline.StageGenerate})
	},
}

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Run the bridge query of every designed question",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, []pipeline.Stage{pipeline.StageExecute})
	},
}

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Author a document for every bridged record",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, []pipeline.Stage{pipeline.StageSynthesize})
	},
}

var runStageNames []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the selected stages in order over every database",
	Long: `Runs generate, execute and synthesize (or the subset given with --stages)
database by database. Each stage carries over records already in its output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("stages") {
			return runStages(cmd, nil)
		}
		stages, err := pipeline.ParseStages(runStageNames)
		if err != nil {
			return err
		}
		return runStages(cmd, stages)
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runStageNames, "stages", nil, "stages to run (default: pipeline.stages)")
}

// runStages runs stages, or the configured pipeline.stages when nil.
func runStages(cmd *cobra.Command, stages []pipeline.Stage) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	if stages == nil {
		if stages, err = e.stages(); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	mode, err := e.mode()
	if err != nil {
		return err
	}
	dbIDs, err := e.dbIDs()
	if err != nil {
		return err
	}

	opts := []pipeline.Option{}
	if ledger, err := e.openLedger(); err != nil {
		e.logger.Warn("Run ledger unavailable", zap.Error(err))
	} else {
		opts = append(opts, pipeline.WithLedger(ledger))
	}

	obs, stop := observer()
	opts = append(opts, pipeline.WithObserver(obs))

	_, o, err := e.openOracle(ctx)
	if err != nil {
		stop()
		return err
	}

	orc := pipeline.New(e.introspector(), o, e.executor(), e.cfg.Pipeline.OutputDir, e.logger, opts...)
	summary, runErr := orc.Run(ctx, pipeline.Plan{
		Mode:   mode,
		DBIDs:  dbIDs,
		Count:  e.cfg.Pipeline.Count,
		Stages: stages,
	})
	stop()

	printSummary(summary)
	if runErr != nil {
		return fmt.Errorf("run %s: %w", summary.RunID, runErr)
	}
	return nil
}

func printSummary(s pipeline.Summary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "run %s\n", s.RunID)
	fmt.Fprintln(w, "DATABASE\tSTATE\tGENERATED\tEXECUTED\tSKIPPED\tSYNTHESIZED\tCARRIED")
	for _, d := range s.Databases {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			d.DBID, d.State, d.Generated, d.Executed, d.Skipped, d.Synthesized, d.Carried)
	}
	w.Flush()
}
