package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLogger "github.com/CedricPei/MAS-RAG/pkg/logger"
)

var (
	configFile string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "synth",
	Short: "Synthesize text-to-SQL benchmark records from relational databases",
	Long: `synth designs questions against a relational database, executes the bridge
query behind each question, and authors a document that holds the final answer.

Every stage checkpoints to JSON after each record, so an interrupted run resumes
where it stopped.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		appLogger.Close()
	},
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"mode":      "pipeline.mode",
	"db":        "pipeline.dbIds",
	"count":     "pipeline.count",
	"output":    "pipeline.outputDir",
	"log-level": "logging.level",
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default: ./config.yaml)")
	pf.String("mode", "", "question design mode: targeted, collection or open")
	pf.StringSlice("db", nil, "database id to process (repeatable)")
	pf.Int("count", 0, "new questions to design per database")
	pf.String("output", "", "dataset output directory")
	pf.String("log-level", "", "log level")
	pf.BoolVarP(&quiet, "quiet", "q", false, "disable the progress spinner")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(synthesizeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schemaCmd)
}
