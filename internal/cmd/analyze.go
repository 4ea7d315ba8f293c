package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/depgraph"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <manifest>",
	Short: "Analyze a manifest's dependency graph without executing it",
	Long: `Build the dependency graph for a manifest and report the execution
phases, the critical path, and the estimated minimum wall-clock time.

Examples:
  # Inspect how a manifest would be scheduled
  codepm analyze build.yaml

  # Include dependencies inferred from inputs/outputs
  codepm analyze --infer-deps build.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var analyzeInferDeps bool

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeInferDeps, "infer-deps", false, "Infer dependencies from task inputs/outputs")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	manifest, err := LoadManifest(args[0])
	if err != nil {
		return err
	}
	tasks, err := manifest.EngineTasks()
	if err != nil {
		return err
	}

	var opts []depgraph.Option
	if analyzeInferDeps {
		opts = append(opts, depgraph.WithInference())
	}
	resolver := depgraph.NewResolver(opts...)

	analysis, err := resolver.Analyze(derefForAnalysis(tasks))
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", args[0], err)
	}

	fmt.Fprint(cmd.OutOrStdout(), renderAnalysis(manifest.Name, analysis))
	return nil
}
