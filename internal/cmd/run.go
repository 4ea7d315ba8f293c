package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/config"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/depgraph"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/event"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/logging"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/orchestrator"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/resource"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/scaling"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/worker"
)

var runCmd = &cobra.Command{
	Use:   "run <manifest>",
	Short: "Execute a task manifest",
	Long: `Run every task in a YAML manifest through the execution engine.

Tasks are analyzed for dependencies, grouped into phases, and executed
in parallel within each phase. Tasks with a command run it as a
subprocess; tasks without one simulate work for their declared duration.

Examples:
  # Execute a manifest
  codepm run build.yaml

  # Simulate without running any commands
  codepm run --dry-run build.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runDryRun    bool
	runInferDeps bool
)

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Simulate tasks instead of running commands")
	runCmd.Flags().BoolVar(&runInferDeps, "infer-deps", false, "Infer dependencies from task inputs/outputs")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	manifest, err := LoadManifest(args[0])
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tasks, err := manifest.EngineTasks()
	if err != nil {
		return err
	}
	policy, err := manifest.EnginePolicy(cfg.Policy())
	if err != nil {
		return err
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
	}

	var resolverOpts []depgraph.Option
	if runInferDeps {
		resolverOpts = append(resolverOpts, depgraph.WithInference())
	}

	bus := event.NewBus()
	resources := resource.NewManager(cfg.PoolConfigs(), bus, logger)
	workers := worker.NewManager(cfg.ManagerConfig(), newManifestExecutor(manifest, runDryRun), bus, logger)
	defer workers.StopAll("run finished")

	orch := orchestrator.NewWithConfig(
		orchestrator.Config{AllocationTimeout: cfg.AllocationTimeout()},
		depgraph.NewResolver(resolverOpts...), resources, workers, bus, logger,
	)

	planID, err := orch.CreatePlan(tasks, policy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := scaling.NewMonitor(bus, scaling.NewPolicy(cfg.ScalingOptions()...), workers.Count())
	monitor.OnDecision(func(d scaling.Decision) {
		workers.AutoScale(d.Target)
		monitor.SetCurrentWorkers(workers.Count())
	})
	go monitor.Start(ctx)
	defer monitor.Stop()

	go workers.Monitor(ctx)
	go housekeep(ctx, resources, orch)

	result, execErr := orch.ExecutePlan(ctx, planID)
	if result != nil {
		fmt.Fprint(cmd.OutOrStdout(), renderResult(manifest.Name, result))
	}
	if execErr != nil {
		return fmt.Errorf("plan %s: %w", planID, execErr)
	}
	return nil
}

// housekeepInterval paces the background leak sweep and adaptive retune.
const housekeepInterval = 15 * time.Second

// housekeep periodically reclaims leaked resources and retunes adaptive
// plans while a run is in flight.
func housekeep(ctx context.Context, resources *resource.Manager, orch *orchestrator.Orchestrator) {
	ticker := time.NewTicker(housekeepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resources.Sweep(time.Now())
			orch.OptimizePerformance()
		}
	}
}
