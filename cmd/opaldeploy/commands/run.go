package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/config"
	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
	"github.com/opaldeploy/opaldeploy/pkg/stores"
	"github.com/opaldeploy/opaldeploy/pkg/transports/local"
)

// runPipeline loads the project config, opens the run ledger and executes
// the given steps against a fresh local context. Halts are logged and
// swallowed unless --strict is set, so a failed remote step never breaks
// surrounding shell scripts by default.
func runPipeline(ctx context.Context, command string, steps []pipeline.Step) error {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	c := pipeline.NewContext(cfg, local.New())

	runner := &pipeline.Runner{RunID: uuid.NewString()}

	ledger, err := openLedger(ctx)
	if err != nil {
		// The ledger is bookkeeping, not a prerequisite.
		log.Warn().Err(err).Msg("run ledger unavailable, continuing without recording")
	} else {
		defer ledger.Close()
		runner.Ledger = ledger
		if err := ledger.CreateRun(ctx, runner.RunID, command, cfg.Project.Name); err != nil {
			log.Warn().Err(err).Msg("failed to record run")
		}
	}

	log.Info().
		Str("command", command).
		Str("project", cfg.Project.Name).
		Str("run_id", runner.RunID).
		Msg("starting pipeline")

	_, runErr := runner.Run(ctx, c, steps)

	if ledger != nil {
		status := stores.RunStatusCompleted
		if runErr != nil {
			status = stores.RunStatusHalted
		}
		if err := ledger.FinishRun(ctx, runner.RunID, status, runErr); err != nil {
			log.Warn().Err(err).Msg("failed to finalize run record")
		}
	}

	if runErr != nil {
		var halt *pipeline.HaltError
		if errors.As(runErr, &halt) && !strict {
			log.Error().Str("step", halt.Step).Err(halt.Err).Msg("pipeline halted")
			return nil
		}
		return runErr
	}

	log.Info().Str("command", command).Msg("pipeline completed")
	return nil
}

func openLedger(ctx context.Context) (*stores.Ledger, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".opaldeploy")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return stores.Open(ctx, filepath.Join(dir, "ledger.db"))
}
