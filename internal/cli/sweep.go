package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agenthost/chatlog/internal/config"
	"github.com/agenthost/chatlog/pkg/recorder"
	"github.com/agenthost/chatlog/pkg/replay"
	"github.com/agenthost/chatlog/pkg/sink"
)

var (
	sweepOnce     bool
	sweepSchedule string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Verify every finalized session in the log directory",
	Long: `Sweep walks the session artifact directory, runs a verify pass on
every finalized session and repairs whatever the live path dropped.
With --once a single pass runs and the command exits; otherwise the
pass repeats on a cron schedule until interrupted.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().BoolVar(&sweepOnce, "once", false, "run a single pass and exit")
	sweepCmd.Flags().StringVar(&sweepSchedule, "schedule", "", "cron schedule (default from config)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	l, err := setupLogging(cfg, true)
	if err != nil {
		return err
	}
	defer l.Close()

	if sweepOnce {
		return sweepPass(cmd.Context(), cfg, cmd)
	}

	schedule := sweepSchedule
	if schedule == "" {
		schedule = cfg.Sweep.Schedule
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := sweepPass(ctx, cfg, cmd); err != nil {
			log.Error().Err(err).Msg("Sweep pass failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	log.Info().Str("schedule", schedule).Str("log_dir", cfg.LogDir).Msg("Sweep scheduler started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// sweepPass verifies every finalized session found in the log
// directory. Individual session failures are logged and counted; only
// a missing sink aborts the pass.
func sweepPass(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	metaFiles, err := filepath.Glob(filepath.Join(cfg.LogDir, "*.meta.json"))
	if err != nil {
		return fmt.Errorf("failed to scan log directory: %w", err)
	}

	store, err := sink.Open(ctx, sink.Config{
		Host:     cfg.Sink.Host,
		Port:     cfg.Sink.Port,
		Database: cfg.Sink.Database,
		User:     cfg.Sink.User,
		Password: cfg.Sink.Password,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	var swept, repaired, failed int
	for _, path := range metaFiles {
		meta, err := recorder.LoadMetadata(path)
		if err != nil {
			log.Warn().Err(err).Str("meta", path).Msg("Skipping unreadable session record")
			failed++
			continue
		}
		if !meta.Finalized() {
			// Still being written; the session's own finalizer covers it.
			continue
		}

		result, err := replay.Reconcile(ctx, store, meta, replay.Options{
			Verify:        true,
			IdleThreshold: cfg.Batch.IdleThreshold(),
		})
		if err != nil {
			log.Warn().Err(err).Str("session_id", meta.SessionID).Msg("Sweep verify failed")
			failed++
			continue
		}
		swept++
		repaired += result.Inserted
	}

	fmt.Fprintf(cmd.OutOrStdout(), "swept %d sessions, repaired %d events, %d failures\n", swept, repaired, failed)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d sessions failed verification", ErrPartialFailure, failed, failed+swept)
	}
	return nil
}
