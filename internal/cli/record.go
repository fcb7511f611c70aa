package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agenthost/chatlog/internal/config"
	"github.com/agenthost/chatlog/pkg/recorder"
	"github.com/agenthost/chatlog/pkg/replay"
	"github.com/agenthost/chatlog/pkg/sink"
	"github.com/agenthost/chatlog/pkg/stream"
)

var (
	recordLogDir   string
	recordNoStream bool
	recordVerbose  bool
)

var recordCmd = &cobra.Command{
	Use:   "record [flags] -- COMMAND [ARGS...]",
	Short: "Record an interactive session and deliver its events",
	Long: `Record wraps COMMAND in a pseudo-terminal, captures every byte it
writes together with timing information and classifies the output into
conversation events. With streaming enabled (the default) events are
delivered live and verified at exit; with --no-stream everything is
delivered in one batch pass after the session ends.`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringVar(&recordLogDir, "log-dir", "", "session artifact directory (default from config)")
	recordCmd.Flags().BoolVar(&recordNoStream, "no-stream", false, "defer all delivery to a batch pass at exit")
	recordCmd.Flags().BoolVarP(&recordVerbose, "verbose", "v", false, "debug logging to the log file")
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if recordVerbose {
		cfg.Logging.Level = "debug"
	}
	if recordLogDir != "" {
		cfg.LogDir = recordLogDir
	}

	// Console logging stays off while the wrapped command owns the
	// terminal.
	l, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := cmd.Context()

	store, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := recorder.Options{
		Command:     args[0],
		Args:        args[1:],
		LogDir:      cfg.LogDir,
		Environment: cfg.Environment,
		Mode:        recorder.ModeBatch,
	}

	if cfg.Stream.Enabled && !recordNoStream {
		opts.Mode = recorder.ModeStream
		opts.NewDelivery = func(meta *recorder.Metadata) recorder.Delivery {
			return stream.New(store, meta.SessionID, meta.ContentLog, stream.Config{
				Interval:      cfg.Stream.Interval(),
				IdleTimeout:   cfg.Stream.IdleTimeout(),
				MaxBuffer:     cfg.Stream.MaxBufferCh,
				QueueCapacity: cfg.Stream.QueueCapacity,
			})
		}
		opts.Reconcile = func(ctx context.Context, meta *recorder.Metadata) (string, error) {
			result, err := replay.Reconcile(ctx, store, meta, replay.Options{
				Verify:        true,
				IdleThreshold: cfg.Batch.IdleThreshold(),
			})
			if err != nil {
				return "failed", err
			}
			return result.Status(), nil
		}
	}

	rec, err := recorder.New(opts)
	if err != nil {
		return err
	}

	summary, err := rec.Run(ctx)
	if err != nil {
		return err
	}

	// In batch mode the whole delivery happens here, after the session.
	// The child's exit code does not matter: a failed command is still a
	// session worth keeping.
	if opts.Mode == recorder.ModeBatch {
		summary.ReconcileStatus = runBatchPass(ctx, store, cfg, summary.MetaFile)
	}

	printSummary(cmd, summary)
	return nil
}

// openSink connects to QuestDB and ensures the schema. Recording does
// not start against a sink it cannot deliver to, so failure here
// aborts before the pty is allocated.
func openSink(ctx context.Context, cfg *config.Config) (sink.Store, error) {
	store, err := sink.Open(ctx, sink.Config{
		Host:     cfg.Sink.Host,
		Port:     cfg.Sink.Port,
		Database: cfg.Sink.Database,
		User:     cfg.Sink.User,
		Password: cfg.Sink.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("sink unavailable, refusing to record: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("schema setup failed, refusing to record: %w", err)
	}
	return store, nil
}

func runBatchPass(ctx context.Context, store sink.Store, cfg *config.Config, metaPath string) string {
	meta, err := recorder.LoadMetadata(metaPath)
	if err != nil {
		log.Warn().Err(err).Msg("Batch pass skipped, metadata unreadable")
		return "failed"
	}

	result, err := replay.Reconcile(ctx, store, meta, replay.Options{
		IdleThreshold: cfg.Batch.IdleThreshold(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Batch pass failed")
		return "failed"
	}
	return fmt.Sprintf("delivered (%d events)", result.Inserted)
}

func printSummary(cmd *cobra.Command, s *recorder.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nSession %s finished (exit %d)\n", s.SessionID, s.ExitCode)
	fmt.Fprintf(out, "  content log: %s\n", s.ContentLog)
	fmt.Fprintf(out, "  timing log:  %s\n", s.TimingLog)
	fmt.Fprintf(out, "  metadata:    %s\n", s.MetaFile)
	fmt.Fprintf(out, "  delivery:    %s\n", s.ReconcileStatus)
}
