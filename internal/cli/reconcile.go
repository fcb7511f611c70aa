package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenthost/chatlog/pkg/recorder"
	"github.com/agenthost/chatlog/pkg/replay"
	"github.com/agenthost/chatlog/pkg/sink"
)

var (
	reconcileCreateTable bool
	reconcileVerify      bool
	reconcileQuiet       bool
	reconcileVerbose     bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile SESSION_LOG TIMING_LOG META_JSON",
	Short: "Replay finalized session artifacts into the sink",
	Long: `Reconcile reconstructs the event timeline from a finalized session's
content log, timing log and metadata record, then inserts the events.
With --verify only events missing from the sink are inserted, which
makes the pass idempotent and suitable for repairing after stream
drops or sink outages.

Exit codes: 0 on success, 1 on an unrecoverable parse or sink error,
2 when the pass landed some events but not all.`,
	Args:         cobra.ExactArgs(3),
	SilenceUsage: true,
	RunE:         runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().BoolVar(&reconcileCreateTable, "create-table", false, "create the chat table if missing before inserting")
	reconcileCmd.Flags().BoolVar(&reconcileVerify, "verify", false, "insert only events missing from the sink")
	reconcileCmd.Flags().BoolVarP(&reconcileQuiet, "quiet", "q", false, "suppress the result line")
	reconcileCmd.Flags().BoolVar(&reconcileVerbose, "verbose", false, "debug logging")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if reconcileVerbose {
		cfg.Logging.Level = "debug"
	}

	l, err := setupLogging(cfg, !reconcileQuiet)
	if err != nil {
		return err
	}
	defer l.Close()

	meta, err := recorder.LoadMetadata(args[2])
	if err != nil {
		return err
	}
	// The positional artifact paths win over the recorded ones, so
	// relocated logs can still be reconciled.
	meta.ContentLog = args[0]
	meta.TimingLog = args[1]

	ctx := cmd.Context()

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

	if reconcileCreateTable {
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	result, err := replay.Reconcile(ctx, store, meta, replay.Options{
		Verify:        reconcileVerify,
		IdleThreshold: cfg.Batch.IdleThreshold(),
	})
	if err != nil {
		if result.Inserted > 0 {
			return fmt.Errorf("%w: %v", ErrPartialFailure, err)
		}
		return err
	}

	if !reconcileQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), "session %s: %d reconstructed, %d already stored, %d inserted (%s)\n",
			result.SessionID, result.Reconstructed, result.Existing, result.Inserted, result.Status())
	}
	return nil
}
