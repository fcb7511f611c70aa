package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/creack/pty"
	"github.com/spf13/cobra"

	"github.com/agenthost/chatlog/pkg/sink"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that recording and delivery can work on this host",
	Long: `Doctor verifies the preconditions of a recording session: the
configuration parses and validates, the log directory is writable, a
pseudo-terminal can be allocated, and the sink is reachable with the
chat table present.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failures := 0

	check := func(name string, err error) {
		if err != nil {
			failures++
			fmt.Fprintf(out, "  ✗ %s: %v\n", name, err)
			return
		}
		fmt.Fprintf(out, "  ✓ %s\n", name)
	}

	cfg, err := loadConfig()
	check("configuration", err)
	if err != nil {
		return fmt.Errorf("1 check failed")
	}

	check("log directory writable", checkLogDir(cfg.LogDir))
	check("pty allocation", checkPty())

	ctx := cmd.Context()
	store, err := sink.Open(ctx, sink.Config{
		Host:     cfg.Sink.Host,
		Port:     cfg.Sink.Port,
		Database: cfg.Sink.Database,
		User:     cfg.Sink.User,
		Password: cfg.Sink.Password,
	})
	check(fmt.Sprintf("sink reachable (%s:%d)", cfg.Sink.Host, cfg.Sink.Port), err)
	if err == nil {
		defer store.Close()
		check("chat table", store.EnsureSchema(ctx))
	}

	if failures > 0 {
		return fmt.Errorf("%d checks failed", failures)
	}
	fmt.Fprintln(out, "all checks passed")
	return nil
}

func checkLogDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0600); err != nil {
		return err
	}
	return os.Remove(probe)
}

func checkPty() error {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return err
	}
	ptmx.Close()
	tty.Close()
	return nil
}
