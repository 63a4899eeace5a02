package cmd

import (
	"os/signal"
	"syscall"

	"conduit/internal/app"
	"conduit/internal/repl"

	"github.com/spf13/cobra"
)

var (
	replDebug      bool
	replConfigPath string
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive shell",
	Long: `Connects the configured servers and drops into an interactive shell with
tab completion. Servers can also be connected and disconnected from inside
the shell.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	application, err := app.New(app.Options{
		ConfigPath: replConfigPath,
		Debug:      replDebug,
	})
	if err != nil {
		return err
	}
	defer application.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A total connect failure is not fatal here; servers can still be
	// connected from inside the shell.
	if err := application.ConnectAll(ctx); err != nil {
		cmd.PrintErrf("Warning: %v\n", err)
	}

	return repl.New(application.Registry, application.Dispatcher, application.Orchestrator).Run(ctx)
}

func init() {
	replCmd.Flags().BoolVar(&replDebug, "debug", false, "Enable debug logging")
	replCmd.Flags().StringVar(&replConfigPath, "config-path", "", "Configuration directory (default: ~/.config/conduit)")
	rootCmd.AddCommand(replCmd)
}
