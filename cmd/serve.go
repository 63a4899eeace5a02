package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"conduit/internal/app"
	"conduit/internal/httpapi"

	"github.com/spf13/cobra"
)

var (
	serveDebug      bool
	serveConfigPath string
	serveAddr       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect configured servers and expose them over the REST API",
	Long: `Connects every server listed in the configuration, then serves the JSON
REST API until interrupted. Each configured server is connected
independently; a server that fails to come up is reported and skipped.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.New(app.Options{
		ConfigPath: serveConfigPath,
		Debug:      serveDebug,
	})
	if err != nil {
		return err
	}
	defer application.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.ConnectAll(ctx); err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", application.Config.HTTP.Host, application.Config.HTTP.Port)
	}

	api := httpapi.New(application.Registry, application.Dispatcher, application.Orchestrator)
	return api.Serve(ctx, addr)
}

func init() {
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Configuration directory (default: ~/.config/conduit)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address, overrides the configured host and port")
	rootCmd.AddCommand(serveCmd)
}
