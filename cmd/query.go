package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"conduit/internal/app"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var (
	queryDebug      bool
	queryConfigPath string
	queryQuiet      bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run a one-shot agentic query across all configured servers",
	Long: `Connects the configured servers, hands their tools to the model and runs
the query to completion, printing the final answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	application, err := app.New(app.Options{
		ConfigPath: queryConfigPath,
		Debug:      queryDebug,
		Silent:     queryQuiet,
	})
	if err != nil {
		return err
	}
	defer application.Shutdown()

	if !application.Config.HasModelBackend() {
		return errors.New("no model API key configured, set ANTHROPIC_API_KEY or model.apiKey")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.ConnectAll(ctx); err != nil {
		return err
	}

	var s *spinner.Spinner
	if !queryQuiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Thinking..."
		s.Start()
		defer s.Stop()
	}

	application.Orchestrator.SetToolCallObserver(func(server, tool string) {
		if s != nil {
			s.Suffix = fmt.Sprintf(" Calling %s on %s...", tool, server)
		}
	})

	result, err := application.Orchestrator.Query(ctx, strings.Join(args, " "))
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
	if queryDebug {
		fmt.Fprintf(cmd.OutOrStdout(), "\n(%d tool calls, %d turns, %d input tokens, %d output tokens)\n",
			len(result.Invocations), result.Turns, result.InputTokens, result.OutputTokens)
	}
	return nil
}

func init() {
	queryCmd.Flags().BoolVar(&queryDebug, "debug", false, "Enable debug logging and a query summary")
	queryCmd.Flags().StringVar(&queryConfigPath, "config-path", "", "Configuration directory (default: ~/.config/conduit)")
	queryCmd.Flags().BoolVarP(&queryQuiet, "quiet", "q", false, "Print only the answer")
	rootCmd.AddCommand(queryCmd)
}
