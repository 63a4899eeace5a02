// Package repl provides the interactive shell over the registry,
// dispatcher and orchestrator.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"conduit/internal/dispatch"
	"conduit/internal/mcpclient"
	"conduit/internal/orchestrator"
	"conduit/internal/registry"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mark3labs/mcp-go/mcp"
)

// commandTimeout bounds a single shell command so a hung server cannot
// freeze the prompt forever.
const commandTimeout = 5 * time.Minute

var errExit = errors.New("exit")

// REPL is the interactive shell.
type REPL struct {
	registry     *registry.Registry
	dispatcher   *dispatch.Dispatcher
	orchestrator *orchestrator.Orchestrator

	rl  *readline.Instance
	out io.Writer
}

// New creates a shell over the given components.
func New(reg *registry.Registry, disp *dispatch.Dispatcher, orch *orchestrator.Orchestrator) *REPL {
	return &REPL{
		registry:     reg,
		dispatcher:   disp,
		orchestrator: orch,
		out:          os.Stdout,
	}
}

// Run enters the interactive loop until exit, EOF or context cancellation.
func (r *REPL) Run(ctx context.Context) error {
	config := &readline.Config{
		Prompt:              "conduit> ",
		HistoryFile:         filepath.Join(os.TempDir(), ".conduit_history"),
		AutoComplete:        r.completer(),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	fmt.Fprintln(r.out, "Type 'help' for available commands. Use TAB for completion.")
	fmt.Fprintln(r.out)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if err := r.execute(input); err != nil {
			if errors.Is(err, errExit) {
				fmt.Fprintln(r.out, "Goodbye!")
				return nil
			}
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
		fmt.Fprintln(r.out)
	}
}

func (r *REPL) execute(input string) error {
	command, args := parseLine(input)
	if command == "?" {
		command = "help"
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch command {
	case "servers":
		return r.cmdServers()
	case "tools":
		return r.cmdTools(args)
	case "resources":
		return r.cmdResources(args)
	case "prompts":
		return r.cmdPrompts(args)
	case "call":
		return r.cmdCall(ctx, args)
	case "read":
		return r.cmdRead(ctx, args)
	case "prompt":
		return r.cmdPrompt(ctx, args)
	case "ping":
		return r.cmdPing(ctx, args)
	case "query":
		return r.cmdQuery(ctx, args)
	case "connect":
		return r.cmdConnect(ctx, args)
	case "disconnect":
		return r.cmdDisconnect(args)
	case "help":
		r.printHelp()
		return nil
	case "exit", "quit":
		return errExit
	default:
		return fmt.Errorf("unknown command: %s. Type 'help' for available commands", command)
	}
}

func (r *REPL) cmdServers() error {
	ids := r.registry.ListIDs()
	if len(ids) == 0 {
		fmt.Fprintln(r.out, "No servers connected. Use 'connect' to add one.")
		return nil
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"Server", "Tools", "Resources", "Prompts", "Connected"})
	for _, id := range ids {
		snap, ok := r.registry.Get(id)
		if !ok {
			continue
		}
		t.AppendRow(table.Row{
			snap.Name,
			len(snap.Tools),
			len(snap.Resources),
			len(snap.Prompts),
			snap.ConnectedAt.Format(time.RFC3339),
		})
	}
	t.Render()
	return nil
}

func (r *REPL) cmdTools(args []string) error {
	snapshots, err := r.snapshotsFor(args)
	if err != nil {
		return err
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"Server", "Tool", "Description"})
	count := 0
	for _, snap := range snapshots {
		for _, tool := range snap.Tools {
			t.AppendRow(table.Row{snap.Name, tool.Name, truncate(tool.Description, 60)})
			count++
		}
	}
	if count == 0 {
		fmt.Fprintln(r.out, "No tools found.")
		return nil
	}
	t.Render()
	return nil
}

func (r *REPL) cmdResources(args []string) error {
	snapshots, err := r.snapshotsFor(args)
	if err != nil {
		return err
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"Server", "URI", "Name"})
	count := 0
	for _, snap := range snapshots {
		for _, resource := range snap.Resources {
			t.AppendRow(table.Row{snap.Name, resource.URI, resource.Name})
			count++
		}
	}
	if count == 0 {
		fmt.Fprintln(r.out, "No resources found.")
		return nil
	}
	t.Render()
	return nil
}

func (r *REPL) cmdPrompts(args []string) error {
	snapshots, err := r.snapshotsFor(args)
	if err != nil {
		return err
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"Server", "Prompt", "Description"})
	count := 0
	for _, snap := range snapshots {
		for _, prompt := range snap.Prompts {
			t.AppendRow(table.Row{snap.Name, prompt.Name, truncate(prompt.Description, 60)})
			count++
		}
	}
	if count == 0 {
		fmt.Fprintln(r.out, "No prompts found.")
		return nil
	}
	t.Render()
	return nil
}

func (r *REPL) cmdCall(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: call <server> <tool> [key=value ...]")
	}
	server, tool := args[0], args[1]

	toolArgs, err := parseInlineArgs(args[2:])
	if err != nil {
		return err
	}

	// No inline arguments: walk the cached schema and prompt per field.
	if toolArgs == nil {
		if schema, ok := r.toolSchema(server, tool); ok {
			toolArgs, err = promptForArguments(schema, r.ask)
			if err != nil {
				return err
			}
		}
	}

	result, err := r.dispatcher.CallTool(ctx, server, tool, toolArgs)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, dispatch.ContentText(result.Content))
	return nil
}

func (r *REPL) cmdRead(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: read <server> <uri>")
	}

	result, err := r.dispatcher.ReadResource(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	for _, content := range result.Contents {
		if textContent, ok := content.(mcp.TextResourceContents); ok {
			fmt.Fprintln(r.out, textContent.Text)
			continue
		}
		fmt.Fprintf(r.out, "%v\n", content)
	}
	return nil
}

func (r *REPL) cmdPrompt(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: prompt <server> <name> [key=value ...]")
	}

	promptArgs, err := parseInlineArgs(args[2:])
	if err != nil {
		return err
	}

	result, err := r.dispatcher.GetPrompt(ctx, args[0], args[1], promptArgs)
	if err != nil {
		return err
	}
	if result.Description != "" {
		fmt.Fprintln(r.out, result.Description)
	}
	for _, message := range result.Messages {
		if textContent, ok := mcp.AsTextContent(message.Content); ok {
			fmt.Fprintf(r.out, "[%s] %s\n", message.Role, textContent.Text)
		}
	}
	return nil
}

func (r *REPL) cmdPing(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: ping <server>")
	}
	if err := r.dispatcher.Ping(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s: ok\n", args[0])
	return nil
}

func (r *REPL) cmdQuery(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: query <text>")
	}

	result, err := r.orchestrator.Query(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, result.Answer)
	if len(result.Invocations) > 0 {
		fmt.Fprintf(r.out, "\n(%d tool calls over %d turns)\n", len(result.Invocations), result.Turns)
	}
	return nil
}

func (r *REPL) cmdConnect(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: connect <name> <command [args ...] | url>")
	}
	name := args[0]

	var descriptor mcpclient.TransportDescriptor
	if strings.HasPrefix(args[1], "http://") || strings.HasPrefix(args[1], "https://") {
		descriptor = mcpclient.TransportDescriptor{
			Type: mcpclient.TransportStreamableHTTP,
			URL:  args[1],
		}
	} else {
		descriptor = mcpclient.TransportDescriptor{
			Type:    mcpclient.TransportStdio,
			Command: args[1],
			Args:    args[2:],
		}
	}

	if err := r.registry.Connect(ctx, name, descriptor); err != nil {
		return err
	}

	snap, _ := r.registry.Get(name)
	fmt.Fprintf(r.out, "Connected %s: %d tools, %d resources, %d prompts\n",
		name, len(snap.Tools), len(snap.Resources), len(snap.Prompts))
	r.refreshCompleter()
	return nil
}

func (r *REPL) cmdDisconnect(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: disconnect <server>")
	}
	if err := r.registry.Disconnect(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Disconnected %s\n", args[0])
	r.refreshCompleter()
	return nil
}

func (r *REPL) printHelp() {
	fmt.Fprint(r.out, `Available commands:
  servers                          List connected servers
  tools [server]                   List tools, optionally for one server
  resources [server]               List resources
  prompts [server]                 List prompts
  call <server> <tool> [k=v ...]   Call a tool (prompts for arguments if omitted)
  read <server> <uri>              Read a resource
  prompt <server> <name> [k=v ...] Fetch a prompt
  ping <server>                    Check a server is alive
  query <text>                     Ask the model, letting it use any tool
  connect <name> <cmd|url>         Connect a new server
  disconnect <server>              Disconnect a server
  help                             Show this help
  exit                             Leave the shell
`)
}

// snapshotsFor resolves an optional server argument to snapshots: one
// server when named, all connected servers otherwise.
func (r *REPL) snapshotsFor(args []string) ([]registry.Snapshot, error) {
	if len(args) > 0 {
		snap, ok := r.registry.Get(args[0])
		if !ok {
			return nil, fmt.Errorf("server %s is not connected", args[0])
		}
		return []registry.Snapshot{snap}, nil
	}

	var snapshots []registry.Snapshot
	for _, id := range r.registry.ListIDs() {
		if snap, ok := r.registry.Get(id); ok {
			snapshots = append(snapshots, snap)
		}
	}
	return snapshots, nil
}

func (r *REPL) toolSchema(server, tool string) (mcp.ToolInputSchema, bool) {
	snap, ok := r.registry.Get(server)
	if !ok {
		return mcp.ToolInputSchema{}, false
	}
	for _, t := range snap.Tools {
		if t.Name == tool {
			return t.InputSchema, true
		}
	}
	return mcp.ToolInputSchema{}, false
}

// ask reads one line with a temporary prompt, restoring the shell prompt
// afterwards.
func (r *REPL) ask(prompt string) (string, error) {
	if r.rl == nil {
		return "", errors.New("no interactive input available")
	}
	r.rl.SetPrompt(prompt)
	defer r.rl.SetPrompt("conduit> ")
	return r.rl.Readline()
}

func (r *REPL) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleRounded)
	return t
}

func (r *REPL) completer() *readline.PrefixCompleter {
	serverItems := func() []readline.PrefixCompleterInterface {
		var items []readline.PrefixCompleterInterface
		for _, id := range r.registry.ListIDs() {
			items = append(items, readline.PcItem(id))
		}
		return items
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("servers"),
		readline.PcItem("tools", serverItems()...),
		readline.PcItem("resources", serverItems()...),
		readline.PcItem("prompts", serverItems()...),
		readline.PcItem("call", serverItems()...),
		readline.PcItem("read", serverItems()...),
		readline.PcItem("prompt", serverItems()...),
		readline.PcItem("ping", serverItems()...),
		readline.PcItem("query"),
		readline.PcItem("connect"),
		readline.PcItem("disconnect", serverItems()...),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

func (r *REPL) refreshCompleter() {
	if r.rl != nil {
		r.rl.Config.AutoComplete = r.completer()
	}
}

// truncate caps a string at max runes so a multibyte character is never
// split mid-sequence.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// filterInput blocks Ctrl+Z so the shell cannot be backgrounded into a
// broken terminal state.
func filterInput(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		return r, false
	}
	return r, true
}
