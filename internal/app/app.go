// Package app bootstraps and wires the application: configuration, logging,
// the server registry, the dispatcher, the model backend and the
// orchestrator.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"conduit/internal/config"
	"conduit/internal/dispatch"
	"conduit/internal/llm"
	"conduit/internal/mcpclient"
	"conduit/internal/orchestrator"
	"conduit/internal/registry"
	"conduit/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// startupConnectTimeout bounds the whole startup fan-out, not individual
// servers; slow servers already have the per-call discovery timeout.
const startupConnectTimeout = 60 * time.Second

// Options controls application bootstrap.
type Options struct {
	ConfigPath string // empty means the default location
	Debug      bool
	Silent     bool
}

// Application holds the wired components for one process lifetime.
type Application struct {
	Config       config.Config
	Registry     *registry.Registry
	Dispatcher   *dispatch.Dispatcher
	Orchestrator *orchestrator.Orchestrator
}

// New loads configuration, initializes logging and wires all components.
// No server connections are made yet; call ConnectAll for that.
func New(opts Options) (*Application, error) {
	logLevel := logging.LevelInfo
	if opts.Debug {
		logLevel = logging.LevelDebug
	}
	var logOutput io.Writer = os.Stderr
	if opts.Silent {
		logOutput = io.Discard
	}
	logging.Init(logLevel, logOutput)

	configPath := opts.ConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	reg := registry.New(registry.WithClientFactory(mcpclient.New))
	disp := dispatch.New(reg)

	var backend llm.ModelBackend
	if cfg.HasModelBackend() {
		backend = llm.NewAnthropicClient(cfg.Model.APIKey, cfg.Model.Model)
		logging.Debug("Bootstrap", "Model backend enabled: %s", cfg.Model.Model)
	} else {
		logging.Info("Bootstrap", "No model API key configured, agentic queries are disabled")
	}

	return &Application{
		Config:       cfg,
		Registry:     reg,
		Dispatcher:   disp,
		Orchestrator: orchestrator.New(reg, disp, backend),
	}, nil
}

// ConnectAll connects every configured server concurrently. Each server is
// independently fallible: failures are logged per server and returned in
// the summary, never aborting the others. The returned error is non-nil
// only when servers were configured and none connected.
func (a *Application) ConnectAll(ctx context.Context) error {
	if len(a.Config.Servers) == 0 {
		logging.Info("Bootstrap", "No servers configured")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, startupConnectTimeout)
	defer cancel()

	var g errgroup.Group
	for _, server := range a.Config.Servers {
		g.Go(func() error {
			if err := a.Registry.Connect(ctx, server.Name, server.Descriptor()); err != nil {
				logging.Error("Bootstrap", err, "Failed to connect server %s", server.Name)
				return nil
			}
			snap, _ := a.Registry.Get(server.Name)
			logging.Info("Bootstrap", "Connected %s: %d tools, %d resources, %d prompts",
				server.Name, len(snap.Tools), len(snap.Resources), len(snap.Prompts))
			return nil
		})
	}
	g.Wait()

	if len(a.Registry.ListIDs()) == 0 {
		return fmt.Errorf("none of the %d configured servers connected", len(a.Config.Servers))
	}
	return nil
}

// Shutdown disconnects all servers in reverse connect order.
func (a *Application) Shutdown() {
	logging.Info("Bootstrap", "Shutting down")
	a.Registry.DisconnectAll()
}
