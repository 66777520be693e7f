package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frumu/tandem/internal/agent"
	"github.com/frumu/tandem/internal/cancel"
	"github.com/frumu/tandem/internal/command"
	"github.com/frumu/tandem/internal/config"
	"github.com/frumu/tandem/internal/engine"
	"github.com/frumu/tandem/internal/event"
	"github.com/frumu/tandem/internal/lease"
	"github.com/frumu/tandem/internal/logging"
	"github.com/frumu/tandem/internal/permission"
	"github.com/frumu/tandem/internal/provider"
	"github.com/frumu/tandem/internal/registry"
	"github.com/frumu/tandem/internal/server"
	"github.com/frumu/tandem/internal/session"
	"github.com/frumu/tandem/internal/sharing"
	"github.com/frumu/tandem/internal/storage"
	"github.com/frumu/tandem/internal/tool"
)

func serveCmd() *cobra.Command {
	var (
		port      int
		directory string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Session Engine HTTP daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, directory)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&directory, "directory", "", "working directory (default: cwd)")
	return cmd
}

func runServe(port int, directory string) error {
	logCfg := logging.DefaultConfig()
	if verbose {
		logCfg.Level = logging.DebugLevel
	}
	logging.Init(logCfg)

	workDir := directory
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("tandemd: getwd: %w", err)
		}
		workDir = wd
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return fmt.Errorf("tandemd: ensure paths: %w", err)
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return fmt.Errorf("tandemd: load config: %w", err)
	}

	store, err := storage.New(paths.StoragePath())
	if err != nil {
		return fmt.Errorf("tandemd: init storage: %w", err)
	}

	ctx := context.Background()
	providerReg, err := provider.InitializeProviders(ctx, appConfig)
	if err != nil {
		logging.Warn().Err(err).Msg("some providers failed to initialize")
	}

	agentReg := agent.NewRegistry()
	toolReg := tool.DefaultRegistry(workDir, store)
	toolReg.RegisterTaskTool(agentReg)
	pluginReg := registry.NewPluginRegistry()
	catalogs := registry.NewSet(agentReg, toolReg, providerReg, pluginReg)

	mcpClient := connectMCPServers(ctx, appConfig, toolReg)

	bus := event.New()
	permMgr := permission.NewManager(bus)
	cancelReg := cancel.NewRegistry()
	leaseMgr := lease.NewManager(bus)
	defer leaseMgr.Close()
	defer mcpClient.Close()

	shareMgr := sharing.NewManager(fmt.Sprintf("http://localhost:%d/share", port))
	cmdExecutor := command.NewExecutor(workDir, appConfig)

	eng := engine.New(store, bus, permMgr, cancelReg, catalogs)
	sessionSvc := session.NewService(store, eng, permMgr, cancelReg, bus, shareMgr, cmdExecutor)

	serverConfig := server.DefaultConfig()
	serverConfig.Port = port
	serverConfig.Directory = workDir

	srv := server.New(serverConfig, appConfig, sessionSvc, leaseMgr, permMgr, providerReg, catalogs, bus, paths.AuthPath())

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Int("port", port).Str("directory", workDir).Msg("tandemd listening")
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("tandemd: server error: %w", err)
		}
	case <-quit:
		logging.Info().Msg("shutting down")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("tandemd: shutdown: %w", err)
		}
	}
	return nil
}
