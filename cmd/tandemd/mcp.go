package main

import (
	"context"

	"github.com/frumu/tandem/internal/logging"
	"github.com/frumu/tandem/internal/mcp"
	"github.com/frumu/tandem/internal/tool"
	"github.com/frumu/tandem/pkg/types"
)

// connectMCPServers bridges every enabled entry in appConfig.MCP into an
// MCP client and registers each server's tools into toolReg, so remote
// tool sources join the same agent loop as the built-in tools (§4.2's
// "tools" catalog, SPEC_FULL.md's MCP domain-stack wiring). A server that
// fails to connect is skipped, not fatal: the engine still starts with
// whatever tool sources did connect.
func connectMCPServers(ctx context.Context, appConfig *types.Config, toolReg *tool.Registry) *mcp.Client {
	client := mcp.NewClient()
	for name, cfg := range appConfig.MCP {
		if cfg.Enabled != nil && !*cfg.Enabled {
			continue
		}
		mcpCfg := &mcp.Config{
			Enabled:     true,
			Type:        mcp.TransportType(cfg.Type),
			URL:         cfg.URL,
			Command:     cfg.Command,
			Headers:     cfg.Headers,
			Environment: cfg.Environment,
		}
		if err := client.AddServer(ctx, name, mcpCfg); err != nil {
			logging.Warn().Str("server", name).Err(err).Msg("mcp server failed to connect")
			continue
		}
	}
	for _, t := range client.Tools() {
		toolReg.Register(mcp.NewMCPToolWrapper(t, client))
	}
	return client
}
