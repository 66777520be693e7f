// Package permission implements the Session Engine's permission control:
// consent for tool calls that can edit files, run bash commands, fetch
// the network, or reach outside the workspace.
//
// # Overview
//
// Every tool call resolves to one of three static actions before it
// runs: Allow, Deny, or Ask. Ask escalates to an asynchronous rendezvous
// with whatever client is attached to the session (a local UI, a
// headless approval policy, anything subscribed to permission.asked).
//
// # Manager
//
// Manager is the central component. It caches sticky decisions keyed by
// (sessionID, toolName) — not by permission type or tool alone, which
// would let one bash approval leak into unrelated bash invocations or
// one edit approval leak across tools. Manager owns all
// PendingPermissionRequest state; none of it survives a restart.
//
//	mgr := permission.NewManager(bus)
//	err := mgr.Check(ctx, sessionID, "bash", args, types.PermissionAsk)
//
// # Bash Command Parsing and Pattern Matching
//
// ParseBashCommand extracts command/subcommand/args so bash permissions
// can be scoped by wildcard pattern ("git commit *", "git *", "*").
//
// # Doom Loop Detection
//
// DoomLoopDetector flags DoomLoopThreshold identical consecutive tool
// calls within a session so the engine can surface a doom-loop warning
// instead of looping silently.
//
// # Thread Safety
//
// All exported types are safe for concurrent use across goroutines
// handling different sessions.
package permission
