// Package engine implements the Session Engine's core algorithm: the
// EngineLoop that turns a submitted prompt into a sequence of model
// completions and tool executions (§4.5).
//
// # Overview
//
// Engine bundles the durable store, event bus, permission manager,
// cancellation registry, and the agent/tool/provider/plugin catalogs.
// RunPromptAsync and SubmitMessage are the entry points: a turn is gated through
// the cancellation registry, takes the fast path for an explicit
// "/tool NAME JSON_ARGS" command, or otherwise runs the bounded
// agent loop (stream a completion, parse a tool call out of it, execute
// with permission, feed the result back) until the model stops asking
// for tools.
//
// # Tool execution
//
// executeToolWithPermission (§4.5.1) is the one path by which a tool
// call reaches Tool.Execute: doom-loop check, plugin/static/sticky
// policy resolution, the ask-and-wait rendezvous through
// permission.Manager, plugin argument injection, execution, tool-specific
// post-execution side effects (todo persistence, question requests, diff
// recording), plugin output transformation, and truncation. Tools
// themselves hold no storage or event-bus handle; all of that is this
// package's responsibility.
//
// # History and text bounds
//
// compact (§4.5.2) and truncate (§4.5.3) are pure functions kept free of
// any engine state so they're trivially testable in isolation.
package engine
