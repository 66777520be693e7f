// Package permission is the Session Engine's PermissionManager: sticky
// allow/deny decisions keyed by (sessionID, toolName), async ask/reply
// rendezvous keyed by request id, bash pattern matching, and doom-loop
// detection (§4.3).
package permission

import (
	"fmt"

	"github.com/frumu/tandem/pkg/types"
)

// RejectedError is returned when a tool call is denied or the user
// rejects an outstanding ask.
type RejectedError struct {
	SessionID string
	Tool      string
	Message   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("permission denied for %s in session %s: %s", e.Tool, e.SessionID, e.Message)
}

// IsRejectedError reports whether err is a permission rejection.
func IsRejectedError(err error) bool {
	_, ok := err.(*RejectedError)
	return ok
}

// AgentPermissions is an agent's static permission policy, expanded from
// types.PermissionConfig (§6 config) into a resolved per-agent view.
type AgentPermissions struct {
	Edit        types.PermissionAction
	WebFetch    types.PermissionAction
	ExternalDir types.PermissionAction
	DoomLoop    types.PermissionAction
	Bash        map[string]types.PermissionAction // pattern -> action
}

// DefaultAgentPermissions asks for everything, matching the teacher's
// fail-closed-by-default posture.
func DefaultAgentPermissions() AgentPermissions {
	return AgentPermissions{
		Edit:        types.PermissionAsk,
		WebFetch:    types.PermissionAsk,
		ExternalDir: types.PermissionAsk,
		DoomLoop:    types.PermissionAsk,
		Bash:        map[string]types.PermissionAction{},
	}
}

// ActionForTool resolves an agent's static policy for a given tool name.
// Bash gets wildcard pattern matching against its command line (Ask when
// no command is given); edit and write use Edit, webfetch uses WebFetch,
// and every other tool gets Ask. ExternalDir is not consulted here.
func (p AgentPermissions) ActionForTool(toolName string, bashCmd *BashCommand) types.PermissionAction {
	switch toolName {
	case "bash":
		if bashCmd == nil {
			return types.PermissionAsk
		}
		return MatchBashPermission(*bashCmd, p.Bash)
	case "edit", "write":
		return p.Edit
	case "webfetch":
		return p.WebFetch
	default:
		return types.PermissionAsk
	}
}
