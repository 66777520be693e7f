// Package agent provides multi-agent configuration and management: the
// AgentRegistry's entries, their tool allow-lists, and their static
// permission policy (§4.3, §4.7, SPEC_FULL.md "Agent manifests").
package agent

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/frumu/tandem/internal/permission"
	"github.com/frumu/tandem/pkg/types"
)

// Agent represents an agent configuration.
type Agent struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Mode        Mode            `json:"mode"`
	BuiltIn     bool            `json:"builtIn"`
	Permission  AgentPermission `json:"permission"`
	Tools       map[string]bool `json:"tools"`
	Options     map[string]any  `json:"options,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"topP,omitempty"`
	Model       *ModelRef       `json:"model,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	Color       string          `json:"color,omitempty"`
}

// Mode represents the agent operation mode.
type Mode string

const (
	ModePrimary  Mode = "primary"
	ModeSubagent Mode = "subagent"
	ModeAll      Mode = "all"
)

// ModelRef references a specific model.
type ModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// AgentPermission defines agent-specific permissions.
type AgentPermission struct {
	Edit        types.PermissionAction            `json:"edit,omitempty"`
	Bash        map[string]types.PermissionAction `json:"bash,omitempty"`
	WebFetch    types.PermissionAction            `json:"webfetch,omitempty"`
	ExternalDir types.PermissionAction            `json:"external_directory,omitempty"`
	DoomLoop    types.PermissionAction            `json:"doom_loop,omitempty"`
}

// ToAgentPermissions converts the agent's manifest permission block into
// the permission package's resolved view, used by permission.Manager
// when it doesn't yet have a sticky decision for (sessionID, toolName).
func (a *Agent) ToAgentPermissions() permission.AgentPermissions {
	return permission.AgentPermissions{
		Edit:        a.Permission.Edit,
		WebFetch:    a.Permission.WebFetch,
		ExternalDir: a.Permission.ExternalDir,
		DoomLoop:    a.Permission.DoomLoop,
		Bash:        a.Permission.Bash,
	}
}

// ToolEnabled checks if a tool is enabled for this agent.
func (a *Agent) ToolEnabled(toolID string) bool {
	if enabled, ok := a.Tools[toolID]; ok {
		return enabled
	}

	for pattern, enabled := range a.Tools {
		if matchWildcard(pattern, toolID) {
			return enabled
		}
	}

	return true
}

// CheckBashPermission checks bash command permission for this agent.
func (a *Agent) CheckBashPermission(command string) types.PermissionAction {
	for pattern, action := range a.Permission.Bash {
		if matchWildcard(pattern, command) {
			return action
		}
	}
	return types.PermissionAsk
}

// IsPrimary returns true if the agent can be used as a primary agent.
func (a *Agent) IsPrimary() bool {
	return a.Mode == ModePrimary || a.Mode == ModeAll
}

// IsSubagent returns true if the agent can be used as a subagent.
func (a *Agent) IsSubagent() bool {
	return a.Mode == ModeSubagent || a.Mode == ModeAll
}

// Clone creates a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	clone := &Agent{
		Name:        a.Name,
		Description: a.Description,
		Mode:        a.Mode,
		BuiltIn:     a.BuiltIn,
		Temperature: a.Temperature,
		TopP:        a.TopP,
		Prompt:      a.Prompt,
		Color:       a.Color,
	}

	clone.Permission = AgentPermission{
		Edit:        a.Permission.Edit,
		WebFetch:    a.Permission.WebFetch,
		ExternalDir: a.Permission.ExternalDir,
		DoomLoop:    a.Permission.DoomLoop,
	}
	if a.Permission.Bash != nil {
		clone.Permission.Bash = make(map[string]types.PermissionAction)
		for k, v := range a.Permission.Bash {
			clone.Permission.Bash[k] = v
		}
	}

	if a.Tools != nil {
		clone.Tools = make(map[string]bool)
		for k, v := range a.Tools {
			clone.Tools[k] = v
		}
	}

	if a.Options != nil {
		clone.Options = make(map[string]any)
		for k, v := range a.Options {
			clone.Options[k] = v
		}
	}

	if a.Model != nil {
		clone.Model = &ModelRef{ProviderID: a.Model.ProviderID, ModelID: a.Model.ModelID}
	}

	return clone
}

// matchWildcard checks if a string matches a wildcard pattern.
// For simple patterns (* at start/end), uses string matching.
// For complex patterns (containing **), uses doublestar.
func matchWildcard(pattern, s string) bool {
	if pattern == "*" {
		return true
	}

	if strings.Contains(pattern, "**") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}

	if strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(s, prefix)
	}

	if strings.HasPrefix(pattern, "*") && !strings.HasSuffix(pattern, "*") {
		suffix := strings.TrimPrefix(pattern, "*")
		return strings.HasSuffix(s, suffix)
	}

	if strings.Contains(pattern, "*") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}

	return pattern == s
}

// BuiltInAgents returns the default agent manifests (SPEC_FULL.md
// "Agent manifests").
func BuiltInAgents() map[string]*Agent {
	return map[string]*Agent{
		"build": {
			Name:        "build",
			Description: "Primary agent for executing tasks, writing code, and making changes",
			Mode:        ModePrimary,
			BuiltIn:     true,
			Permission: AgentPermission{
				Edit:        types.PermissionAllow,
				Bash:        map[string]types.PermissionAction{"*": types.PermissionAllow},
				WebFetch:    types.PermissionAllow,
				ExternalDir: types.PermissionAsk,
				DoomLoop:    types.PermissionAsk,
			},
			Tools: map[string]bool{"*": true},
		},
		"plan": {
			Name:        "plan",
			Description: "Planning agent for analysis and exploration without making changes",
			Mode:        ModePrimary,
			BuiltIn:     true,
			Permission: AgentPermission{
				Edit: types.PermissionDeny,
				Bash: map[string]types.PermissionAction{
					"grep*":      types.PermissionAllow,
					"find*":      types.PermissionAllow,
					"ls*":        types.PermissionAllow,
					"cat*":       types.PermissionAllow,
					"git status": types.PermissionAllow,
					"git diff*":  types.PermissionAllow,
					"git log*":   types.PermissionAllow,
					"*":          types.PermissionDeny,
				},
				WebFetch:    types.PermissionAllow,
				ExternalDir: types.PermissionDeny,
				DoomLoop:    types.PermissionDeny,
			},
			Tools: map[string]bool{
				"read": true, "glob": true, "grep": true, "ls": true,
				"bash": true, "edit": false, "write": false,
			},
		},
		"general": {
			Name:        "general",
			Description: "General-purpose subagent for searches and exploration",
			Mode:        ModeSubagent,
			BuiltIn:     true,
			Permission: AgentPermission{
				Edit:        types.PermissionDeny,
				Bash:        map[string]types.PermissionAction{"*": types.PermissionDeny},
				WebFetch:    types.PermissionAllow,
				ExternalDir: types.PermissionDeny,
				DoomLoop:    types.PermissionDeny,
			},
			Tools: map[string]bool{
				"read": true, "glob": true, "grep": true, "webfetch": true,
				"bash": false, "edit": false, "write": false,
			},
		},
		"explore": {
			Name:        "explore",
			Description: "Fast agent specialized for codebase exploration",
			Mode:        ModeSubagent,
			BuiltIn:     true,
			Permission: AgentPermission{
				Edit:        types.PermissionDeny,
				Bash:        map[string]types.PermissionAction{"*": types.PermissionDeny},
				WebFetch:    types.PermissionDeny,
				ExternalDir: types.PermissionDeny,
				DoomLoop:    types.PermissionDeny,
			},
			Tools: map[string]bool{
				"read": true, "glob": true, "grep": true, "ls": true,
				"bash": false, "edit": false,
			},
		},
	}
}
