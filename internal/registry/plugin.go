package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/frumu/tandem/pkg/types"
)

// EngineVersion is the Session Engine's own semver, checked against a
// plugin manifest's MinEngineVersion constraint on registration.
const EngineVersion = "1.0.0"

// Plugin is a cooperative-config extension manifest (SPEC_FULL.md
// "Supplemented features" #2, grounded on tandem-core/src/plugins.rs).
// It has no code-execution or isolation boundary: it can only inject
// environment into a tool call's args, append text to a tool's output,
// and optionally force a tool's permission policy.
type Plugin struct {
	Name               string
	MinEngineVersion   string
	ShellEnv           map[string]string
	OutputSuffix       string
	PermissionOverride map[string]types.PermissionAction // toolName -> action
}

// PluginRegistry holds the set of active plugin manifests.
type PluginRegistry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewPluginRegistry constructs an empty PluginRegistry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{plugins: make(map[string]*Plugin)}
}

// Register validates a plugin's engine-version constraint and adds it.
// A plugin whose MinEngineVersion the running engine doesn't satisfy is
// rejected rather than silently loaded with unmet assumptions.
func (r *PluginRegistry) Register(p *Plugin) error {
	if p.MinEngineVersion != "" {
		constraint, err := semver.NewConstraint(">= " + p.MinEngineVersion)
		if err != nil {
			return fmt.Errorf("registry: plugin %s: invalid minEngineVersion %q: %w", p.Name, p.MinEngineVersion, err)
		}
		v, err := semver.NewVersion(EngineVersion)
		if err != nil {
			return fmt.Errorf("registry: invalid engine version %q: %w", EngineVersion, err)
		}
		if !constraint.Check(v) {
			return fmt.Errorf("registry: plugin %s requires engine >= %s, running %s", p.Name, p.MinEngineVersion, EngineVersion)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name] = p
	return nil
}

// List returns every registered plugin.
func (r *PluginRegistry) List() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	return out
}

// ApplyArgs prepends every plugin's shell_env as inline assignments to a
// bash tool call's command string, per §4.5.1 step 4 ("plugin argument
// injection"). The bash tool has no dedicated env field (it inherits
// os.Environ() wholesale); inline assignments are the shell-idiomatic way
// to scope extra variables to a single invocation. Non-bash tools and
// calls missing a string "command" key pass through unchanged.
func (r *PluginRegistry) ApplyArgs(toolName string, args map[string]any) map[string]any {
	if toolName != "bash" {
		return args
	}
	command, ok := args["command"].(string)
	if !ok {
		return args
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.plugins) == 0 {
		return args
	}

	var prefix strings.Builder
	for _, p := range r.plugins {
		for k, v := range p.ShellEnv {
			fmt.Fprintf(&prefix, "%s=%q ", k, v)
		}
	}
	if prefix.Len() == 0 {
		return args
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	out["command"] = prefix.String() + command
	return out
}

// Transform applies every plugin's output suffix, per §4.5.1 step 7
// ("plugin output transformation"). Order follows registration order is
// not guaranteed (map iteration); suffixes are independent by
// construction (appended, not interleaved).
func (r *PluginRegistry) Transform(output string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.plugins {
		if p.OutputSuffix != "" {
			output += p.OutputSuffix
		}
	}
	return output
}

// Override returns a plugin-forced permission action for toolName, if
// any plugin declares one, per §4.5.1 step 1's
// "pluginOverride(toolName) ?? permissionManager.evaluate(...)".
func (r *PluginRegistry) Override(toolName string) (types.PermissionAction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.plugins {
		if a, ok := p.PermissionOverride[toolName]; ok {
			return a, true
		}
	}
	return "", false
}
