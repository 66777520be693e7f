package registry

import (
	"github.com/frumu/tandem/internal/agent"
	"github.com/frumu/tandem/internal/provider"
	"github.com/frumu/tandem/internal/tool"
)

// Set bundles the four catalogs the engine consults per prompt turn:
// agents, tools, providers (each a standalone package already), plus
// this package's plugin manifests. It exists so internal/engine.Engine
// can take one constructor argument instead of four.
type Set struct {
	Agents    *agent.Registry
	Tools     *tool.Registry
	Providers *provider.Registry
	Plugins   *PluginRegistry
}

// NewSet bundles already-constructed catalogs into a Set. Plugins may be
// nil, in which case an empty PluginRegistry is used.
func NewSet(agents *agent.Registry, tools *tool.Registry, providers *provider.Registry, plugins *PluginRegistry) *Set {
	if plugins == nil {
		plugins = NewPluginRegistry()
	}
	return &Set{Agents: agents, Tools: tools, Providers: providers, Plugins: plugins}
}
