// Package registry is the read-mostly catalog layer SPEC_FULL.md groups
// as "Agent/Plugin/Tool/Provider registries". The agent, tool, and
// provider catalogs already exist as focused packages
// (internal/agent.Registry, internal/tool.Registry,
// internal/provider.Registry) — this package does not re-home them, it
// adds the one catalog the distilled spec's §4.5.1 references but never
// defines (plugin manifests) and a thin Set that bundles references to
// all four for callers, like internal/engine, that need one handle.
package registry
