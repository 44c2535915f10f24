// Package plugin implements the plugin host (C15): discovery of Go plugin
// objects from a configured directory, and fault-isolated hook dispatch.
package plugin

import (
	"log/slog"
	"plugin"
	"strings"
)

// Plugin is the contract a loaded .so must satisfy, resolved by symbol
// lookup rather than a Go interface (the standard plugin package has no
// other way to check shape at load time).
type Plugin interface {
	Name() string
}

// Hooks is the optional extension surface; a plugin implements zero or
// more of these by also satisfying the corresponding sub-interface.
type OnIngestStart interface {
	OnIngestStart(datasetID string)
}

type OnSampleIngested interface {
	// OnSampleIngested returns a possibly-modified copy of sample; the
	// default behaviour (a plugin that doesn't implement this) is identity.
	OnSampleIngested(sample map[string]any) map[string]any
}

type OnIngestComplete interface {
	OnIngestComplete(datasetID string, stats map[string]any)
}

type OnActivate interface {
	OnActivate()
}

type OnDeactivate interface {
	OnDeactivate()
}

// Registry holds the loaded plugins and dispatches hooks across all of
// them, isolating each call so one plugin's fault never stops another's.
type Registry struct {
	logger  *slog.Logger
	plugins []Plugin
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Discover scans dir for loadable .so plugin objects, loading each and
// recording any exported "Plugin" symbol that satisfies the Plugin
// interface. Load errors are logged and skipped, never fatal: a bad
// plugin must not prevent the process from starting.
func (r *Registry) Discover(dir string) error {
	entries, err := readPluginDir(dir)
	if err != nil {
		return err
	}
	for _, path := range entries {
		if !strings.HasSuffix(path, ".so") {
			continue
		}
		p, err := plugin.Open(path)
		if err != nil {
			r.logger.Warn("plugin: failed to open", "path", path, "error", err)
			continue
		}
		sym, err := p.Lookup("Plugin")
		if err != nil {
			r.logger.Warn("plugin: missing Plugin symbol", "path", path, "error", err)
			continue
		}
		impl, ok := sym.(Plugin)
		if !ok {
			r.logger.Warn("plugin: Plugin symbol does not implement plugin.Plugin", "path", path)
			continue
		}
		r.Register(impl)
	}
	return nil
}

// Register adds an already-constructed plugin, used both by Discover and
// directly by tests/in-process plugins that don't need dynamic loading.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	if activator, ok := p.(OnActivate); ok {
		r.isolate(p.Name(), "on_activate", activator.OnActivate)
	}
}

func (r *Registry) Deactivate() {
	for _, p := range r.plugins {
		if d, ok := p.(OnDeactivate); ok {
			r.isolate(p.Name(), "on_deactivate", d.OnDeactivate)
		}
	}
}

func (r *Registry) DispatchIngestStart(datasetID string) {
	for _, p := range r.plugins {
		if h, ok := p.(OnIngestStart); ok {
			name := p.Name()
			r.isolate(name, "on_ingest_start", func() { h.OnIngestStart(datasetID) })
		}
	}
}

func (r *Registry) DispatchIngestComplete(datasetID string, stats map[string]any) {
	for _, p := range r.plugins {
		if h, ok := p.(OnIngestComplete); ok {
			name := p.Name()
			r.isolate(name, "on_ingest_complete", func() { h.OnIngestComplete(datasetID, stats) })
		}
	}
}

// DispatchSampleIngested runs every plugin's transform in registration
// order, feeding each plugin's output into the next; a plugin that doesn't
// implement OnSampleIngested is identity.
func (r *Registry) DispatchSampleIngested(sample map[string]any) map[string]any {
	for _, p := range r.plugins {
		h, ok := p.(OnSampleIngested)
		if !ok {
			continue
		}
		name := p.Name()
		var out map[string]any
		ok2 := r.isolateResult(name, "on_sample_ingested", func() { out = h.OnSampleIngested(sample) })
		if ok2 && out != nil {
			sample = out
		}
	}
	return sample
}

func (r *Registry) isolate(pluginName, hook string, f func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("plugin hook panicked", "plugin", pluginName, "hook", hook, "recover", rec)
		}
	}()
	f()
}

func (r *Registry) isolateResult(pluginName, hook string, f func()) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("plugin hook panicked", "plugin", pluginName, "hook", hook, "recover", rec)
			ok = false
		}
	}()
	f()
	return true
}
