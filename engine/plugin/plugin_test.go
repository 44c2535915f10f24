package plugin

import (
	"log/slog"
	"testing"
)

type recordingPlugin struct {
	name     string
	started  []string
	modified bool
}

func (p *recordingPlugin) Name() string { return p.name }
func (p *recordingPlugin) OnIngestStart(datasetID string) {
	p.started = append(p.started, datasetID)
}
func (p *recordingPlugin) OnSampleIngested(sample map[string]any) map[string]any {
	p.modified = true
	sample["touched"] = p.name
	return sample
}

type panickingPlugin struct{}

func (panickingPlugin) Name() string { return "panicker" }
func (panickingPlugin) OnIngestStart(string) {
	panic("boom")
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.Default())
}

func TestDispatchIngestStartIsolatesPanics(t *testing.T) {
	r := newTestRegistry()
	good := &recordingPlugin{name: "good"}
	r.Register(good)
	r.Register(panickingPlugin{})

	r.DispatchIngestStart("dataset-1")

	if len(good.started) != 1 || good.started[0] != "dataset-1" {
		t.Fatalf("expected good plugin to observe the hook, got %+v", good.started)
	}
}

func TestDispatchSampleIngestedChains(t *testing.T) {
	r := newTestRegistry()
	r.Register(&recordingPlugin{name: "a"})
	r.Register(&recordingPlugin{name: "b"})

	out := r.DispatchSampleIngested(map[string]any{"id": "s1"})
	if out["touched"] != "b" {
		t.Fatalf("expected last plugin's transform to win, got %+v", out)
	}
}
