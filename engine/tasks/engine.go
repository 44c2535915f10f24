// Package tasks implements the long-running task engine (C11): embed,
// reduce, near-duplicate detection and auto-tag, each launched against a
// dataset and polled for progress rather than streamed (unlike ingest's
// generator shape in engine/ingest, §4.11's progress contract is a
// request/poll pair: POST to launch, GET to read a snapshot).
//
// One task of a given type may run per dataset at a time; launching a
// second one while the first is still running is a conflict (§4.11
// "Launch/cancellation contract").
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/visionset/lens/engine/capability"
	"github.com/visionset/lens/engine/dedupe"
	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/objstore"
	"github.com/visionset/lens/engine/store"
	"github.com/visionset/lens/engine/vectorindex"
	"github.com/visionset/lens/pkg/metrics"
	"github.com/visionset/lens/pkg/resilience"
)

// Type identifies which of the four task kinds a launch/progress call
// refers to.
type Type string

const (
	TypeEmbed         Type = "embed"
	TypeReduce        Type = "reduce"
	TypeNearDuplicate Type = "near_duplicate"
	TypeAutoTag       Type = "auto_tag"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Progress is a point-in-time snapshot of one running or finished task.
type Progress struct {
	Status    Status
	Processed int
	Total     int
	Message   string
}

// key identifies one (dataset, task type) slot; only one task may occupy
// a slot in the "running" state at a time.
type key struct {
	DatasetID string
	Type      Type
}

// vectorIndex is the subset of *vectorindex.Index the near-duplicate task
// calls; declared locally so this package can be tested against a fake
// without a live Qdrant connection.
type vectorIndex interface {
	EnsureCollection(ctx context.Context, datasetID string, dims int) error
	Query(ctx context.Context, datasetID string, vector []float32, k int, excludeSampleID string) ([]vectorindex.SearchResult, error)
}

// Deps are the task engine's process-wide collaborators.
type Deps struct {
	Store     *store.Store
	FS        *objstore.Registry
	VecIndex  vectorIndex
	Embedder  capability.Embedder
	Reducer   capability.Reducer
	Tagger    capability.VisionTagger
	ModelName string // keys the embeddings table and the vector index collection sync
	// Metrics is optional; a nil Registry disables instrumentation.
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

// Engine launches and tracks the four task kinds. Zero value is not
// usable; construct with New.
type Engine struct {
	deps Deps

	mu       sync.Mutex
	progress map[key]Progress
	dedupe   map[string][]dedupe.Group // last near-duplicate result per dataset

	ctx    context.Context
	cancel context.CancelFunc

	breaker *resilience.Breaker
}

// New wires an Engine. The returned Engine owns a background context;
// call Shutdown to cancel every in-flight task on process exit (running
// tasks terminate without persisting further progress, per §4.11).
func New(deps Deps) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		deps:     deps,
		progress: map[key]Progress{},
		dedupe:   map[string][]dedupe.Group{},
		ctx:      ctx,
		cancel:   cancel,
		breaker:  resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

// Shutdown cancels the engine's background context; every task goroutine
// observes ctx.Err() on its next iteration and returns without marking
// itself complete.
func (e *Engine) Shutdown() {
	e.cancel()
}

// Snapshot returns the current progress for (datasetID, taskType), or
// false if that task has never been launched.
func (e *Engine) Snapshot(datasetID string, taskType Type) (Progress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.progress[key{DatasetID: datasetID, Type: taskType}]
	return p, ok
}

// reportFunc updates a running task's progress snapshot.
type reportFunc func(processed, total int, message string)

// launch is the shared check-and-set gate: reject with KindConflict if a
// task of this type is already running for the dataset, otherwise mark it
// running and spawn work in the background. report mutates the snapshot
// under the engine's mutex, so readers never observe a torn write. work's
// returned error becomes the task's terminal state; a nil error completes
// it, context.Canceled (process shutdown) leaves no terminal state behind.
func (e *Engine) launch(datasetID string, taskType Type, work func(ctx context.Context, report reportFunc) error) error {
	k := key{DatasetID: datasetID, Type: taskType}

	e.mu.Lock()
	if existing, ok := e.progress[k]; ok && existing.Status == StatusRunning {
		e.mu.Unlock()
		return domain.NewError(domain.KindConflict, "task_type", fmt.Errorf("%s is already running for dataset %s", taskType, datasetID))
	}
	e.progress[k] = Progress{Status: StatusRunning}
	e.mu.Unlock()

	e.countMetric(metrics.WithLabels("lens_tasks_launched_total", "task_type", string(taskType)), "Total tasks launched")

	report := func(processed, total int, message string) {
		e.mu.Lock()
		e.progress[k] = Progress{Status: StatusRunning, Processed: processed, Total: total, Message: message}
		e.mu.Unlock()
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.mu.Lock()
				e.progress[k] = Progress{Status: StatusError, Message: fmt.Sprintf("panic: %v", r)}
				e.mu.Unlock()
				e.deps.Logger.Error("task panicked", "task_type", taskType, "dataset_id", datasetID, "recovered", r)
			}
		}()
		err := work(e.ctx, report)
		e.complete(k, err)
	}()

	return nil
}

// complete marks k as finished, preserving the last reported
// processed/total counts.
func (e *Engine) complete(k key, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.progress[k]
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return // shutdown: leave no terminal state behind (§4.11)
		}
		e.progress[k] = Progress{Status: StatusError, Processed: prev.Processed, Total: prev.Total, Message: err.Error()}
		e.countMetric(metrics.WithLabels("lens_tasks_failed_total", "task_type", string(k.Type)), "Total tasks that ended in error")
		return
	}
	e.progress[k] = Progress{Status: StatusComplete, Processed: prev.Processed, Total: prev.Total}
	e.countMetric(metrics.WithLabels("lens_tasks_completed_total", "task_type", string(k.Type)), "Total tasks completed successfully")
}

// countMetric increments a named counter if a metrics registry is
// configured; instrumentation is a no-op when Deps.Metrics is nil.
func (e *Engine) countMetric(name, help string) {
	if e.deps.Metrics == nil {
		return
	}
	e.deps.Metrics.Counter(name, help).Inc()
}
