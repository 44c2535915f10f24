// Package ingest implements the ingestion orchestrator (C5): parse → bulk
// insert → update dataset aggregates → backfill thumbnails → fire plugin
// hooks, streaming progress the whole way. Contract and stage ordering
// follow §4.5; the progress-as-generator shape follows §9's "Coroutines →
// streams" guidance.
package ingest

import (
	"log/slog"

	"github.com/visionset/lens/engine/capability"
	"github.com/visionset/lens/engine/objstore"
	"github.com/visionset/lens/engine/plugin"
	"github.com/visionset/lens/engine/store"
	"github.com/visionset/lens/pkg/metrics"
)

// Stage names, in the order P10 requires.
const (
	StageCategories         = "categories"
	StageParsingImages      = "parsing_images"
	StageParsingAnnotations = "parsing_annotations"
	StageThumbnails         = "thumbnails"
	StageComplete           = "complete"
	StageError              = "error"
)

// Progress is one event in the lazy sequence ingest() produces.
type Progress struct {
	Stage   string
	Current int
	Total   int // -1 when unknown
	Message string
}

// ThumbnailBackfillCap bounds how many missing thumbnails one ingestion
// run will generate (§4.5).
const ThumbnailBackfillCap = 500

// Request parameterises a single-split ingest call.
type Request struct {
	AnnotationPath string
	ImageDir       string
	DatasetName    string
	Format         string // "coco" | "classification_jsonl"
	Split          *string
	DatasetID      string // empty means "generate one"
}

// Deps are the orchestrator's process-wide collaborators, injected rather
// than ambient (§9 "Global state").
type Deps struct {
	Store    *store.Store
	FS       *objstore.Registry
	Plugins  *plugin.Registry
	Codec    capability.ThumbnailCodec
	// CacheDir is where resized image bytes are persisted, keyed by
	// ThumbnailCachePath; objstore.FS has no write side, so the thumbnail
	// cache is a plain local directory instead of going through it.
	CacheDir string
	// Metrics is optional; a nil Registry disables instrumentation rather
	// than requiring every caller (including tests) to wire one up.
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

// Orchestrator drives ingest() and ingest_splits().
type Orchestrator struct {
	deps Deps
}

func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// parser is the unified shape every format adapter presents to the
// orchestrator (§9 "Inheritance → sum types / capabilities": one interface
// per format, dispatched by the format field on the request).
type parser interface {
	ParseCategories() ([]store.CategoryRow, map[int]string, error)
	BuildImageBatches(split *string, emit func([]store.ImageRow) error) (int, error)
	BuildAnnotationBatches(categoryLookup map[int]string, emit func([]store.AnnotationRow) error) (int, error)
}
