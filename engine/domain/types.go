// Package domain defines the core entities, invariants, and validation for
// the dataset inspection pipeline. It is the validation gate at every
// mutation entry point (ingestion, prediction import, annotation edits,
// triage writes).
package domain

import "time"

// Format is the source annotation format a dataset was ingested from.
type Format string

const (
	FormatCOCO                 Format = "coco"
	FormatClassificationJSONL  Format = "classification_jsonl"
)

// DatasetType distinguishes detection datasets (bounding boxes) from
// classification datasets (single/multi label).
type DatasetType string

const (
	DatasetTypeDetection     DatasetType = "detection"
	DatasetTypeClassification DatasetType = "classification"
)

// Split is the train/val/test partition tag on a sample.
type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// ValidSplits is the set of recognised split values.
var ValidSplits = map[Split]bool{SplitTrain: true, SplitVal: true, SplitTest: true}

// GroundTruthSource is the reserved annotation source designating
// ground-truth rows. Any other source string names a prediction run.
const GroundTruthSource = "ground_truth"

// TriagePrefix is the sample-tag prefix reserved for triage state.
const TriagePrefix = "triage:"

// TriageLabel is the enumerated set of per-annotation triage overrides.
type TriageLabel string

const (
	TriageTP      TriageLabel = "tp"
	TriageFP      TriageLabel = "fp"
	TriageFN      TriageLabel = "fn"
	TriageMistake TriageLabel = "mistake"
)

// ValidTriageLabels is the set of recognised override labels.
var ValidTriageLabels = map[TriageLabel]bool{
	TriageTP: true, TriageFP: true, TriageFN: true, TriageMistake: true,
}

// SampleTriageTag renders a TriageLabel (or "annotated") as a full sample tag.
func SampleTriageTag(label TriageLabel) string { return TriagePrefix + string(label) }

// TagAnnotated is the tag set alongside any override, marking the sample as
// having at least one annotation-level triage decision.
const TagAnnotated = TriagePrefix + "annotated"

// Dataset is the top-level corpus entity. Counters are derived but stored
// for O(1) read (I2) and MUST be kept consistent by every mutation path.
type Dataset struct {
	ID               string
	Name             string
	AnnotationPath   string
	ImageBasePath    string
	Format           Format
	DatasetType      DatasetType
	ImageCount       int
	AnnotationCount  int
	CategoryCount    int
	PredictionCount  int
	CreatedAt        time.Time
	Metadata         map[string]any
}

// Sample is one image within a dataset.
type Sample struct {
	DatasetID     string
	ID            string
	Filename      string
	Width         int
	Height        int
	ThumbnailPath string
	Split         *Split
	Tags          []string // insertion-order, no duplicates (multiset semantics per spec)
	ImageDir      string
}

// Annotation is one bounding box (detection) or label (classification) row.
type Annotation struct {
	DatasetID    string
	ID           string
	SampleID     string
	CategoryName string
	BBoxX        float64
	BBoxY        float64
	BBoxW        float64
	BBoxH        float64
	Area         float64
	IsCrowd      bool
	Source       string // "ground_truth" or a run name
	Confidence   *float64
}

// IsPrediction reports whether this row is a prediction (non-ground-truth).
func (a Annotation) IsPrediction() bool { return a.Source != GroundTruthSource }

// Category is a (dataset_id, category_id, name) row retained for
// round-tripping the source format's integer ids.
type Category struct {
	DatasetID      string
	CategoryID     int
	Name           string
	Supercategory  string
}

// Embedding is a fixed-length vector plus an optional 2-D projection.
type Embedding struct {
	SampleID  string
	DatasetID string
	ModelName string
	Vector    []float32
	X         *float64
	Y         *float64
}

// SavedView persists an opaque filter-state blob under a name.
type SavedView struct {
	ID        string
	DatasetID string
	Name      string
	State     map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AnnotationTriageOverride is a user-supplied label superseding the
// auto-computed per-annotation label at read time (I4).
type AnnotationTriageOverride struct {
	AnnotationID string
	DatasetID    string
	SampleID     string
	Label        TriageLabel
	CreatedAt    time.Time
}

// BBox is an axis-aligned box in absolute image pixels, used throughout the
// evaluator (C7-C9) independently of the Annotation row shape.
type BBox struct {
	X, Y, W, H float64
}

// Area returns W*H, clamped to 0 for degenerate boxes.
func (b BBox) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// XYXY converts an (x,y,w,h) box to (x1,y1,x2,y2) form.
func (b BBox) XYXY() (x1, y1, x2, y2 float64) {
	return b.X, b.Y, b.X + b.W, b.Y + b.H
}
