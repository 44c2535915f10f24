package scanparse

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/visionset/lens/engine/objstore"
	"github.com/visionset/lens/engine/store"
)

// DetectionDirParser reads a directory of per-image detection JSON files:
// one file per sample, normalised [0,1] bbox coordinates converted to
// pixels using a width/height lookup built from the samples table (§4.3).
type DetectionDirParser struct {
	fs  objstore.FS
	dir string
	// dims maps filename -> (width, height), looked up by the caller from
	// the samples already ingested for this dataset.
	dims map[string][2]int
}

func NewDetectionDirParser(fs objstore.FS, dir string, dims map[string][2]int) *DetectionDirParser {
	return &DetectionDirParser{fs: fs, dir: dir, dims: dims}
}

func (p *DetectionDirParser) FormatName() string { return "detection_dir" }

type detectionFile struct {
	Filename   string                   `json:"filename"`
	Categories map[string]string        `json:"categories"`
	Annotations []detectionFileAnnotation `json:"annotations"`
	Info       *detectionFileInfo       `json:"info"`
}

type detectionFileAnnotation struct {
	BBox       detectionFileBBox `json:"bbox"`
	Confidence *float64          `json:"confidence"`
	ClassID    *int              `json:"class_id"`
}

type detectionFileBBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type detectionFileInfo struct {
	AnnotationsSource string `json:"annotations_source"`
	CreatedAt         string `json:"created_at"`
}

// BuildAnnotationBatches walks every ".json" file in the directory,
// converting each normalised bbox to pixel coordinates via the width/height
// looked up by filename. Files that cannot be read or parsed, or whose
// sample has no known dimensions, are skipped rather than failed; an
// annotation whose class_id has no matching category is kept under the
// category name "unknown".
func (p *DetectionDirParser) BuildAnnotationBatches(ctx context.Context, emit AnnotationBatchFunc) (int, error) {
	entries, err := p.fs.ListDirDetail(ctx, p.dir)
	if err != nil {
		return 0, fmt.Errorf("detection_dir: list %s: %w", p.dir, err)
	}

	skipped := 0
	batcher := &annotationBatcher{emit: emit}
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, ".json") {
			continue
		}
		filePath := objstore.ResolveImagePath(p.dir, e.Name)
		raw, err := p.fs.ReadBytes(ctx, filePath)
		if err != nil {
			skipped++
			continue
		}
		var df detectionFile
		if err := json.Unmarshal(raw, &df); err != nil {
			skipped++
			continue
		}
		filename := df.Filename
		if filename == "" {
			filename = strings.TrimSuffix(e.Name, path.Ext(e.Name))
		}
		wh, ok := p.dims[filename]
		if !ok {
			skipped++
			continue
		}
		width, height := float64(wh[0]), float64(wh[1])
		source := "ground_truth"
		if df.Info != nil && df.Info.AnnotationsSource != "" {
			source = df.Info.AnnotationsSource
		}
		sampleID := sampleIDFromFilename(filename)
		for _, a := range df.Annotations {
			name := "unknown"
			if a.ClassID != nil {
				if n, ok := df.Categories[fmt.Sprint(*a.ClassID)]; ok {
					name = n
				}
			}
			x := a.BBox.X * width
			y := a.BBox.Y * height
			w := a.BBox.W * width
			h := a.BBox.H * height
			row := store.AnnotationRow{
				ID:           uuid.NewString(),
				SampleID:     sampleID,
				CategoryName: name,
				BBoxX:        x, BBoxY: y, BBoxW: w, BBoxH: h,
				Area:       w * h,
				Source:     source,
				Confidence: a.Confidence,
			}
			if err := batcher.add(row); err != nil {
				return skipped, err
			}
		}
	}
	if err := batcher.Flush(); err != nil {
		return skipped, err
	}
	return skipped, nil
}
