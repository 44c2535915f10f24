package triage

import (
	"testing"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/eval"
)

func box(x, y, w, h float64) domain.BBox { return domain.BBox{X: x, Y: y, W: w, H: h} }

func TestWorstImagesRanksByComposite(t *testing.T) {
	gts := []eval.GT{
		{ID: "g1", SampleID: "s1", Class: "car", Box: box(0, 0, 10, 10)},
		{ID: "g2", SampleID: "s2", Class: "car", Box: box(0, 0, 10, 10)},
	}
	preds := []eval.Pred{
		// s1: one wrong-class high-confidence box overlapping g1 exactly -> label_error
		{ID: "p1", SampleID: "s1", Class: "truck", Box: box(0, 0, 10, 10), Confidence: 0.9},
		// s2: perfect match, no errors
		{ID: "p2", SampleID: "s2", Class: "car", Box: box(0, 0, 10, 10), Confidence: 0.9},
	}

	scores := WorstImages(gts, preds, 0.5, 0.0, 10)
	if len(scores) == 0 || scores[0].SampleID != "s1" {
		t.Fatalf("expected s1 ranked worst, got %+v", scores)
	}
	if scores[0].ErrCount == 0 {
		t.Fatalf("expected s1 to have errors, got %+v", scores[0])
	}
}

func TestWorstImagesRespectsTopN(t *testing.T) {
	var gts []eval.GT
	var preds []eval.Pred
	for i := 0; i < 5; i++ {
		sid := string(rune('a' + i))
		gts = append(gts, eval.GT{ID: "g" + sid, SampleID: sid, Class: "car", Box: box(0, 0, 10, 10)})
		preds = append(preds, eval.Pred{ID: "p" + sid, SampleID: sid, Class: "truck", Box: box(0, 0, 10, 10), Confidence: 0.9})
	}
	scores := WorstImages(gts, preds, 0.5, 0.0, 2)
	if len(scores) != 2 {
		t.Fatalf("expected top 2, got %d", len(scores))
	}
}

func TestBuildSampleOverlayAppliesOverride(t *testing.T) {
	gts := []eval.GT{{ID: "g1", SampleID: "s1", Class: "car", Box: box(0, 0, 10, 10)}}
	preds := []eval.Pred{{ID: "p1", SampleID: "s1", Class: "car", Box: box(0, 0, 10, 10), Confidence: 0.9}}

	overrides := map[string]domain.AnnotationTriageOverride{
		"g1": {AnnotationID: "g1", DatasetID: "d1", SampleID: "s1", Label: domain.TriageMistake},
	}
	overlay := BuildSampleOverlay(gts, preds, 0.5, 0.0, overrides)

	var found bool
	for _, o := range overlay {
		if o.AnnotationID == "g1" {
			found = true
			if o.AutoLabel != domain.TriageTP {
				t.Fatalf("expected auto label tp, got %v", o.AutoLabel)
			}
			if o.DisplayLabel != domain.TriageMistake {
				t.Fatalf("expected override to win display label, got %v", o.DisplayLabel)
			}
		}
	}
	if !found {
		t.Fatal("expected overlay entry for g1")
	}
}
