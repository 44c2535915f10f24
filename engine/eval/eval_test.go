package eval

import (
	"testing"

	"github.com/visionset/lens/engine/domain"
)

func box(x, y, w, h float64) domain.BBox { return domain.BBox{X: x, Y: y, W: w, H: h} }

func TestIoUIdenticalBoxes(t *testing.T) {
	a := box(0, 0, 10, 10)
	if v := IoU(a, a); v != 1 {
		t.Fatalf("expected IoU 1 for identical boxes, got %v", v)
	}
}

func TestIoUDisjointBoxes(t *testing.T) {
	a := box(0, 0, 10, 10)
	b := box(100, 100, 10, 10)
	if v := IoU(a, b); v != 0 {
		t.Fatalf("expected IoU 0 for disjoint boxes, got %v", v)
	}
}

func TestMatchSampleTPAndFN(t *testing.T) {
	gts := []GT{{ID: "g1", SampleID: "s1", Class: "car", Box: box(0, 0, 10, 10)}}
	preds := []Pred{{ID: "p1", SampleID: "s1", Class: "car", Box: box(0, 0, 10, 10), Confidence: 0.9}}
	m := MatchSample(gts, preds, 0.5)
	if len(m.Matches) != 1 || m.Matches[0].GTID != "g1" || m.Matches[0].PredID != "p1" {
		t.Fatalf("expected g1/p1 matched, got %+v", m)
	}
	if len(m.UnmatchedGTs) != 0 || len(m.UnmatchedPreds) != 0 {
		t.Fatalf("expected no unmatched, got %+v", m)
	}
}

func TestMatchSampleCrossClassMiss(t *testing.T) {
	gts := []GT{{ID: "g1", SampleID: "s1", Class: "car", Box: box(0, 0, 10, 10)}}
	preds := []Pred{{ID: "p1", SampleID: "s1", Class: "truck", Box: box(0, 0, 10, 10), Confidence: 0.9}}
	m := MatchSample(gts, preds, 0.5)
	if len(m.Matches) != 0 {
		t.Fatalf("expected no same-class match, got %+v", m.Matches)
	}
	if len(m.UnmatchedGTs) != 1 || len(m.UnmatchedPreds) != 1 {
		t.Fatalf("expected both unmatched, got %+v", m)
	}
}

// scenario modelled on S4: one car GT, one truck prediction perfectly
// overlapping it. C7 treats this as FP_truck + FN_car; C8 recognises the
// overlap and labels it label_error.
func TestDetectionEvaluatorMislabeledPrediction(t *testing.T) {
	gts := []GT{{ID: "g1", SampleID: "s1", Class: "car", Box: box(0, 0, 10, 10)}}
	preds := []Pred{{ID: "p1", SampleID: "s1", Class: "truck", Box: box(0, 0, 10, 10), Confidence: 0.9}}

	result := Evaluate(gts, preds, 0.5, 0.0)
	if result.PerClass["truck"].FP != 1 {
		t.Fatalf("expected FP_truck=1, got %+v", result.PerClass["truck"])
	}
	if result.PerClass["car"].FN != 1 {
		t.Fatalf("expected FN_car=1, got %+v", result.PerClass["car"])
	}
	if result.PerClass["truck"].TP != 0 {
		t.Fatalf("expected TP=0, got %+v", result.PerClass["truck"])
	}
	if result.Confusion.Cell("car", "truck") != 1 {
		t.Fatalf("expected confusion(car,truck)=1, got %d", result.Confusion.Cell("car", "truck"))
	}
	if result.Confusion.Cell("car", "background") != 0 {
		t.Fatalf("expected confusion(car,background)=0 once the cross-class pass claims the pair, got %d", result.Confusion.Cell("car", "background"))
	}
	if result.Confusion.Cell("background", "truck") != 0 {
		t.Fatalf("expected confusion(background,truck)=0 once the cross-class pass claims the pair, got %d", result.Confusion.Cell("background", "truck"))
	}
}

func TestDetectionEvaluatorNoOverlapStillRoutesThroughBackground(t *testing.T) {
	gts := []GT{{ID: "g1", SampleID: "s1", Class: "car", Box: box(0, 0, 10, 10)}}
	preds := []Pred{{ID: "p1", SampleID: "s1", Class: "truck", Box: box(1000, 1000, 10, 10), Confidence: 0.9}}

	result := Evaluate(gts, preds, 0.5, 0.0)
	if result.Confusion.Cell("car", "truck") != 0 {
		t.Fatalf("expected confusion(car,truck)=0 when boxes don't overlap, got %d", result.Confusion.Cell("car", "truck"))
	}
	if result.Confusion.Cell("car", "background") != 1 {
		t.Fatalf("expected confusion(car,background)=1, got %d", result.Confusion.Cell("car", "background"))
	}
	if result.Confusion.Cell("background", "truck") != 1 {
		t.Fatalf("expected confusion(background,truck)=1, got %d", result.Confusion.Cell("background", "truck"))
	}
}

func TestErrorCategoriserLabelsMislabeledAsLabelError(t *testing.T) {
	gts := []GT{{ID: "g1", SampleID: "s1", Class: "car", Box: box(0, 0, 10, 10)}}
	preds := []Pred{{ID: "p1", SampleID: "s1", Class: "truck", Box: box(0, 0, 10, 10), Confidence: 0.9}}

	analysis := Categorize(gts, preds, 0.5, 0.0)
	if analysis.PerClass["truck"][ErrorLabelError] != 1 {
		t.Fatalf("expected truck label_error=1, got %+v", analysis.PerClass["truck"])
	}
	if len(analysis.Samples[ErrorLabelError]) != 1 || analysis.Samples[ErrorLabelError][0] != "s1" {
		t.Fatalf("expected s1 in label_error sample list, got %+v", analysis.Samples[ErrorLabelError])
	}
	if analysis.PerClass["car"][ErrorFalseNegative] != 0 {
		t.Fatalf("label_error should consume the GT, expected no car false_negative, got %+v", analysis.PerClass["car"])
	}
}

func TestErrorCategoriserHardFPWhenNoOverlap(t *testing.T) {
	gts := []GT{{ID: "g1", SampleID: "s1", Class: "car", Box: box(0, 0, 10, 10)}}
	preds := []Pred{{ID: "p1", SampleID: "s1", Class: "truck", Box: box(1000, 1000, 10, 10), Confidence: 0.9}}

	analysis := Categorize(gts, preds, 0.5, 0.0)
	if analysis.PerClass["truck"][ErrorHardFP] != 1 {
		t.Fatalf("expected hard_fp=1, got %+v", analysis.PerClass["truck"])
	}
	if analysis.PerClass["car"][ErrorFalseNegative] != 1 {
		t.Fatalf("expected car false_negative=1, got %+v", analysis.PerClass["car"])
	}
}

func TestAveragePrecisionNoGroundTruth(t *testing.T) {
	curves := Curves(nil, nil, 0.5)
	if all, ok := curves["all"]; !ok || all.AP != 0 {
		t.Fatalf("expected AP=0 with sentinel point, got %+v", curves["all"])
	}
}

func TestClassificationEvaluatorBasic(t *testing.T) {
	gts := []ClassificationGT{
		{SampleID: "s1", Labels: []string{"cat"}},
		{SampleID: "s2", Labels: []string{"dog"}},
		{SampleID: "s3", Labels: []string{"cat"}},
	}
	preds := []ClassificationPred{
		{SampleID: "s1", Label: "cat", Confidence: 0.9},
		{SampleID: "s2", Label: "cat", Confidence: 0.8},
	}

	result := EvaluateClassification(gts, preds, 0.5)
	cat := result.PerClass["cat"]
	if cat.Support != 2 {
		t.Fatalf("expected cat support=2, got %+v", cat)
	}
	if cat.Recall != 0.5 {
		t.Fatalf("expected cat recall=0.5 (1 correct / 2 support), got %v", cat.Recall)
	}
	if cat.Precision != 0.5 {
		t.Fatalf("expected cat precision=0.5 (1 correct / 2 predicted cat), got %v", cat.Precision)
	}
}

func TestClassificationEvaluatorMultiLabelResolvesToMin(t *testing.T) {
	gt := ClassificationGT{SampleID: "s1", Labels: []string{"zebra", "ant", "cat"}}
	if gt.ResolvedLabel() != "ant" {
		t.Fatalf("expected lexicographically minimum label ant, got %s", gt.ResolvedLabel())
	}
}

func TestClassificationEvaluatorMissingBucket(t *testing.T) {
	gts := []ClassificationGT{{SampleID: "s1", Labels: []string{"cat"}}}
	result := EvaluateClassification(gts, nil, 0.5)
	if len(result.Pairs) != 1 || result.Pairs[0].Predicted != MissingLabel {
		t.Fatalf("expected missing prediction bucket, got %+v", result.Pairs)
	}
}
