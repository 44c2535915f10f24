package eval

import "sort"

// PRPoint is one (recall, precision) sample on a PR curve, tagged with the
// confidence of the prediction that produced it.
type PRPoint struct {
	Recall     float64
	Precision  float64
	Confidence float64
}

// ClassCurve is one class's (or the "all" curve's) PR curve plus its AP.
type ClassCurve struct {
	Class  string
	Points []PRPoint
	AP     float64
}

const maxCurvePoints = 200

// labeledPred is one prediction tagged TP/FP by matchSample, retained for
// PR-curve construction.
type labeledPred struct {
	class      string
	confidence float64
	isTP       bool
}

// labelAllPredictions runs same-class matching at iouThreshold across every
// sample, independent of any confidence cutoff, and returns every
// prediction tagged TP/FP alongside the ground-truth count per class.
func labelAllPredictions(gts []GT, preds []Pred, iouThreshold float64) ([]labeledPred, map[string]int) {
	gtBySample, predBySample, order := groupBySample(gts, preds)
	nGT := map[string]int{}
	for _, g := range gts {
		nGT[g.Class]++
	}

	var labeled []labeledPred
	for _, sid := range order {
		m := matchSample(gtBySample[sid], predBySample[sid], iouThreshold, true)
		for _, pair := range m.Matches {
			labeled = append(labeled, labeledPred{class: gtClassOf(gtBySample[sid], pair.GTID), confidence: predConfOf(predBySample[sid], pair.PredID), isTP: true})
		}
		for _, p := range m.UnmatchedPreds {
			labeled = append(labeled, labeledPred{class: p.Class, confidence: p.Confidence, isTP: false})
		}
	}
	return labeled, nGT
}

func gtClassOf(gts []GT, id string) string {
	for _, g := range gts {
		if g.ID == id {
			return g.Class
		}
	}
	return ""
}

func predConfOf(preds []Pred, id string) float64 {
	for _, p := range preds {
		if p.ID == id {
			return p.Confidence
		}
	}
	return 0
}

// buildCurve walks labeled predictions of one class (already sorted
// confidence-descending) maintaining cumulative TP/FP, per §4.7.
func buildCurve(class string, labeled []labeledPred, nGT int) ClassCurve {
	sort.SliceStable(labeled, func(i, j int) bool { return labeled[i].confidence > labeled[j].confidence })

	if nGT == 0 || len(labeled) == 0 {
		return ClassCurve{Class: class, Points: []PRPoint{{Recall: 0, Precision: 1, Confidence: 1}}, AP: 0}
	}

	points := make([]PRPoint, 0, len(labeled))
	tp, fp := 0, 0
	for _, lp := range labeled {
		if lp.isTP {
			tp++
		} else {
			fp++
		}
		recall := float64(tp) / float64(nGT)
		precision := float64(tp) / float64(tp+fp)
		points = append(points, PRPoint{Recall: recall, Precision: precision, Confidence: lp.confidence})
	}

	return ClassCurve{Class: class, Points: subsample(points, maxCurvePoints), AP: averagePrecision(points)}
}

// averagePrecision is the 101-point interpolated AP from §4.7.
func averagePrecision(points []PRPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i <= 100; i++ {
		r := float64(i) / 100
		best := 0.0
		for _, p := range points {
			if p.Recall >= r && p.Precision > best {
				best = p.Precision
			}
		}
		sum += best
	}
	return sum / 101
}

// subsample reduces points to at most n via evenly-spaced indices,
// preserving the first and last point.
func subsample(points []PRPoint, n int) []PRPoint {
	if len(points) <= n {
		return points
	}
	out := make([]PRPoint, 0, n)
	step := float64(len(points)-1) / float64(n-1)
	for i := 0; i < n; i++ {
		idx := int(float64(i)*step + 0.5)
		if idx >= len(points) {
			idx = len(points) - 1
		}
		out = append(out, points[idx])
	}
	return out
}

// classesOf returns the sorted set of distinct classes across gts and preds.
func classesOf(gts []GT, preds []Pred) []string {
	seen := map[string]bool{}
	for _, g := range gts {
		seen[g.Class] = true
	}
	for _, p := range preds {
		seen[p.Class] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Curves builds the per-class PR curves plus the "all" curve at a single
// IoU threshold.
func Curves(gts []GT, preds []Pred, iouThreshold float64) map[string]ClassCurve {
	labeled, nGT := labelAllPredictions(gts, preds, iouThreshold)
	byClass := map[string][]labeledPred{}
	for _, lp := range labeled {
		byClass[lp.class] = append(byClass[lp.class], lp)
	}

	out := map[string]ClassCurve{}
	for _, class := range classesOf(gts, preds) {
		out[class] = buildCurve(class, byClass[class], nGT[class])
	}

	totalGT := 0
	for _, n := range nGT {
		totalGT += n
	}
	out["all"] = buildCurve("all", append([]labeledPred{}, labeled...), totalGT)
	return out
}

// meanAP returns AP at iouThreshold averaged over every real class (the
// synthetic "all" curve is excluded from the mean).
func meanAP(gts []GT, preds []Pred, iouThreshold float64) float64 {
	curves := Curves(gts, preds, iouThreshold)
	sum, n := 0.0, 0
	for class, c := range curves {
		if class == "all" {
			continue
		}
		sum += c.AP
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
