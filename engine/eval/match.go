package eval

import "sort"

// MatchPair is one (prediction, ground-truth) assignment made by the
// greedy matcher, together with the IoU that earned it.
type MatchPair struct {
	PredID string
	GTID   string
	IoU    float64
}

// SampleMatch is the result of matching one sample's predictions against
// its ground truth. With sameClassOnly set, only same-class pairs match
// (§4.7's per-sample matching algorithm); this is what C7's TP/FP/FN counts
// and PR curves are built from. With sameClassOnly unset (the cross-class
// pass), pairs of any class match.
type SampleMatch struct {
	Matches        []MatchPair
	UnmatchedPreds []Pred
	UnmatchedGTs   []GT
}

// confidenceOf returns the prediction's confidence unchanged, zero
// included. Predictions in this package always carry a concrete float64;
// the §4.7 null-confidence-as-1.0 rule is applied before a Pred exists, by
// SplitAnnotations when it reads the nullable column.
func confidenceOf(p Pred) float64 { return p.Confidence }

// orderForMatching sorts preds by the §4.7 tie-break: confidence
// descending; ties broken by the prediction's best candidate IoU (against
// any GT of the same class) descending; remaining ties broken by stable
// insertion order. candidateIoU is computed against the full (unconsumed)
// GT set up front — §4.7 does not specify that the tie-break key itself
// updates as GTs are consumed during the walk.
func orderForMatching(gts []GT, preds []Pred) []int {
	order := make([]int, len(preds))
	for i := range order {
		order[i] = i
	}

	bestIoU := make([]float64, len(preds))
	for i, p := range preds {
		best := 0.0
		for _, g := range gts {
			if g.Class != p.Class {
				continue
			}
			if v := IoU(p.Box, g.Box); v > best {
				best = v
			}
		}
		bestIoU[i] = best
	}

	sort.SliceStable(order, func(i, j int) bool { return bestIoU[order[i]] > bestIoU[order[j]] })
	sort.SliceStable(order, func(i, j int) bool { return confidenceOf(preds[order[i]]) > confidenceOf(preds[order[j]]) })
	return order
}

// matchSample runs the greedy per-class (sameClassOnly) or cross-class
// assignment for one sample's predictions against its ground truth.
func matchSample(gts []GT, preds []Pred, iouThreshold float64, sameClassOnly bool) SampleMatch {
	order := orderForMatching(gts, preds)
	gtMatched := make([]bool, len(gts))

	var result SampleMatch
	for _, idx := range order {
		p := preds[idx]
		bestGT := -1
		bestIoU := -1.0
		for gi, g := range gts {
			if gtMatched[gi] {
				continue
			}
			if sameClassOnly && g.Class != p.Class {
				continue
			}
			v := IoU(p.Box, g.Box)
			if v > bestIoU {
				bestIoU = v
				bestGT = gi
			}
		}
		if bestGT >= 0 && bestIoU >= iouThreshold {
			gtMatched[bestGT] = true
			result.Matches = append(result.Matches, MatchPair{PredID: p.ID, GTID: gts[bestGT].ID, IoU: bestIoU})
		} else {
			result.UnmatchedPreds = append(result.UnmatchedPreds, p)
		}
	}

	for gi, g := range gts {
		if !gtMatched[gi] {
			result.UnmatchedGTs = append(result.UnmatchedGTs, g)
		}
	}
	return result
}

// MatchSample runs §4.7's per-sample, same-class-only greedy matching.
func MatchSample(gts []GT, preds []Pred, iouThreshold float64) SampleMatch {
	return matchSample(gts, preds, iouThreshold, true)
}

// groupBySample partitions gts and preds by sample id, returning the union
// of sample ids each appears under.
func groupBySample(gts []GT, preds []Pred) (map[string][]GT, map[string][]Pred, []string) {
	gtBySample := map[string][]GT{}
	predBySample := map[string][]Pred{}
	seen := map[string]bool{}
	var order []string

	addSample := func(id string) {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, g := range gts {
		gtBySample[g.SampleID] = append(gtBySample[g.SampleID], g)
		addSample(g.SampleID)
	}
	for _, p := range preds {
		predBySample[p.SampleID] = append(predBySample[p.SampleID], p)
		addSample(p.SampleID)
	}
	sort.Strings(order)
	return gtBySample, predBySample, order
}

// sortedKeys returns m's keys sorted ascending, for deterministic iteration
// order over per-sample maps.
func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// filterByConfidence returns the subset of preds with Confidence >= c.
func filterByConfidence(preds []Pred, c float64) []Pred {
	var out []Pred
	for _, p := range preds {
		if confidenceOf(p) >= c {
			out = append(out, p)
		}
	}
	return out
}
