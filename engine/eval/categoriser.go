package eval

// ErrorType is the per-detection taxonomy label §4.8 assigns.
type ErrorType string

const (
	ErrorTP            ErrorType = "tp"
	ErrorLabelError    ErrorType = "label_error"
	ErrorHardFP        ErrorType = "hard_fp"
	ErrorFalseNegative ErrorType = "false_negative"
)

// maxSamplesPerType caps the preview sample list per error type (§4.8).
const maxSamplesPerType = 50

// PredOutcome is one prediction's categorised outcome. FN entries (no
// matching prediction) carry PredID="" and Confidence=0.
type PredOutcome struct {
	PredID     string
	SampleID   string
	GTID       string // set for tp, label_error and false_negative
	Class      string
	IoU        float64
	Confidence float64
	Type       ErrorType
}

// GTOutcome is one ground-truth box left uncovered (false_negative).
type GTOutcome struct {
	GTID     string
	SampleID string
	Class    string
}

// ErrorAnalysis is the full C8 output: per-class counts by type, plus a
// capped sample-id preview list per type.
type ErrorAnalysis struct {
	PerClass map[string]map[ErrorType]int
	Samples  map[ErrorType][]string
}

func newErrorAnalysis() ErrorAnalysis {
	return ErrorAnalysis{PerClass: map[string]map[ErrorType]int{}, Samples: map[ErrorType][]string{}}
}

func (a *ErrorAnalysis) record(class string, typ ErrorType, sampleID string) {
	if a.PerClass[class] == nil {
		a.PerClass[class] = map[ErrorType]int{}
	}
	a.PerClass[class][typ]++
	if len(a.Samples[typ]) < maxSamplesPerType {
		a.Samples[typ] = append(a.Samples[typ], sampleID)
	}
}

// CategorizeSamples runs §4.8's two-pass matching per sample: a same-class
// pass (identical to C7's matcher, producing TP) followed by a cross-class
// pass over what remains unmatched, which promotes high-IoU wrong-class
// predictions to label_error (consuming their GT) before anything left is
// called hard_FP. GTs untouched by either pass are false_negative. Returns
// every outcome grouped by sample id, uncapped (the caller decides how much
// of it to keep — Categorize caps it to 50/type for preview payloads,
// engine/triage uses the full per-sample detail for scoring).
func CategorizeSamples(gts []GT, preds []Pred, iouThreshold, confidenceThreshold float64) map[string][]PredOutcome {
	filtered := filterByConfidence(preds, confidenceThreshold)
	gtBySample, predBySample, order := groupBySample(gts, filtered)

	out := map[string][]PredOutcome{}
	for _, sid := range order {
		sampleGTs := gtBySample[sid]
		samplePreds := predBySample[sid]

		pass1 := matchSample(sampleGTs, samplePreds, iouThreshold, true)
		for _, pair := range pass1.Matches {
			class := gtClassOf(sampleGTs, pair.GTID)
			conf := predConfOf(samplePreds, pair.PredID)
			out[sid] = append(out[sid], PredOutcome{PredID: pair.PredID, SampleID: sid, GTID: pair.GTID, Class: class, IoU: pair.IoU, Confidence: conf, Type: ErrorTP})
		}

		pass2 := matchSample(pass1.UnmatchedGTs, pass1.UnmatchedPreds, iouThreshold, false)
		for _, pair := range pass2.Matches {
			class := predClassOf(pass1.UnmatchedPreds, pair.PredID)
			conf := predConfOf(pass1.UnmatchedPreds, pair.PredID)
			out[sid] = append(out[sid], PredOutcome{PredID: pair.PredID, SampleID: sid, GTID: pair.GTID, Class: class, IoU: pair.IoU, Confidence: conf, Type: ErrorLabelError})
		}
		for _, p := range pass2.UnmatchedPreds {
			out[sid] = append(out[sid], PredOutcome{PredID: p.ID, SampleID: sid, Class: p.Class, Confidence: p.Confidence, Type: ErrorHardFP})
		}
		for _, g := range pass2.UnmatchedGTs {
			out[sid] = append(out[sid], PredOutcome{SampleID: sid, GTID: g.ID, Class: g.Class, Type: ErrorFalseNegative})
		}
	}
	return out
}

// Categorize aggregates CategorizeSamples into per-class counts plus a
// preview sample-id list capped at 50 entries per type (§4.8).
func Categorize(gts []GT, preds []Pred, iouThreshold, confidenceThreshold float64) ErrorAnalysis {
	analysis := newErrorAnalysis()
	perSample := CategorizeSamples(gts, preds, iouThreshold, confidenceThreshold)
	for _, sid := range sortedKeys(perSample) {
		for _, o := range perSample[sid] {
			analysis.record(o.Class, o.Type, sid)
		}
	}
	return analysis
}

func predClassOf(preds []Pred, id string) string {
	for _, p := range preds {
		if p.ID == id {
			return p.Class
		}
	}
	return ""
}
