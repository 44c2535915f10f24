package scanparse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/visionset/lens/engine/store"
)

// filenameKeys and labelKeys are the alias sets §4.3 requires classification
// JSONL to accept.
var filenameKeys = []string{"filename", "file_name", "image", "path"}
var labelKeys = []string{"label", "class", "category", "class_name"}

// ClassificationParser streams a classification JSONL file: one record per
// line, filename + label (possibly multi-label, one annotation emitted per
// label), optional confidence.
type ClassificationParser struct {
	open Opener
}

func NewClassificationParser(open Opener) *ClassificationParser {
	return &ClassificationParser{open: open}
}

func (p *ClassificationParser) FormatName() string { return "classification_jsonl" }

// ParseCategories is a no-op for classification datasets: there is no
// upfront category list, only labels discovered per-record. Returns nil, nil.
func (p *ClassificationParser) ParseCategories() ([]store.CategoryRow, map[int]string, error) {
	return nil, nil, nil
}

// BuildImageBatches streams one ImageRow per distinct filename encountered.
// Classification sources have no explicit image list, so samples are
// materialised the first time their filename is seen while scanning labels.
// Annotations come from a separate pass over the same source,
// BuildAnnotationBatches.
func (p *ClassificationParser) BuildImageBatches(split *string, emit ImageBatchFunc) (int, error) {
	r, err := p.open()
	if err != nil {
		return 0, fmt.Errorf("classification: open: %w", err)
	}
	defer r.Close()

	seen := map[string]bool{}
	skipped := 0
	batcher := &imageBatcher{emit: emit}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, ok := decodeClassificationLine(line)
		if !ok {
			skipped++
			continue
		}
		if seen[rec.filename] {
			continue
		}
		seen[rec.filename] = true
		sampleID := sampleIDFromFilename(rec.filename)
		if err := batcher.add(store.ImageRow{ID: sampleID, Filename: rec.filename, Split: split}); err != nil {
			return skipped, err
		}
	}
	if err := scanner.Err(); err != nil {
		return skipped, fmt.Errorf("classification: scan: %w", err)
	}
	return skipped, batcher.Flush()
}

// BuildAnnotationBatches streams one annotation row per (record, label)
// pair; bbox fields are sentinel zeros for classification annotations (§3).
// source tags every emitted row ("ground_truth" for ingest, a run name for
// prediction import).
func (p *ClassificationParser) BuildAnnotationBatches(source string, emit AnnotationBatchFunc) (int, error) {
	r, err := p.open()
	if err != nil {
		return 0, fmt.Errorf("classification: open: %w", err)
	}
	defer r.Close()

	skipped := 0
	batcher := &annotationBatcher{emit: emit}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, ok := decodeClassificationLine(line)
		if !ok {
			skipped++
			continue
		}
		sampleID := sampleIDFromFilename(rec.filename)
		labels := rec.labels
		if len(labels) == 0 {
			labels = []string{"unknown"}
		}
		for _, label := range labels {
			row := store.AnnotationRow{
				ID:           uuid.NewString(),
				SampleID:     sampleID,
				CategoryName: label,
				Source:       source,
				Confidence:   rec.confidence,
			}
			if err := batcher.add(row); err != nil {
				return skipped, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return skipped, fmt.Errorf("classification: scan: %w", err)
	}
	return skipped, batcher.Flush()
}

type classificationRecord struct {
	filename   string
	labels     []string
	confidence *float64
}

func decodeClassificationLine(line string) (classificationRecord, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return classificationRecord{}, false
	}
	filename, ok := firstStringKey(raw, filenameKeys)
	if !ok {
		return classificationRecord{}, false
	}
	labels := firstLabelValues(raw, labelKeys)
	rec := classificationRecord{filename: filename, labels: labels}
	if c, ok := raw["confidence"]; ok {
		var f float64
		if json.Unmarshal(c, &f) == nil {
			rec.confidence = &f
		}
	}
	return rec, true
}

func firstStringKey(raw map[string]json.RawMessage, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// firstLabelValues reads the first matching label key, accepting either a
// single string or an array of strings (multi-label).
func firstLabelValues(raw map[string]json.RawMessage, keys []string) []string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var single string
		if json.Unmarshal(v, &single) == nil {
			if single == "" {
				continue
			}
			return []string{single}
		}
		var multi []string
		if json.Unmarshal(v, &multi) == nil && len(multi) > 0 {
			return multi
		}
	}
	return nil
}

func sampleIDFromFilename(filename string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(filename)).String()
}
