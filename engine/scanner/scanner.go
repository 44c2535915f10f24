// Package scanner implements the folder scanner (C4): heuristic layout
// detection over local and object-store directory trees. Detection is
// header-driven — it peeks at file content rather than trusting extensions
// or directory names alone — and tries five layouts in a fixed priority
// order so results are deterministic.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/visionset/lens/engine/objstore"
)

// maxHeaderPeekBytes bounds the COCO-like header probe (§4.4 open question 3).
const maxHeaderPeekBytes = 500 * 1024 * 1024

// splitAliases maps directory names to canonical split labels.
var splitAliases = map[string]string{
	"train": "train", "training": "train", "train2017": "train",
	"val": "val", "validation": "val", "valid": "val", "val2017": "val",
	"test": "test", "testing": "test", "test2017": "test",
}

func canonicalSplit(dirName string) (string, bool) {
	s, ok := splitAliases[strings.ToLower(dirName)]
	return s, ok
}

// Split describes one detected split within a layout: its annotation source
// and the directory images resolve against.
type Split struct {
	Name           string
	AnnotationPath string
	ImageDir       string
	ImageCount     int
	AnnotationSize int64
}

// ScanResult is what a completed scan returns: the layout that matched, its
// splits, and any non-fatal warnings collected along the way.
type ScanResult struct {
	Layout   string
	Format   string // "coco" | "classification_jsonl"
	Splits   []Split
	Warnings []string
}

// Scanner detects one of five dataset layouts under root.
type Scanner struct {
	fs objstore.FS
}

func New(fs objstore.FS) *Scanner {
	return &Scanner{fs: fs}
}

// Scan tries each layout in priority order and returns the first match.
func (s *Scanner) Scan(ctx context.Context, root string) (*ScanResult, error) {
	detectors := []func(context.Context, string) (*ScanResult, error){
		s.detectClassificationSplitDirs,
		s.detectFlatClassification,
		s.detectRoboflowSplitDirs,
		s.detectStandardCOCO,
		s.detectFlatCOCO,
	}
	for _, detect := range detectors {
		result, err := detect(ctx, root)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return &ScanResult{Warnings: []string{"no known layout detected under " + root}}, nil
}

// isCOCOLike peeks the first maxTopLevelKeys top-level keys of a JSON
// object looking for "images", bounded to files ≤500MB (§4.4).
func (s *Scanner) isCOCOLike(ctx context.Context, path string) (bool, error) {
	size, err := s.fileSize(ctx, path)
	if err != nil {
		return false, nil
	}
	if size > maxHeaderPeekBytes {
		return false, nil
	}
	r, err := s.fs.Open(ctx, path)
	if err != nil {
		return false, nil
	}
	defer r.Close()

	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return false, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return false, nil
	}
	const maxTopLevelKeys = 10
	for i := 0; i < maxTopLevelKeys && dec.More(); i++ {
		keyTok, err := dec.Token()
		if err != nil {
			return false, nil
		}
		name, _ := keyTok.(string)
		if name == "images" {
			return true, nil
		}
		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return false, nil
		}
	}
	return false, nil
}

// isClassificationLike peeks the first five non-empty lines, accepting the
// file if every sampled line parses as a JSON object with a filename-alias
// key and a label-alias key but no bbox/annotations keys (§4.4).
func (s *Scanner) isClassificationLike(ctx context.Context, path string) (bool, error) {
	raw, err := s.fs.ReadBytes(ctx, path)
	if err != nil {
		return false, nil
	}
	const maxSampleLines = 5
	sampled := 0
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if sampled >= maxSampleLines {
			break
		}
		sampled++
		var rec map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return false, nil
		}
		if _, hasBBox := rec["bbox"]; hasBBox {
			return false, nil
		}
		if _, hasAnn := rec["annotations"]; hasAnn {
			return false, nil
		}
		if !hasAnyKey(rec, filenameAliasKeys) || !hasAnyKey(rec, labelAliasKeys) {
			return false, nil
		}
	}
	return sampled > 0, nil
}

var filenameAliasKeys = []string{"filename", "file_name", "image", "path"}
var labelAliasKeys = []string{"label", "class", "category", "class_name"}

func hasAnyKey(m map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func (s *Scanner) fileSize(ctx context.Context, path string) (int64, error) {
	dir := parentDir(path)
	entries, err := s.fs.ListDirDetail(ctx, dir)
	if err != nil {
		return 0, err
	}
	base := baseName(path)
	for _, e := range entries {
		if e.Name == base {
			return e.Size, nil
		}
	}
	return 0, fmt.Errorf("scanner: %s not found in %s", base, dir)
}

func parentDir(path string) string {
	i := strings.LastIndex(strings.TrimSuffix(path, "/"), "/")
	if i < 0 {
		return "."
	}
	return path[:i]
}

func baseName(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return trimmed
	}
	return trimmed[i+1:]
}
