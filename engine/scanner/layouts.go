package scanner

import (
	"context"
	"strings"

	"github.com/visionset/lens/engine/objstore"
)

// detectClassificationSplitDirs matches layout 1: split subdirectories each
// containing a JSONL file plus co-located images.
func (s *Scanner) detectClassificationSplitDirs(ctx context.Context, root string) (*ScanResult, error) {
	entries, err := s.fs.ListDirDetail(ctx, root)
	if err != nil {
		return nil, nil
	}
	var splits []Split
	var warnings []string
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		canon, ok := canonicalSplit(e.Name)
		if !ok {
			continue
		}
		splitDir := objstore.ResolveImagePath(root, e.Name)
		jsonlPath, imageCount, err := s.findJSONLClassificationFile(ctx, splitDir)
		if err != nil || jsonlPath == "" {
			continue
		}
		splits = append(splits, Split{
			Name:           canon,
			AnnotationPath: jsonlPath,
			ImageDir:       splitDir,
			ImageCount:     imageCount,
		})
	}
	if len(splits) == 0 {
		return nil, nil
	}
	return &ScanResult{Layout: "classification_split_dirs", Format: "classification_jsonl", Splits: splits, Warnings: warnings}, nil
}

// detectFlatClassification matches layout 2: a single JSONL at root plus an
// images/ subdirectory or co-located images.
func (s *Scanner) detectFlatClassification(ctx context.Context, root string) (*ScanResult, error) {
	jsonlPath, imageCount, err := s.findJSONLClassificationFile(ctx, root)
	if err != nil || jsonlPath == "" {
		return nil, nil
	}
	imageDir := root
	if hasSubdir(ctx, s.fs, root, "images") {
		imageDir = objstore.ResolveImagePath(root, "images")
	}
	return &ScanResult{
		Layout: "flat_classification",
		Format: "classification_jsonl",
		Splits: []Split{{Name: "train", AnnotationPath: jsonlPath, ImageDir: imageDir, ImageCount: imageCount}},
	}, nil
}

// detectRoboflowSplitDirs matches layout 3: split subdirectories each
// containing a COCO JSON plus co-located images.
func (s *Scanner) detectRoboflowSplitDirs(ctx context.Context, root string) (*ScanResult, error) {
	entries, err := s.fs.ListDirDetail(ctx, root)
	if err != nil {
		return nil, nil
	}
	var splits []Split
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		canon, ok := canonicalSplit(e.Name)
		if !ok {
			continue
		}
		splitDir := objstore.ResolveImagePath(root, e.Name)
		cocoPath, size, imageCount, err := s.findCOCOFile(ctx, splitDir)
		if err != nil || cocoPath == "" {
			continue
		}
		splits = append(splits, Split{
			Name:           canon,
			AnnotationPath: cocoPath,
			ImageDir:       splitDir,
			ImageCount:     imageCount,
			AnnotationSize: size,
		})
	}
	if len(splits) == 0 {
		return nil, nil
	}
	return &ScanResult{Layout: "roboflow_split_dirs", Format: "coco", Splits: splits}, nil
}

// detectStandardCOCO matches layout 4: an annotations/ subdirectory holding
// per-split JSON paired with images/<split>/ or <split>/ directories.
func (s *Scanner) detectStandardCOCO(ctx context.Context, root string) (*ScanResult, error) {
	annDir := objstore.ResolveImagePath(root, "annotations")
	entries, err := s.fs.ListDirDetail(ctx, annDir)
	if err != nil {
		return nil, nil
	}
	var splits []Split
	var warnings []string
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, ".json") {
			continue
		}
		path := objstore.ResolveImagePath(annDir, e.Name)
		ok, err := s.isCOCOLike(ctx, path)
		if err != nil || !ok {
			continue
		}
		canon := splitNameFromFile(e.Name)
		imageDir := objstore.ResolveImagePath(root, "images/"+canon)
		if !hasSubdir(ctx, s.fs, root, "images/"+canon) {
			imageDir = objstore.ResolveImagePath(root, canon)
		}
		if !hasSubdir(ctx, s.fs, root, canon) && !hasSubdir(ctx, s.fs, root, "images/"+canon) {
			warnings = append(warnings, "no image directory found for split "+canon)
			continue
		}
		imageCount := s.countFiles(ctx, imageDir)
		splits = append(splits, Split{
			Name:           canon,
			AnnotationPath: path,
			ImageDir:       imageDir,
			ImageCount:     imageCount,
			AnnotationSize: e.Size,
		})
	}
	if len(splits) == 0 {
		return nil, nil
	}
	return &ScanResult{Layout: "standard_coco", Format: "coco", Splits: splits, Warnings: warnings}, nil
}

// detectFlatCOCO matches layout 5: a single COCO JSON at root plus images/
// or co-located images.
func (s *Scanner) detectFlatCOCO(ctx context.Context, root string) (*ScanResult, error) {
	cocoPath, size, imageCount, err := s.findCOCOFile(ctx, root)
	if err != nil || cocoPath == "" {
		return nil, nil
	}
	imageDir := root
	if hasSubdir(ctx, s.fs, root, "images") {
		imageDir = objstore.ResolveImagePath(root, "images")
		imageCount = s.countFiles(ctx, imageDir)
	}
	return &ScanResult{
		Layout: "flat_coco",
		Format: "coco",
		Splits: []Split{{Name: "train", AnnotationPath: cocoPath, ImageDir: imageDir, ImageCount: imageCount, AnnotationSize: size}},
	}, nil
}

func splitNameFromFile(filename string) string {
	stem := strings.TrimSuffix(filename, ".json")
	for alias, canon := range splitAliases {
		if strings.Contains(strings.ToLower(stem), alias) {
			return canon
		}
	}
	return "train"
}

// findCOCOFile returns the first header-confirmed COCO JSON directly under dir.
func (s *Scanner) findCOCOFile(ctx context.Context, dir string) (path string, size int64, imageCount int, err error) {
	entries, err := s.fs.ListDirDetail(ctx, dir)
	if err != nil {
		return "", 0, 0, nil
	}
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, ".json") {
			continue
		}
		p := objstore.ResolveImagePath(dir, e.Name)
		ok, _ := s.isCOCOLike(ctx, p)
		if !ok {
			continue
		}
		return p, e.Size, s.countFiles(ctx, dir), nil
	}
	return "", 0, 0, nil
}

// findJSONLClassificationFile returns the first header-confirmed
// classification JSONL file directly under dir.
func (s *Scanner) findJSONLClassificationFile(ctx context.Context, dir string) (path string, imageCount int, err error) {
	entries, err := s.fs.ListDirDetail(ctx, dir)
	if err != nil {
		return "", 0, nil
	}
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, ".jsonl") {
			continue
		}
		p := objstore.ResolveImagePath(dir, e.Name)
		ok, _ := s.isClassificationLike(ctx, p)
		if !ok {
			continue
		}
		return p, s.countFiles(ctx, dir), nil
	}
	return "", 0, nil
}

func hasSubdir(ctx context.Context, fs objstore.FS, root, name string) bool {
	path := objstore.ResolveImagePath(root, name)
	isDir, err := fs.IsDir(ctx, path)
	return err == nil && isDir
}

// countFiles returns the number of non-directory entries under dir, a rough
// proxy for image count used in ScanResult's informational fields.
func (s *Scanner) countFiles(ctx context.Context, dir string) int {
	entries, err := s.fs.ListDirDetail(ctx, dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir {
			n++
		}
	}
	return n
}
