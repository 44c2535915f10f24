// Package scanparse implements the streaming parsers (C3): COCO JSON
// (incremental), classification JSONL, COCO-results JSON, and the per-image
// detection-JSON directory format. Every parser exposes a lazy sequence of
// tabular batches of fixed maximum row count so bulk insert (C1) can stream
// without ever loading a full source file into memory.
package scanparse

import "github.com/visionset/lens/engine/store"

// BatchSize is the default maximum row count per emitted batch (§4.3: "typical 1000-5000").
const BatchSize = 2000

// Warning is a non-fatal, skipped-record note surfaced to the caller as an
// "N skipped" note rather than raised as an error (§7 propagation policy).
type Warning struct {
	Message string
}

// ImageBatchFunc receives one batch of sample rows as they stream off disk.
type ImageBatchFunc func([]store.ImageRow) error

// AnnotationBatchFunc receives one batch of annotation rows.
type AnnotationBatchFunc func([]store.AnnotationRow) error

// imageBatcher accumulates rows and flushes at BatchSize or on Flush.
type imageBatcher struct {
	rows []store.ImageRow
	emit ImageBatchFunc
}

func (b *imageBatcher) add(r store.ImageRow) error {
	b.rows = append(b.rows, r)
	if len(b.rows) >= BatchSize {
		return b.Flush()
	}
	return nil
}

func (b *imageBatcher) Flush() error {
	if len(b.rows) == 0 {
		return nil
	}
	rows := b.rows
	b.rows = nil
	return b.emit(rows)
}

type annotationBatcher struct {
	rows []store.AnnotationRow
	emit AnnotationBatchFunc
}

func (b *annotationBatcher) add(r store.AnnotationRow) error {
	b.rows = append(b.rows, r)
	if len(b.rows) >= BatchSize {
		return b.Flush()
	}
	return nil
}

func (b *annotationBatcher) Flush() error {
	if len(b.rows) == 0 {
		return nil
	}
	rows := b.rows
	b.rows = nil
	return b.emit(rows)
}
