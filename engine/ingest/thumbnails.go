package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/visionset/lens/engine/objstore"
)

// thumbnailTargetPx is the default backfill size; larger sizes are
// generated lazily on first request by the HTTP image-serving handler.
const thumbnailTargetPx = 256

// backfillThumbnails generates up to ThumbnailBackfillCap missing
// thumbnails; individual failures are counted, never fatal (§4.5, §7).
func (o *Orchestrator) backfillThumbnails(ctx context.Context, fs objstore.FS, datasetID string) (backfilled, failed int) {
	if o.deps.Codec == nil {
		return 0, 0
	}
	ids, err := o.deps.Store.SamplesMissingThumbnails(ctx, datasetID, ThumbnailBackfillCap)
	if err != nil {
		o.deps.Logger.Error("ingest: list samples missing thumbnails", "error", err)
		return 0, 0
	}
	for _, id := range ids {
		sample, err := o.deps.Store.GetSample(ctx, datasetID, id)
		if err != nil {
			failed++
			continue
		}
		path := objstore.ResolveImagePath(sample.ImageDir, sample.Filename)
		raw, err := readAll(ctx, fs, path)
		if err != nil {
			o.deps.Logger.Warn("ingest: thumbnail source unreadable", "sample_id", id, "error", err)
			failed++
			continue
		}
		webp, err := o.deps.Codec.Encode(ctx, raw, thumbnailTargetPx)
		if err != nil {
			o.deps.Logger.Warn("ingest: thumbnail encode failed", "sample_id", id, "error", err)
			failed++
			continue
		}
		cachePath := ThumbnailCachePath(datasetID, id, thumbnailTargetPx)
		if err := writeCacheFile(o.deps.CacheDir, cachePath, webp); err != nil {
			o.deps.Logger.Warn("ingest: thumbnail cache write failed", "sample_id", id, "error", err)
			failed++
			continue
		}
		if err := o.deps.Store.UpdateSampleThumbnail(ctx, datasetID, id, cachePath); err != nil {
			failed++
			continue
		}
		backfilled++
	}
	return backfilled, failed
}

func readAll(ctx context.Context, fs objstore.FS, path string) ([]byte, error) {
	r, err := fs.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// ThumbnailCachePath is the deterministic cache key for a sample's
// resized image at px, shared by the ingest backfill and the HTTP image
// handler (C14) so both sides agree on where a given size variant lives.
func ThumbnailCachePath(datasetID, sampleID string, px int) string {
	return datasetID + "/" + sampleID + "_" + strconv.Itoa(px) + ".webp"
}

// writeCacheFile persists encoded image bytes under dir/relPath, creating
// parent directories as needed.
func writeCacheFile(dir, relPath string, data []byte) error {
	full := filepath.Join(dir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}
