package httpapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/ingest"
	"github.com/visionset/lens/engine/objstore"
)

func registerImageRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("GET /images/{dataset_id}/{sample_id}", handleImage(deps))
}

// sizeToPx maps the §6 size query param to a target pixel dimension;
// "original" (the zero value here) bypasses resizing entirely.
var sizeToPx = map[string]int{"small": 128, "medium": 256, "large": 512}

// handleImage serves a sample's image, resized and WebP-encoded unless
// size=original. A nil Codec disables every resized variant (§1: the
// thumbnail codec is out of scope, declared as an interface only), so
// callers asking for anything but "original" get 503 until one is wired.
func handleImage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		datasetID, sampleID := r.PathValue("dataset_id"), r.PathValue("sample_id")
		size := r.URL.Query().Get("size")
		if size == "" {
			size = "original"
		}

		sm, err := deps.Store.GetSample(ctx, datasetID, sampleID)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		srcPath := objstore.ResolveImagePath(sm.ImageDir, sm.Filename)
		fs := deps.FS.Resolve(srcPath)

		if size == "original" {
			r, err := fs.Open(ctx, srcPath)
			if err != nil {
				writeError(w, deps.Logger, domain.NewError(domain.KindNotFound, "sample_id", err))
				return
			}
			defer r.Close()
			io.Copy(w, r)
			return
		}

		px, ok := sizeToPx[size]
		if !ok {
			writeError(w, deps.Logger, domain.NewError(domain.KindBadInput, "size", domain.ErrInvalidSize))
			return
		}
		if deps.Codec == nil {
			writeError(w, deps.Logger, domain.NewError(domain.KindCapabilityUnavailable, "size", domain.ErrNoThumbnailCodec))
			return
		}

		cachePath := ingest.ThumbnailCachePath(datasetID, sampleID, px)
		cacheFull := filepath.Join(deps.CacheDir, filepath.FromSlash(cachePath))
		if data, err := os.ReadFile(cacheFull); err == nil {
			w.Header().Set("Content-Type", "image/webp")
			w.Write(data)
			return
		}

		raw, err := fs.ReadBytes(ctx, srcPath)
		if err != nil {
			writeError(w, deps.Logger, domain.NewError(domain.KindNotFound, "sample_id", err))
			return
		}
		webp, err := deps.Codec.Encode(ctx, raw, px)
		if err != nil {
			writeError(w, deps.Logger, domain.NewError(domain.KindCapabilityUnavailable, "size", err))
			return
		}
		if err := os.MkdirAll(filepath.Dir(cacheFull), 0o755); err == nil {
			_ = os.WriteFile(cacheFull, webp, 0o644)
		}
		w.Header().Set("Content-Type", "image/webp")
		w.Write(webp)
	}
}
