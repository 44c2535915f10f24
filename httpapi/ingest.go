package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/ingest"
	"github.com/visionset/lens/engine/scanner"
)

var errStreamingUnsupported = errors.New("response writer does not support streaming")

func registerIngestRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("POST /datasets/ingest", handleIngest(deps))
	mux.HandleFunc("POST /ingestion/scan", handleScan(deps))
	mux.HandleFunc("POST /ingestion/import", handleImport(deps))
	mux.HandleFunc("POST /ingestion/browse", handleBrowse(deps))
}

type ingestRequest struct {
	AnnotationPath string  `json:"annotation_path"`
	ImageDir       string  `json:"image_dir"`
	DatasetName    string  `json:"dataset_name"`
	Format         string  `json:"format"`
	Split          *string `json:"split"`
	DatasetID      string  `json:"dataset_id"`
}

// handleIngest streams a single-split ingest run over SSE, one event per
// ingest.Progress value (§4.5, §9's generator-to-stream guidance).
func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ingestRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		sse, ok := newSSEWriter(w)
		if !ok {
			writeError(w, deps.Logger, domain.NewError(domain.KindInternal, "", errStreamingUnsupported))
			return
		}
		events, err := deps.Ingest.Ingest(r.Context(), ingest.Request{
			AnnotationPath: req.AnnotationPath,
			ImageDir:       req.ImageDir,
			DatasetName:    req.DatasetName,
			Format:         req.Format,
			Split:          req.Split,
			DatasetID:      req.DatasetID,
		})
		if err != nil {
			sse.send("error", map[string]string{"error": err.Error()})
			return
		}
		for p := range events {
			sse.send(p.Stage, p)
		}
	}
}

func handleScan(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Root string `json:"root"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		fs := deps.FS.Resolve(req.Root)
		result, err := scanner.New(fs).Scan(r.Context(), req.Root)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// handleImport streams a multi-split import over SSE; each event carries
// the currently processing split in its Message (§6).
func handleImport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DatasetName string               `json:"dataset_name"`
			Splits      []ingest.SplitRequest `json:"splits"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		sse, ok := newSSEWriter(w)
		if !ok {
			writeError(w, deps.Logger, domain.NewError(domain.KindInternal, "", errStreamingUnsupported))
			return
		}
		events, datasetID, err := deps.Ingest.IngestSplits(r.Context(), req.DatasetName, req.Splits)
		if err != nil {
			sse.send("error", map[string]string{"error": err.Error()})
			return
		}
		sse.send("started", map[string]string{"dataset_id": datasetID})
		for p := range events {
			sse.send(p.Stage, p)
		}
	}
}

// handleBrowse lists a directory, restricted to subdirectories and .json
// files (§6).
func handleBrowse(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path string `json:"path"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		fs := deps.FS.Resolve(req.Path)
		entries, err := fs.ListDirDetail(r.Context(), req.Path)
		if err != nil {
			writeError(w, deps.Logger, domain.NewError(domain.KindStoreError, "path", err))
			return
		}
		filtered := entries[:0]
		for _, e := range entries {
			if e.IsDir || hasJSONExt(e.Name) {
				filtered = append(filtered, e)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": filtered})
	}
}

func hasJSONExt(name string) bool {
	return len(name) > 5 && name[len(name)-5:] == ".json"
}

// deriveRunName implements §6's run_name fallback: for detection_annotation
// imports, annotationsSource + the import date; otherwise the file stem.
func deriveRunName(format, predictionPath, annotationsSource string, now time.Time) string {
	if format == "detection_annotation" && annotationsSource != "" {
		return annotationsSource + "_" + now.Format("2006-01-02")
	}
	return fileStem(predictionPath)
}

func fileStem(path string) string {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			base = path[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}

