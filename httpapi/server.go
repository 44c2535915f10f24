// Package httpapi implements the HTTP surface (C14): route registration,
// request decoding, status-code mapping from domain.Kind, and the
// middleware chain, following the teacher's cmd/api handler shape
// (closures over injected dependencies, JSON bodies, Go 1.22+ method
// patterns) generalised to the full route table in §6.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/visionset/lens/engine/capability"
	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/ingest"
	"github.com/visionset/lens/engine/objstore"
	"github.com/visionset/lens/engine/plugin"
	"github.com/visionset/lens/engine/store"
	"github.com/visionset/lens/engine/tasks"
	"github.com/visionset/lens/engine/vectorindex"
	"github.com/visionset/lens/pkg/metrics"
	"github.com/visionset/lens/pkg/mid"
)

// Deps are the HTTP layer's process-wide collaborators, injected rather
// than ambient.
type Deps struct {
	Store    *store.Store
	FS       *objstore.Registry
	Ingest   *ingest.Orchestrator
	Plugins  *plugin.Registry
	Tasks    *tasks.Engine
	VecIndex *vectorindex.Index
	Codec    capability.ThumbnailCodec // nil disables resized image variants (§1 out of scope)
	Metrics  *metrics.Registry
	// CacheDir is where resized image bytes are cached; objstore.FS has no
	// write side, so image handlers write through os directly.
	CacheDir string
	Model    string // the embedding model name keying the embeddings table
	Logger   *slog.Logger
}

// ModelName returns the configured embedding model name used to key the
// embeddings table and the vector index collection.
func (d Deps) ModelName() string { return d.Model }

// New builds the full routed, middleware-wrapped server.
func New(deps Deps, corsOrigin string) http.Handler {
	mux := http.NewServeMux()
	registerHealth(mux)
	registerIngestRoutes(mux, deps)
	registerDatasetRoutes(mux, deps)
	registerSavedViewRoutes(mux, deps)
	registerSampleRoutes(mux, deps)
	registerAnnotationRoutes(mux, deps)
	registerImageRoutes(mux, deps)
	registerEvaluationRoutes(mux, deps)
	registerTaskRoutes(mux, deps)
	registerTriageRoutes(mux, deps)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	return mid.Chain(mux,
		mid.Recover(deps.Logger),
		mid.Logger(deps.Logger),
		mid.CORS(corsOrigin),
	)
}

func registerHealth(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// statusFor maps a domain.Kind to its HTTP status code per §7.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindBadInput, domain.KindParseError:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindCapabilityUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status code via domain.KindOf and writes a JSON
// error body, logging server-side (5xx) failures.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status >= 500 {
		logger.Error("request failed", "kind", kind, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.NewError(domain.KindBadInput, "body", err)
	}
	return nil
}

func queryIntOr(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
