package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/tasks"
)

// progressPollInterval is how often an SSE progress stream re-checks the
// task engine's snapshot (§9 "progress streaming" DOMAIN STACK wiring).
const progressPollInterval = 500 * time.Millisecond

var (
	errNoSuchTask  = errors.New("no task of this type has run for this dataset")
	errNoEmbedding = errors.New("sample has no embedding for this model")
)

func registerTaskRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("POST /datasets/{id}/embeddings/generate", handleLaunchTask(deps, tasks.TypeEmbed, func(e *tasks.Engine, id string) error { return e.LaunchEmbed(id) }))
	mux.HandleFunc("GET /datasets/{id}/embeddings/progress", handleTaskProgressSSE(deps, tasks.TypeEmbed))
	mux.HandleFunc("GET /datasets/{id}/embeddings/status", handleTaskStatus(deps, tasks.TypeEmbed))
	mux.HandleFunc("POST /datasets/{id}/embeddings/reduce", handleLaunchTask(deps, tasks.TypeReduce, func(e *tasks.Engine, id string) error { return e.LaunchReduce(id) }))
	mux.HandleFunc("GET /datasets/{id}/embeddings/reduce/progress", handleTaskProgressSSE(deps, tasks.TypeReduce))
	mux.HandleFunc("GET /datasets/{id}/embeddings/coordinates", handleCoordinates(deps))

	mux.HandleFunc("GET /datasets/{id}/similarity/search", handleSimilaritySearch(deps))

	mux.HandleFunc("POST /datasets/{id}/near-duplicates/detect", handleLaunchTask(deps, tasks.TypeNearDuplicate, func(e *tasks.Engine, id string) error { return e.LaunchNearDuplicate(id) }))
	mux.HandleFunc("GET /datasets/{id}/near-duplicates/progress", handleTaskProgressSSE(deps, tasks.TypeNearDuplicate))
	mux.HandleFunc("GET /datasets/{id}/near-duplicates", handleNearDuplicateResult(deps))

	mux.HandleFunc("POST /datasets/{id}/auto-tag", handleLaunchTask(deps, tasks.TypeAutoTag, func(e *tasks.Engine, id string) error { return e.LaunchAutoTag(id) }))
	mux.HandleFunc("GET /datasets/{id}/auto-tag/progress", handleTaskProgressSSE(deps, tasks.TypeAutoTag))
	mux.HandleFunc("GET /datasets/{id}/auto-tag/status", handleTaskStatus(deps, tasks.TypeAutoTag))
}

// handleLaunchTask POSTs a launch call against one of the engine's four
// task kinds, returning 202 Accepted since the work runs in the
// background and is polled separately (§4.11's request/poll contract).
func handleLaunchTask(deps Deps, taskType tasks.Type, launch func(*tasks.Engine, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID := r.PathValue("id")
		if err := launch(deps.Tasks, datasetID); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"task_type": string(taskType), "status": "running"})
	}
}

func handleTaskStatus(deps Deps, taskType tasks.Type) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := deps.Tasks.Snapshot(r.PathValue("id"), taskType)
		if !ok {
			writeError(w, deps.Logger, domain.NewError(domain.KindNotFound, "task_type", errNoSuchTask))
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// handleTaskProgressSSE polls the engine's progress snapshot on a fixed
// ticker and re-emits it as an SSE event, bridging the poll-based task
// contract onto a push-style stream for clients (§4.11 "progress
// streaming" in the DOMAIN STACK wiring).
func handleTaskProgressSSE(deps Deps, taskType tasks.Type) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID := r.PathValue("id")
		sse, ok := newSSEWriter(w)
		if !ok {
			writeError(w, deps.Logger, domain.NewError(domain.KindInternal, "", errStreamingUnsupported))
			return
		}
		ticker := time.NewTicker(progressPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				p, ok := deps.Tasks.Snapshot(datasetID, taskType)
				if !ok {
					continue
				}
				sse.send("progress", p)
				if p.Status != tasks.StatusRunning {
					return
				}
			}
		}
	}
}

func handleCoordinates(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID := r.PathValue("id")
		embeddings, err := deps.Store.EmbeddingsForDataset(r.Context(), datasetID, deps.ModelName())
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		type coord struct {
			SampleID string  `json:"sample_id"`
			X        float64 `json:"x"`
			Y        float64 `json:"y"`
		}
		out := make([]coord, 0, len(embeddings))
		for _, e := range embeddings {
			if e.X == nil || e.Y == nil {
				continue
			}
			out = append(out, coord{SampleID: e.SampleID, X: *e.X, Y: *e.Y})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleSimilaritySearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		datasetID := r.PathValue("id")
		sampleID := r.URL.Query().Get("sample_id")
		limit := queryIntOr(r, "limit", 10)

		embeddings, err := deps.Store.EmbeddingsForDataset(ctx, datasetID, deps.ModelName())
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		var vector []float32
		for _, e := range embeddings {
			if e.SampleID == sampleID {
				vector = e.Vector
				break
			}
		}
		if vector == nil {
			writeError(w, deps.Logger, domain.NewError(domain.KindNotFound, "sample_id", errNoEmbedding))
			return
		}
		results, err := deps.VecIndex.Query(ctx, datasetID, vector, limit, sampleID)
		if err != nil {
			writeError(w, deps.Logger, domain.NewError(domain.KindCapabilityUnavailable, "vector_index", err))
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func handleNearDuplicateResult(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, ok := deps.Tasks.NearDuplicateResult(r.PathValue("id"))
		if !ok {
			writeError(w, deps.Logger, domain.NewError(domain.KindNotFound, "dataset_id", errNoSuchTask))
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}
