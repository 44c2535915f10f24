package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/visionset/lens/engine/domain"
)

// registerSavedViewRoutes exposes C1's saved-view rows (id, dataset_id,
// name, opaque filter-state blob) over HTTP. §6's route list doesn't
// enumerate these explicitly, but the entity and its store methods are
// part of the spec's data model, so they get the same create/list/delete
// surface every other dataset-scoped entity gets.
func registerSavedViewRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("GET /datasets/{id}/saved-views", handleListSavedViews(deps))
	mux.HandleFunc("POST /datasets/{id}/saved-views", handleCreateSavedView(deps))
	mux.HandleFunc("DELETE /datasets/{id}/saved-views/{view_id}", handleDeleteSavedView(deps))
}

func handleListSavedViews(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := deps.Store.ListSavedViews(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
	}
}

type createSavedViewRequest struct {
	Name  string         `json:"name"`
	State map[string]any `json:"state"`
}

func handleCreateSavedView(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSavedViewRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		v := domain.SavedView{
			ID: uuid.NewString(), DatasetID: r.PathValue("id"), Name: req.Name, State: req.State,
		}
		if err := deps.Store.CreateSavedView(r.Context(), v); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		v.CreatedAt, v.UpdatedAt = time.Now(), time.Now()
		writeJSON(w, http.StatusCreated, v)
	}
}

func handleDeleteSavedView(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteSavedView(r.Context(), r.PathValue("id"), r.PathValue("view_id")); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
