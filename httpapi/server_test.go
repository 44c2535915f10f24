package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/objstore"
	"github.com/visionset/lens/engine/store"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return Deps{
		Store:  s,
		FS:     objstore.NewRegistry(nil),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func seedDataset(t *testing.T, deps Deps, id string) {
	t.Helper()
	if err := deps.Store.CreateDataset(context.Background(), domain.Dataset{
		ID: id, Name: "test", AnnotationPath: "a.json", ImageBasePath: "images/",
		Format: domain.FormatCOCO, DatasetType: domain.DatasetTypeDetection, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed dataset: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	deps := newTestDeps(t)
	mux := http.NewServeMux()
	registerHealth(mux)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/health", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
	_ = deps
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		kind domain.Kind
		want int
	}{
		{domain.KindBadInput, http.StatusBadRequest},
		{domain.KindParseError, http.StatusBadRequest},
		{domain.KindNotFound, http.StatusNotFound},
		{domain.KindConflict, http.StatusConflict},
		{domain.KindCapabilityUnavailable, http.StatusServiceUnavailable},
		{domain.KindStoreError, http.StatusInternalServerError},
		{domain.KindInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.kind); got != c.want {
			t.Errorf("statusFor(%s) = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestHandleGetDataset_NotFound(t *testing.T) {
	deps := newTestDeps(t)
	handler := handleGetDataset(deps)

	req := httptest.NewRequest("GET", "/datasets/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleGetDataset_Found(t *testing.T) {
	deps := newTestDeps(t)
	seedDataset(t, deps, "d1")
	handler := handleGetDataset(deps)

	req := httptest.NewRequest("GET", "/datasets/d1", nil)
	req.SetPathValue("id", "d1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ds domain.Dataset
	if err := json.NewDecoder(rec.Body).Decode(&ds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ds.ID != "d1" {
		t.Fatalf("expected d1, got %s", ds.ID)
	}
}

func TestHandleRenameDataset(t *testing.T) {
	deps := newTestDeps(t)
	seedDataset(t, deps, "d1")
	handler := handleRenameDataset(deps)

	body := `{"name":"renamed"}`
	req := httptest.NewRequest("PATCH", "/datasets/d1", bytes.NewBufferString(body))
	req.SetPathValue("id", "d1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ds domain.Dataset
	if err := json.NewDecoder(rec.Body).Decode(&ds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ds.Name != "renamed" {
		t.Fatalf("expected name renamed, got %s", ds.Name)
	}
}

func TestHandleDeleteDataset(t *testing.T) {
	deps := newTestDeps(t)
	seedDataset(t, deps, "d1")
	handler := handleDeleteDataset(deps)

	req := httptest.NewRequest("DELETE", "/datasets/d1", nil)
	req.SetPathValue("id", "d1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, err := deps.Store.GetDataset(context.Background(), "d1"); err == nil {
		t.Fatal("expected dataset to be gone")
	}
}

func TestHandleListSamples_InvalidSort(t *testing.T) {
	deps := newTestDeps(t)
	seedDataset(t, deps, "d1")
	handler := handleListSamples(deps)

	req := httptest.NewRequest("GET", "/samples?dataset_id=d1&sort=totally_bogus_column", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	// An unrecognised sort column is documented to fall back to id ASC
	// rather than reject the request (§4.6), so this should succeed.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCreateAnnotation_ForcesGroundTruth(t *testing.T) {
	deps := newTestDeps(t)
	seedDataset(t, deps, "d1")
	if err := deps.Store.BulkInsertImages(context.Background(), "d1", []store.ImageRow{{ID: "s1", Filename: "a.jpg"}}); err != nil {
		t.Fatalf("seed sample: %v", err)
	}
	handler := handleCreateAnnotation(deps)

	body := `{"dataset_id":"d1","sample_id":"s1","category_name":"car","bbox_w":10,"bbox_h":10}`
	req := httptest.NewRequest("POST", "/annotations", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var a domain.Annotation
	if err := json.NewDecoder(rec.Body).Decode(&a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.Source != domain.GroundTruthSource {
		t.Fatalf("expected source forced to ground_truth, got %s", a.Source)
	}
}

func TestHandleCreateThenDeleteAnnotation_UpdatesCounters(t *testing.T) {
	deps := newTestDeps(t)
	seedDataset(t, deps, "d1")
	if err := deps.Store.BulkInsertImages(context.Background(), "d1", []store.ImageRow{{ID: "s1", Filename: "a.jpg"}}); err != nil {
		t.Fatalf("seed sample: %v", err)
	}

	create := handleCreateAnnotation(deps)
	body := `{"dataset_id":"d1","sample_id":"s1","category_name":"car","bbox_w":10,"bbox_h":10}`
	req := httptest.NewRequest("POST", "/annotations", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	create(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var a domain.Annotation
	if err := json.NewDecoder(rec.Body).Decode(&a); err != nil {
		t.Fatalf("decode: %v", err)
	}

	ds, err := deps.Store.GetDataset(context.Background(), "d1")
	if err != nil {
		t.Fatalf("get dataset: %v", err)
	}
	if ds.AnnotationCount != 1 {
		t.Fatalf("expected annotation_count=1 after create, got %d", ds.AnnotationCount)
	}

	del := handleDeleteAnnotation(deps)
	req = httptest.NewRequest("DELETE", "/annotations/"+a.ID+"?dataset_id=d1", nil)
	req.SetPathValue("id", a.ID)
	rec = httptest.NewRecorder()
	del(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	ds, err = deps.Store.GetDataset(context.Background(), "d1")
	if err != nil {
		t.Fatalf("get dataset: %v", err)
	}
	if ds.AnnotationCount != 0 {
		t.Fatalf("expected annotation_count=0 after delete, got %d", ds.AnnotationCount)
	}
}

func TestHandleBulkTagThenUntag_Idempotent(t *testing.T) {
	deps := newTestDeps(t)
	seedDataset(t, deps, "d1")
	if err := deps.Store.BulkInsertImages(context.Background(), "d1", []store.ImageRow{{ID: "s1", Filename: "a.jpg"}}); err != nil {
		t.Fatalf("seed sample: %v", err)
	}

	tag := handleBulkTag(deps)
	body := `{"dataset_id":"d1","tag":"review","sample_ids":["s1"]}`
	req := httptest.NewRequest("PATCH", "/samples/bulk-tag", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	tag(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk-tag: expected 200, got %d", rec.Code)
	}
	// Re-applying the same tag must not duplicate it (P8).
	req = httptest.NewRequest("PATCH", "/samples/bulk-tag", bytes.NewBufferString(body))
	rec = httptest.NewRecorder()
	tag(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat bulk-tag: expected 200, got %d", rec.Code)
	}

	untag := handleBulkUntag(deps)
	req = httptest.NewRequest("PATCH", "/samples/bulk-untag", bytes.NewBufferString(body))
	rec = httptest.NewRecorder()
	untag(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk-untag: expected 200, got %d", rec.Code)
	}
}

func TestHandleSetTriageTag_UnknownLabel(t *testing.T) {
	deps := newTestDeps(t)
	handler := handleSetTriageTag(deps)

	body := `{"dataset_id":"d1","sample_id":"s1","label":"triage:bogus"}`
	req := httptest.NewRequest("PATCH", "/samples/set-triage-tag", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleImage_NoCodecIsCapabilityUnavailable(t *testing.T) {
	deps := newTestDeps(t)
	seedDataset(t, deps, "d1")
	if err := deps.Store.BulkInsertImages(context.Background(), "d1", []store.ImageRow{{ID: "s1", Filename: "a.jpg", ImageDir: "images/"}}); err != nil {
		t.Fatalf("seed sample: %v", err)
	}
	handler := handleImage(deps)

	req := httptest.NewRequest("GET", "/images/d1/s1?size=small", nil)
	req.SetPathValue("dataset_id", "d1")
	req.SetPathValue("sample_id", "s1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with no codec configured, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleImage_InvalidSize(t *testing.T) {
	deps := newTestDeps(t)
	seedDataset(t, deps, "d1")
	if err := deps.Store.BulkInsertImages(context.Background(), "d1", []store.ImageRow{{ID: "s1", Filename: "a.jpg", ImageDir: "images/"}}); err != nil {
		t.Fatalf("seed sample: %v", err)
	}
	handler := handleImage(deps)

	req := httptest.NewRequest("GET", "/images/d1/s1?size=huge", nil)
	req.SetPathValue("dataset_id", "d1")
	req.SetPathValue("sample_id", "s1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unrecognised size, got %d: %s", rec.Code, rec.Body.String())
	}
}
