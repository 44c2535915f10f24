package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/visionset/lens/engine/capability"
	"github.com/visionset/lens/engine/dedupe"
	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/objstore"
	"github.com/visionset/lens/engine/query"
	"github.com/visionset/lens/engine/store"
	"github.com/visionset/lens/engine/vectorindex"
)

type fakeEmbedder struct {
	dims   int
	fail   map[string]bool // by image content string
	failN  int              // fail the next N calls regardless of content
	called int
}

func (f *fakeEmbedder) Embed(_ context.Context, imageBytes []byte) ([]float32, error) {
	f.called++
	if f.failN > 0 {
		f.failN--
		return nil, errors.New("embedder unavailable")
	}
	if f.fail[string(imageBytes)] {
		return nil, errors.New("embed failed")
	}
	out := make([]float32, f.dims)
	for i := range out {
		out[i] = float32(len(imageBytes))
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }

type fakeReducer struct {
	coords [][2]float64
	err    error
}

func (f *fakeReducer) Reduce(_ context.Context, vectors [][]float32, _ capability.ReduceParams) ([][2]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.coords != nil {
		return f.coords, nil
	}
	out := make([][2]float64, len(vectors))
	for i := range out {
		out[i] = [2]float64{float64(i), float64(i) * 2}
	}
	return out, nil
}

type fakeTagger struct {
	answer string
	err    error
}

func (f *fakeTagger) Tag(_ context.Context, _ []byte, _ capability.TaggingPrompt) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeVectorIndex struct {
	neighbours map[string][]vectorindex.SearchResult
}

func (f *fakeVectorIndex) EnsureCollection(context.Context, string, int) error { return nil }

func (f *fakeVectorIndex) Query(_ context.Context, _ string, _ []float32, k int, exclude string) ([]vectorindex.SearchResult, error) {
	hits := f.neighbours[exclude]
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(Deps{
		Store:     s,
		FS:        objstore.NewRegistry(nil),
		Embedder:  &fakeEmbedder{dims: 4},
		Reducer:   &fakeReducer{},
		Tagger:    &fakeTagger{answer: "bright"},
		ModelName: "test-model",
		Logger:    logger,
	})
	return e, s
}

// seedDataset creates a dataset with n samples, each with a tiny real file
// on disk so the embed/auto_tag tasks can load image bytes.
func seedDataset(t *testing.T, s *store.Store, datasetID string, n int) string {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	if err := s.CreateDataset(ctx, domain.Dataset{
		ID: datasetID, Name: "test", Format: domain.Format("coco"),
		DatasetType: domain.DatasetTypeDetection, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}

	rows := make([]store.ImageRow, n)
	for i := 0; i < n; i++ {
		name := filepath.Base(filepath.Join("", sampleFilename(i)))
		if err := os.WriteFile(filepath.Join(dir, name), []byte{byte(i), byte(i + 1)}, 0o644); err != nil {
			t.Fatalf("write fixture image: %v", err)
		}
		rows[i] = store.ImageRow{ID: sampleID(i), Filename: name, Width: 10, Height: 10, ImageDir: dir}
	}
	if err := s.BulkInsertImages(ctx, datasetID, rows); err != nil {
		t.Fatalf("BulkInsertImages: %v", err)
	}
	return dir
}

func sampleID(i int) string       { return "s" + string(rune('a'+i)) }
func sampleFilename(i int) string { return sampleID(i) + ".jpg" }

func TestLaunchRejectsConcurrentRunOfSameType(t *testing.T) {
	e, _ := newTestEngine(t)
	block := make(chan struct{})
	err := e.launch("d1", TypeEmbed, func(ctx context.Context, report reportFunc) error {
		<-block
		return nil
	})
	if err != nil {
		t.Fatalf("first launch: %v", err)
	}

	err = e.launch("d1", TypeEmbed, func(ctx context.Context, report reportFunc) error { return nil })
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("expected KindConflict, got %v", err)
	}
	close(block)
}

func TestLaunchAllowsDifferentTaskTypesConcurrently(t *testing.T) {
	e, _ := newTestEngine(t)
	block := make(chan struct{})
	if err := e.launch("d1", TypeEmbed, func(ctx context.Context, report reportFunc) error { <-block; return nil }); err != nil {
		t.Fatalf("embed launch: %v", err)
	}
	if err := e.launch("d1", TypeReduce, func(ctx context.Context, report reportFunc) error { return nil }); err != nil {
		t.Fatalf("reduce launch: %v", err)
	}
	close(block)
}

func waitForTerminal(t *testing.T, e *Engine, datasetID string, taskType Type) Progress {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p, ok := e.Snapshot(datasetID, taskType)
		if ok && p.Status != StatusRunning {
			return p
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task %s/%s never reached a terminal state", datasetID, taskType)
	return Progress{}
}

func TestEmbedWritesOneVectorPerSample(t *testing.T) {
	e, s := newTestEngine(t)
	seedDataset(t, s, "d1", 3)

	if err := e.LaunchEmbed("d1"); err != nil {
		t.Fatalf("LaunchEmbed: %v", err)
	}
	p := waitForTerminal(t, e, "d1", TypeEmbed)
	if p.Status != StatusComplete {
		t.Fatalf("expected complete, got %+v", p)
	}

	embeddings, err := s.EmbeddingsForDataset(context.Background(), "d1", "test-model")
	if err != nil {
		t.Fatalf("EmbeddingsForDataset: %v", err)
	}
	if len(embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(embeddings))
	}
}

func TestEmbedSkipsSamplesWithMissingImages(t *testing.T) {
	e, s := newTestEngine(t)
	dir := seedDataset(t, s, "d1", 2)
	// delete one image so it fails to load
	os.Remove(filepath.Join(dir, sampleFilename(0)))

	if err := e.LaunchEmbed("d1"); err != nil {
		t.Fatalf("LaunchEmbed: %v", err)
	}
	p := waitForTerminal(t, e, "d1", TypeEmbed)
	if p.Status != StatusComplete {
		t.Fatalf("expected complete despite one missing image, got %+v", p)
	}

	embeddings, err := s.EmbeddingsForDataset(context.Background(), "d1", "test-model")
	if err != nil {
		t.Fatalf("EmbeddingsForDataset: %v", err)
	}
	if len(embeddings) != 1 {
		t.Fatalf("expected 1 embedding (the loadable sample), got %d", len(embeddings))
	}
}

func TestReduceClampsNeighborsForSmallDatasets(t *testing.T) {
	e, s := newTestEngine(t)
	seedDataset(t, s, "d1", 2)
	if err := e.LaunchEmbed("d1"); err != nil {
		t.Fatalf("LaunchEmbed: %v", err)
	}
	waitForTerminal(t, e, "d1", TypeEmbed)

	if err := e.LaunchReduce("d1"); err != nil {
		t.Fatalf("LaunchReduce: %v", err)
	}
	p := waitForTerminal(t, e, "d1", TypeReduce)
	if p.Status != StatusComplete {
		t.Fatalf("expected complete, got %+v", p)
	}

	embeddings, err := s.EmbeddingsForDataset(context.Background(), "d1", "test-model")
	if err != nil {
		t.Fatalf("EmbeddingsForDataset: %v", err)
	}
	for _, emb := range embeddings {
		if emb.X == nil || emb.Y == nil {
			t.Fatalf("expected coordinates to be set for every sample, got %+v", emb)
		}
	}
}

func TestNearDuplicateClustersMutualNeighbours(t *testing.T) {
	e, s := newTestEngine(t)
	seedDataset(t, s, "d1", 4)
	if err := e.LaunchEmbed("d1"); err != nil {
		t.Fatalf("LaunchEmbed: %v", err)
	}
	waitForTerminal(t, e, "d1", TypeEmbed)

	e.deps.VecIndex = &fakeVectorIndex{neighbours: map[string][]vectorindex.SearchResult{
		sampleID(0): {{SampleID: sampleID(1), Score: 0.99}},
		sampleID(1): {{SampleID: sampleID(0), Score: 0.99}},
		sampleID(2): {{SampleID: sampleID(3), Score: 0.5}}, // below threshold
	}}

	if err := e.LaunchNearDuplicate("d1"); err != nil {
		t.Fatalf("LaunchNearDuplicate: %v", err)
	}
	p := waitForTerminal(t, e, "d1", TypeNearDuplicate)
	if p.Status != StatusComplete {
		t.Fatalf("expected complete, got %+v", p)
	}

	groups, ok := e.NearDuplicateResult("d1")
	if !ok {
		t.Fatal("expected a cached near-duplicate result")
	}
	if len(groups) != 1 || len(groups[0].SampleIDs) != 2 {
		t.Fatalf("expected one 2-member group, got %+v", groups)
	}
	found := dedupe.Group{SampleIDs: []string{sampleID(0), sampleID(1)}}
	if groups[0].SampleIDs[0] != found.SampleIDs[0] || groups[0].SampleIDs[1] != found.SampleIDs[1] {
		t.Fatalf("unexpected group membership: %+v", groups[0])
	}
}

func TestAutoTagMergesVocabularyAnswers(t *testing.T) {
	e, s := newTestEngine(t)
	seedDataset(t, s, "d1", 1)

	if err := e.LaunchAutoTag("d1"); err != nil {
		t.Fatalf("LaunchAutoTag: %v", err)
	}
	p := waitForTerminal(t, e, "d1", TypeAutoTag)
	if p.Status != StatusComplete {
		t.Fatalf("expected complete, got %+v", p)
	}

	page, err := query.Run(context.Background(), s, query.Filter{DatasetID: "d1"})
	if err != nil {
		t.Fatalf("query samples: %v", err)
	}
	if len(page.Samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(page.Samples))
	}
	var sawLightingTag bool
	for _, tag := range page.Samples[0].Tags {
		if tag == "lighting:bright" {
			sawLightingTag = true
		}
	}
	if !sawLightingTag {
		t.Fatalf("expected lighting:bright tag, got %v", page.Samples[0].Tags)
	}
}
