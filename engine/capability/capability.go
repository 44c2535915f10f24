// Package capability defines the external-collaborator interfaces (§1 "out
// of scope", §6 "external collaborators treated as interfaces only"): the
// vision embedding model, the 2-D reducer, the vision-language tagger, the
// opaque LLM agent, and the thumbnail codec. None of these is implemented
// against a specific backend here — callers supply whatever adapter fits
// their deployment (capability/visionhttp is the one concrete example).
package capability

import "context"

// Embedder turns one image's raw bytes into a fixed-length embedding
// vector (§4.11 "Embed").
type Embedder interface {
	Embed(ctx context.Context, imageBytes []byte) ([]float32, error)
	Dimensions() int
}

// ReduceParams fixes the reducer's tunable parameters (§4.11 "Reduce").
type ReduceParams struct {
	Neighbors       int
	MinDist         float64
	Metric          string
	Seed            int64
}

// Reducer projects a set of D-dimensional vectors onto 2 dimensions,
// returning one (x, y) pair per input vector in the same order.
type Reducer interface {
	Reduce(ctx context.Context, vectors [][]float32, params ReduceParams) ([][2]float64, error)
}

// TaggingPrompt is one of the five fixed natural-language dimensions
// auto-tag asks about (§4.11 "Auto-tag"), paired with its controlled
// vocabulary.
type TaggingPrompt struct {
	Dimension  string
	Prompt     string
	Vocabulary []string
}

// VisionTagger answers a fixed prompt about an image, constrained to a
// controlled vocabulary; an answer outside the vocabulary is rejected by
// the caller, not by this interface.
type VisionTagger interface {
	Tag(ctx context.Context, imageBytes []byte, prompt TaggingPrompt) (string, error)
}

// Agent is the opaque LLM capability (§1): fixed input/output schema, no
// assumption about the model behind it.
type Agent interface {
	Run(ctx context.Context, input map[string]any) (map[string]any, error)
}

// ThumbnailCodec renders an image to WebP bytes at a target pixel size
// (§6: sizes 128/256/512, quality 80). Out of scope per §1; declared here
// so the HTTP surface and task engine can depend on the contract without a
// concrete implementation living in this repository.
type ThumbnailCodec interface {
	Encode(ctx context.Context, imageBytes []byte, targetPx int) ([]byte, error)
}
