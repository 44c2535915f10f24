package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/visionset/lens/engine/capability"
	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/objstore"
	"github.com/visionset/lens/engine/query"
	"github.com/visionset/lens/pkg/resilience"
)

// autoTagPrompts are the five fixed dimensions auto-tag asks the vision
// tagger about (§4.11 "Auto-tag"). An answer outside a dimension's
// vocabulary is dropped rather than stored.
var autoTagPrompts = []capability.TaggingPrompt{
	{
		Dimension:  "lighting",
		Prompt:     "Describe the lighting in this image: dark, dim, bright, or normal?",
		Vocabulary: []string{"dark", "dim", "bright", "normal"},
	},
	{
		Dimension:  "clarity",
		Prompt:     "Is this image blurry, acceptable, or sharp?",
		Vocabulary: []string{"blurry", "acceptable", "sharp"},
	},
	{
		Dimension:  "setting",
		Prompt:     "Is this image indoor or outdoor?",
		Vocabulary: []string{"indoor", "outdoor"},
	},
	{
		Dimension:  "weather",
		Prompt:     "What is the weather in this image: clear, rain, snow, fog, or overcast?",
		Vocabulary: []string{"clear", "rain", "snow", "fog", "overcast"},
	},
	{
		Dimension:  "density",
		Prompt:     "How crowded is this scene: empty, sparse, moderate, or crowded?",
		Vocabulary: []string{"empty", "sparse", "moderate", "crowded"},
	},
}

// LaunchAutoTag starts the auto-tag task: every sample's image is sent to
// the vision tagger once per dimension in autoTagPrompts, and
// vocabulary-valid answers are merged into the sample's tag list as
// "<dimension>:<value>" tags.
func (e *Engine) LaunchAutoTag(datasetID string) error {
	return e.launch(datasetID, TypeAutoTag, func(ctx context.Context, report reportFunc) error {
		return e.runAutoTag(ctx, datasetID, report)
	})
}

func (e *Engine) runAutoTag(ctx context.Context, datasetID string, report reportFunc) error {
	if e.deps.Tagger == nil {
		return domain.NewError(domain.KindCapabilityUnavailable, "tagger", errNoTagger)
	}
	page, err := query.Run(ctx, e.deps.Store, query.Filter{DatasetID: datasetID})
	if err != nil {
		return err
	}
	samples := page.Samples
	total := len(samples)
	report(0, total, "")

	for i, sm := range samples {
		if err := ctx.Err(); err != nil {
			return err
		}

		fs := e.deps.FS.Resolve(sm.ImageDir)
		path := objstore.ResolveImagePath(sm.ImageDir, sm.Filename)
		data, err := fs.ReadBytes(ctx, path)
		if err != nil {
			e.deps.Logger.Warn("auto_tag: failed to load image", "sample_id", sm.ID, "path", path, "error", err)
			report(i+1, total, "")
			continue
		}

		for _, prompt := range autoTagPrompts {
			answer, err := e.tagOne(ctx, data, prompt)
			if err != nil {
				if errors.Is(err, resilience.ErrCircuitOpen) {
					return domain.NewError(domain.KindCapabilityUnavailable, "tagger", err)
				}
				e.deps.Logger.Warn("auto_tag: tagger failed", "sample_id", sm.ID, "dimension", prompt.Dimension, "error", err)
				continue
			}
			if !inVocabulary(answer, prompt.Vocabulary) {
				continue
			}
			tag := fmt.Sprintf("%s:%s", prompt.Dimension, answer)
			if err := e.deps.Store.BulkTag(ctx, datasetID, tag, []string{sm.ID}); err != nil {
				return err
			}
		}
		report(i+1, total, "")
	}
	return nil
}

func (e *Engine) tagOne(ctx context.Context, imageBytes []byte, prompt capability.TaggingPrompt) (string, error) {
	var answer string
	err := e.breaker.Call(ctx, func(ctx context.Context) error {
		a, err := e.deps.Tagger.Tag(ctx, imageBytes, prompt)
		if err != nil {
			return err
		}
		answer = a
		return nil
	})
	return answer, err
}

func inVocabulary(answer string, vocabulary []string) bool {
	for _, v := range vocabulary {
		if v == answer {
			return true
		}
	}
	return false
}
