// Package extract turns vision inference output into validated item
// metadata. The inference service is not trusted: its output may be
// fenced, suffixed with prose, or carry a second JSON object nested in
// the description field. Extraction always resolves to usable metadata;
// a total failure yields an inspectable fallback record, never an error.
package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/wardrobehq/wardrobe/pkg/models"
)

// Attempt bounds: interactive single-image analysis fails fast; the batch
// item pipeline tries harder.
const (
	InteractiveAttempts = 2
	PipelineAttempts    = 3
)

// prompt constrains the model to a single flat JSON object. The category
// list must stay in sync with models.Categories.
const prompt = `Analyze the clothing item in this image and respond with exactly one JSON object, no code fences, no extra text. Fields:
"category": one of "tops", "bottoms", "shoes", "outerwear", "accessories";
"subcategory": a short garment name (e.g. "t-shirt", "jeans", "button-up");
"colors": a non-empty list of the dominant colors;
"brand": the brand name if visible, else null;
"description": one short plain sentence, no nested JSON;
"tags": a list of short style keywords;
"material": the likely fabric or material;
"fit": e.g. "slim", "regular", "oversized";
"style": e.g. "casual", "formal", "sporty";
"season": one of "summer", "winter", "spring", "fall", "all";
"boldness": "statement" or "staple".`

// Extractor drives the parse cascade against a vision provider.
type Extractor struct {
	provider models.VisionProvider
}

func New(provider models.VisionProvider) *Extractor {
	return &Extractor{provider: provider}
}

// Extract analyzes the image and always returns usable metadata. attempts
// bounds the number of full inference calls; parse repair happens within
// each attempt.
func (e *Extractor) Extract(ctx context.Context, imageData []byte, mimeType string, attempts int) models.ItemMetadata {
	if attempts < 1 {
		attempts = 1
	}

	var lastRaw string
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := e.provider.Analyze(ctx, models.VisionRequest{
			ImageData: imageData,
			MimeType:  mimeType,
			Prompt:    prompt,
		})
		if err != nil {
			slog.Warn("vision inference failed",
				"provider", e.provider.Name(), "attempt", attempt, "error", err)
		} else {
			lastRaw = rawText(res)
			meta, parseErr := Parse(res)
			if parseErr == nil {
				return Normalize(meta)
			}
			slog.Warn("vision output failed validation",
				"provider", e.provider.Name(), "attempt", attempt, "error", parseErr)
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return Fallback(lastRaw)
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
	}

	slog.Error("metadata extraction exhausted attempts, using fallback",
		"provider", e.provider.Name(), "attempts", attempts)
	return Fallback(lastRaw)
}

func rawText(res models.VisionResult) string {
	if res.Structured() {
		if s, ok := res.Object["description"].(string); ok {
			return s
		}
		return ""
	}
	return res.Text
}
