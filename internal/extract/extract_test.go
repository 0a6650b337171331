package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardrobehq/wardrobe/internal/vision/mock"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

func TestParseDirectObject(t *testing.T) {
	meta, err := Parse(models.VisionResult{Object: map[string]any{
		"category":    "tops",
		"subcategory": "t-shirt",
		"colors":      []any{"white", "grey"},
		"description": "plain white t-shirt",
		"brand":       "Uniqlo",
	}})
	require.NoError(t, err)
	assert.Equal(t, "tops", meta.Category)
	assert.Equal(t, []string{"white", "grey"}, meta.Colors)
	require.NotNil(t, meta.Brand)
	assert.Equal(t, "Uniqlo", *meta.Brand)
}

func TestParseStripsFencesAndTrailingPeriod(t *testing.T) {
	// The service wraps its answer in a code fence and appends a period.
	text := "```json\n{\"category\":\"tops\",\"colors\":[\"blue\"],\"description\":\"a blue shirt\"}\n```."
	meta, err := Parse(models.VisionResult{Text: text})
	require.NoError(t, err)
	assert.Equal(t, "tops", meta.Category)
	assert.Equal(t, []string{"blue"}, meta.Colors)
	assert.Equal(t, "a blue shirt", meta.Description)
}

func TestParseFencedWithPeriodAndInnerObject(t *testing.T) {
	// Fence plus trailing period, with a nested object in the payload. The
	// span-recovery step cannot help here, so the text step itself has to
	// strip both markers.
	text := "```json\n{\"category\":\"tops\",\"colors\":[\"blue\"],\"description\":\"a blue shirt\",\"sizes\":{\"eu\":40}}\n```."
	meta, err := Parse(models.VisionResult{Text: text})
	require.NoError(t, err)
	assert.Equal(t, "tops", meta.Category)
	assert.Equal(t, "a blue shirt", meta.Description)
}

func TestParseBareFenceAndPeriodVariants(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no fence, trailing period", `{"category":"shoes","colors":["black"],"description":"black sneakers"}.`},
		{"fence without language tag", "```\n{\"category\":\"shoes\",\"colors\":[\"black\"],\"description\":\"black sneakers\"}\n```"},
		{"period inside fence", "```json\n{\"category\":\"shoes\",\"colors\":[\"black\"],\"description\":\"black sneakers\"}.\n```"},
		{"surrounding whitespace", "  {\"category\":\"shoes\",\"colors\":[\"black\"],\"description\":\"black sneakers\"}  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := Parse(models.VisionResult{Text: tt.text})
			require.NoError(t, err)
			assert.Equal(t, "shoes", meta.Category)
		})
	}
}

func TestParseRecoversNestedObject(t *testing.T) {
	// The model nested its real answer inside the description field of a
	// malformed outer object.
	outer := `{"category":"","description":"here you go: {\"category\":\"bottoms\",\"colors\":[\"blue\"],\"description\":\"dark denim jeans\"}"}`
	meta, err := Parse(models.VisionResult{Text: outer})
	require.NoError(t, err)
	assert.Equal(t, "bottoms", meta.Category)
	assert.Equal(t, "dark denim jeans", meta.Description)
}

func TestParseRecoversFromStructuredCandidate(t *testing.T) {
	meta, err := Parse(models.VisionResult{Object: map[string]any{
		"category":    "tops",
		"colors":      []any{"red"},
		"description": `second attempt: {"category":"outerwear","colors":["green"],"description":"a green parka"}`,
	}})
	require.NoError(t, err)
	// The outer object fails validation (nested JSON in description); the
	// recovered inner object wins.
	assert.Equal(t, "outerwear", meta.Category)
	assert.Equal(t, "a green parka", meta.Description)
}

func TestParseRejectsUnrecoverable(t *testing.T) {
	tests := []struct {
		name string
		res  models.VisionResult
	}{
		{"prose only", models.VisionResult{Text: "I cannot identify this garment."}},
		{"empty", models.VisionResult{}},
		{"category wrong type", models.VisionResult{Text: `{"category":7,"colors":[]}`}},
		{"colors not a list", models.VisionResult{Text: `{"category":"tops","colors":"blue"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.res)
			assert.Error(t, err)
		})
	}
}

func TestNormalize(t *testing.T) {
	meta := Normalize(models.ItemMetadata{
		Category:    "tops",
		Subcategory: "button-down",
		Season:      "all-season",
		Colors:      []string{},
		Description: "None",
	})
	assert.Equal(t, "button-up", meta.Subcategory)
	assert.Equal(t, "all", meta.Season)
	assert.Equal(t, []string{"unknown"}, meta.Colors)
	assert.Equal(t, "unknown button-up", meta.Description)

	// Unknown category collapses to the default.
	meta = Normalize(models.ItemMetadata{Category: "swimwear", Colors: []string{"teal"}})
	assert.Equal(t, models.DefaultCategory(), meta.Category)
	assert.Equal(t, "teal tops", meta.Description)
}

func TestNormalizeIdempotent(t *testing.T) {
	meta := Normalize(models.ItemMetadata{Category: "bottoms", Subcategory: "jeans"})
	again := Normalize(meta)
	assert.Equal(t, meta, again)
}

func TestFallback(t *testing.T) {
	meta := Fallback("The image appears to show some kind of garment but I am not sure.")
	assert.Equal(t, models.DefaultCategory(), meta.Category)
	assert.Equal(t, []string{"unknown"}, meta.Colors)
	assert.Contains(t, meta.Description, "appears to show")

	// Raw JSON never leaks into the description.
	meta = Fallback(`{"category":"tops","colors":`)
	assert.NotContains(t, meta.Description, "{")
	assert.Equal(t, "unknown tops", meta.Description)

	long := strings.Repeat("x", 5000)
	meta = Fallback(long)
	assert.LessOrEqual(t, len(meta.Description), fallbackDescriptionLimit)

	// A multi-byte rune straddling the cap is dropped whole, never split.
	meta = Fallback(strings.Repeat("日", fallbackDescriptionLimit))
	assert.True(t, utf8.ValidString(meta.Description))
	assert.LessOrEqual(t, len(meta.Description), fallbackDescriptionLimit)
}

func TestExtractRetriesThenSucceeds(t *testing.T) {
	provider := mock.NewSequenceProvider(
		mock.Step{Err: errors.New("rate limited")},
		mock.Step{Result: models.VisionResult{Text: `{"category":"bottoms","colors":["blue"],"description":"jeans"}`}},
	)
	e := New(provider)

	meta := e.Extract(context.Background(), []byte("img"), "image/jpeg", PipelineAttempts)
	assert.Equal(t, "bottoms", meta.Category)
	assert.Equal(t, 2, provider.Calls)
}

func TestExtractFallsBackAfterExhaustion(t *testing.T) {
	provider := mock.NewFailingProvider(errors.New("service down"))
	e := New(provider)

	meta := e.Extract(context.Background(), []byte("img"), "image/jpeg", InteractiveAttempts)
	assert.Equal(t, InteractiveAttempts, provider.Calls)
	assert.Equal(t, models.DefaultCategory(), meta.Category)
	assert.Equal(t, []string{"unknown"}, meta.Colors)
	assert.Equal(t, "unknown tops", meta.Description)
}

// Every extraction path honors the two hard invariants: colors is never
// empty and the description never carries a nested JSON object.
func TestExtractInvariantsHoldOnAllPaths(t *testing.T) {
	providers := map[string]models.VisionProvider{
		"direct object": mock.NewSequenceProvider(mock.Step{Result: models.VisionResult{
			Object: map[string]any{"category": "tops", "colors": []any{"red"}, "description": "a red top"},
		}}),
		"parsed text": mock.NewSequenceProvider(mock.Step{Result: models.VisionResult{
			Text: `{"category":"shoes","colors":["white"],"description":"white sneakers"}`,
		}}),
		"recovered nested": mock.NewSequenceProvider(mock.Step{Result: models.VisionResult{
			Text: `{"category":"","description":"{\"category\":\"bottoms\",\"colors\":[\"black\"],\"description\":\"black trousers\"}"}`,
		}}),
		"empty colors repaired": mock.NewSequenceProvider(mock.Step{Result: models.VisionResult{
			Text: `{"category":"tops","colors":[],"description":""}`,
		}}),
		"total failure": mock.NewFailingProvider(errors.New("down")),
		"garbage text":  mock.NewSequenceProvider(mock.Step{Result: models.VisionResult{Text: "not json at all"}}),
	}

	for name, provider := range providers {
		t.Run(name, func(t *testing.T) {
			meta := New(provider).Extract(context.Background(), []byte("img"), "image/jpeg", InteractiveAttempts)
			assert.NotEmpty(t, meta.Colors, "colors must never be empty")
			assert.NotContains(t, meta.Description, "{", "description must not contain nested JSON")
			assert.True(t, models.ValidCategory(meta.Category))
		})
	}
}
