package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/wardrobehq/wardrobe/pkg/models"
)

// fallbackDescriptionLimit caps how much raw response text ends up in a
// fallback description.
const fallbackDescriptionLimit = 200

// Normalize applies the field repairs the model is not trusted to get
// right. Idempotent.
func Normalize(meta models.ItemMetadata) models.ItemMetadata {
	if !models.ValidCategory(meta.Category) {
		meta.Category = models.DefaultCategory()
	}

	if strings.EqualFold(meta.Subcategory, "button-down") {
		meta.Subcategory = "button-up"
	}
	if strings.EqualFold(meta.Season, "all-season") {
		meta.Season = "all"
	}

	// Downstream rendering indexes colors[0] without a nil check.
	if len(meta.Colors) == 0 {
		meta.Colors = []string{"unknown"}
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}

	desc := strings.TrimSpace(meta.Description)
	if desc == "" || strings.EqualFold(desc, "none") {
		meta.Description = synthesizeDescription(meta)
	}

	return meta
}

// synthesizeDescription builds a minimal human-readable description from
// the primary color and the most specific garment name available.
func synthesizeDescription(meta models.ItemMetadata) string {
	noun := meta.Subcategory
	if noun == "" {
		noun = meta.Category
	}
	return meta.Colors[0] + " " + noun
}

// Fallback produces the best-effort record used when every extraction
// attempt failed. The raw response prefix is kept so the failure is
// inspectable rather than opaque.
func Fallback(raw string) models.ItemMetadata {
	desc := strings.TrimSpace(raw)
	// Keep the prefix inspectable without violating the no-nested-JSON
	// guarantee; an empty remainder falls through to a synthesized text.
	if i := strings.IndexByte(desc, '{'); i >= 0 {
		desc = strings.TrimSpace(desc[:i])
	}
	if len(desc) > fallbackDescriptionLimit {
		// Back off to a rune boundary so the cut never splits a
		// multi-byte character.
		cut := fallbackDescriptionLimit
		for cut > 0 && !utf8.RuneStart(desc[cut]) {
			cut--
		}
		desc = desc[:cut]
	}
	return Normalize(models.ItemMetadata{
		Category:    models.DefaultCategory(),
		Colors:      []string{},
		Tags:        []string{},
		Description: desc,
	})
}
