package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/wardrobehq/wardrobe/pkg/models"
)

// The repair cascade. Each step is a total function from the raw
// inference result to a candidate metadata map; Parse runs them in order
// and the first one whose candidate validates wins.

var (
	reCodeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	// A flat {...} span containing the category key. The model sometimes
	// nests a second attempt at the answer inside the description field,
	// where its quotes arrive escaped.
	reNestedObject = regexp.MustCompile(`\{[^{}]*\\?"category\\?":[^{}]*\}`)
)

// Parse extracts a validated metadata map from a raw inference result.
func Parse(res models.VisionResult) (models.ItemMetadata, error) {
	steps := []func(models.VisionResult) (map[string]any, error){
		fromObject,
		fromText,
		fromNested,
	}

	var lastErr error
	for _, step := range steps {
		candidate, err := step(res)
		if err != nil {
			lastErr = err
			continue
		}
		if err := validate(candidate); err != nil {
			lastErr = err
			continue
		}
		return toMetadata(candidate), nil
	}
	return models.ItemMetadata{}, fmt.Errorf("no parse step produced valid metadata: %w", lastErr)
}

// fromObject accepts a response the service already returned structured.
func fromObject(res models.VisionResult) (map[string]any, error) {
	if !res.Structured() {
		return nil, fmt.Errorf("response is not a structured object")
	}
	return res.Object, nil
}

// fromText strips code-fence markers and a trailing period, then parses
// the remainder as JSON.
func fromText(res models.VisionResult) (map[string]any, error) {
	cleaned := cleanText(res.Text)
	var m map[string]any
	if err := json.Unmarshal([]byte(cleaned), &m); err != nil {
		return nil, fmt.Errorf("parse response text: %w", err)
	}
	return m, nil
}

// fromNested recovers a {...} span containing the category key from the
// stringified candidate. Covers the model wrapping its real answer in
// prose or inside another object's description.
func fromNested(res models.VisionResult) (map[string]any, error) {
	raw := res.Text
	if res.Structured() {
		b, err := json.Marshal(res.Object)
		if err != nil {
			return nil, fmt.Errorf("stringify structured response: %w", err)
		}
		raw = string(b)
	}

	span := reNestedObject.FindString(raw)
	if span == "" {
		return nil, fmt.Errorf("no recoverable object span in response")
	}
	// Escaped quotes appear when the span was quoted inside a JSON string.
	span = strings.ReplaceAll(span, `\"`, `"`)

	var m map[string]any
	if err := json.Unmarshal([]byte(span), &m); err != nil {
		return nil, fmt.Errorf("parse recovered span: %w", err)
	}
	return m, nil
}

func cleanText(s string) string {
	// A trailing period can sit outside the closing fence, inside it, or
	// both, so the period is trimmed on either side of the fence strip.
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	s = strings.TrimSpace(s)
	if m := reCodeFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	return strings.TrimSpace(s)
}

// validate applies the shape checks: category is a non-empty string,
// colors is a list, and description does not itself contain a nested JSON
// object.
func validate(m map[string]any) error {
	if m == nil {
		return fmt.Errorf("candidate is nil")
	}

	cat, ok := m["category"].(string)
	if !ok || strings.TrimSpace(cat) == "" {
		return fmt.Errorf("category missing or not a non-empty string")
	}

	if colors, present := m["colors"]; present && colors != nil {
		if _, ok := colors.([]any); !ok {
			return fmt.Errorf("colors is not a list")
		}
	}

	if desc, present := m["description"]; present && desc != nil {
		s, ok := desc.(string)
		if !ok {
			return fmt.Errorf("description is not a string")
		}
		if strings.Contains(s, "{") || strings.Contains(s, `"category"`) {
			return fmt.Errorf("description contains a nested object")
		}
	}

	return nil
}

// toMetadata maps a validated candidate onto ItemMetadata, tolerating
// missing or mistyped optional fields.
func toMetadata(m map[string]any) models.ItemMetadata {
	meta := models.ItemMetadata{
		Category:    stringField(m, "category"),
		Subcategory: stringField(m, "subcategory"),
		Colors:      stringList(m, "colors"),
		Description: stringField(m, "description"),
		Tags:        stringList(m, "tags"),
		Material:    stringField(m, "material"),
		Fit:         stringField(m, "fit"),
		Style:       stringField(m, "style"),
		Season:      stringField(m, "season"),
		Boldness:    stringField(m, "boldness"),
	}
	if brand := stringField(m, "brand"); brand != "" && !strings.EqualFold(brand, "none") {
		meta.Brand = &brand
	}
	return meta
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func stringList(m map[string]any, key string) []string {
	list, ok := m[key].([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
