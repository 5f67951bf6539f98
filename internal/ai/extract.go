// Package ai implements the capability port over a prompt-in/text-out
// content generator. Model output is treated as possibly-malformed JSON
// everywhere: extraction falls back from direct parsing to fenced blocks to
// brace scanning, and decoding is weakly typed so minor shape drift does not
// break callers.
package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ExtractObject pulls the first JSON object out of raw model output. It
// tries a direct parse, then a fenced code block, then the outermost brace
// pair.
func ExtractObject(raw string) (map[string]any, error) {
	var obj map[string]any
	if err := extract(raw, "{", "}", &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// ExtractList pulls the first JSON array out of raw model output using the
// same fallback chain as ExtractObject.
func ExtractList(raw string) ([]any, error) {
	var list []any
	if err := extract(raw, "[", "]", &list); err != nil {
		return nil, err
	}
	return list, nil
}

func extract(raw, opening, closing string, out any) error {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return fmt.Errorf("empty response")
	}

	// Direct parse first: well-behaved responses are the common case.
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	if fenced := unfence(cleaned); fenced != "" {
		if err := json.Unmarshal([]byte(fenced), out); err == nil {
			return nil
		}
		cleaned = fenced
	}

	// Last resort: outermost delimiter pair in the surrounding prose.
	start := strings.Index(cleaned, opening)
	end := strings.LastIndex(cleaned, closing)
	if start == -1 || end <= start {
		return fmt.Errorf("no %s...%s found in response", opening, closing)
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// unfence strips a markdown code fence, returning the inner content or ""
// when no fence is present.
func unfence(raw string) string {
	start := strings.Index(raw, "```")
	if start == -1 {
		return ""
	}
	inner := raw[start+3:]
	inner = strings.TrimPrefix(inner, "json")
	end := strings.Index(inner, "```")
	if end == -1 {
		return strings.TrimSpace(inner)
	}
	return strings.TrimSpace(inner[:end])
}

// Decode maps loosely shaped extracted values onto a typed result. Weakly
// typed input tolerates models returning numbers as strings and vice versa.
func Decode(input, out any) error {
	cfg := &mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// DecodeObject extracts a JSON object from raw output and decodes it into
// the typed result in one step.
func DecodeObject(raw string, out any) error {
	obj, err := ExtractObject(raw)
	if err != nil {
		return err
	}
	return Decode(obj, out)
}

// TruncateJSON renders v as JSON clipped to maxChars, for embedding bounded
// context into prompts. The clipped tail may not be valid JSON; prompt
// context does not need to be.
func TruncateJSON(v any, maxChars int) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	runes := []rune(string(data))
	if maxChars <= 0 || len(runes) <= maxChars {
		return string(runes)
	}
	return string(runes[:maxChars]) + "..."
}
