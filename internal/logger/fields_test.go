package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  provider  ", Value: "  Gemini  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "provider" || fields[0].String != "Gemini" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}

	empty := StringFields()
	if len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestWithFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	enriched := WithFields(logger, zap.String("foo", "bar"))
	enriched.Info("test log")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	if ctx["foo"] != "bar" {
		t.Fatalf("expected field to be bar, got %q", ctx["foo"])
	}

	enriched = WithFields(nil, zap.String("baz", "qux"))
	if enriched == nil {
		t.Fatalf("expected fallback logger when nil provided")
	}

	// Ensure logging with the fallback logger does not panic.
	enriched.Info("another log")
}

func TestAIFields(t *testing.T) {
	fields := AIFields("  Gemini  ", "model-v1")
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}

	if fields[0].Key != FieldProvider || fields[0].String != "Gemini" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}

	if fields[1].Key != FieldModel || fields[1].String != "model-v1" {
		t.Fatalf("unexpected model field: %+v", fields[1])
	}

	empty := AIFields("", "")
	if len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestSessionFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	enriched := WithFields(logger, SessionFields("abc123", "Tech")...)
	enriched.Info("test log")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	if ctx[FieldSession] != "abc123" {
		t.Fatalf("expected session field to be abc123, got %q", ctx[FieldSession])
	}

	if ctx[FieldPersona] != "Tech" {
		t.Fatalf("expected persona field to be Tech, got %q", ctx[FieldPersona])
	}

	if got := SessionFields("abc123", ""); len(got) != 1 {
		t.Fatalf("expected persona to be omitted when empty, got %d fields", len(got))
	}

	if enriched := WithSession(nil, "abc123"); enriched == nil {
		t.Fatalf("expected fallback logger when nil provided")
	}
}

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "returns empty when limit non-positive",
			input:  "hello world",
			limit:  0,
			expect: "",
		},
		{
			name:   "shorter than limit",
			input:  "hello",
			limit:  10,
			expect: "hello",
		},
		{
			name:   "truncates and adds ellipsis",
			input:  "hello world",
			limit:  5,
			expect: "hello...",
		},
		{
			name:   "trims surrounding whitespace",
			input:  "  spaced  ",
			limit:  5,
			expect: "space...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
