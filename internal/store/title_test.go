package store

import (
	"strings"
	"testing"
)

func TestDeriveTitle(t *testing.T) {
	short := "Explain this screenshot of a stack trace please"
	if got := deriveTitle(short); got != short {
		t.Fatalf("short title modified: %q", got)
	}

	long := strings.Repeat("ab", 40) // 80 chars
	want := long[:50] + "..."
	if got := deriveTitle(long); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	if got := deriveTitle("   "); got != fallbackTitle {
		t.Fatalf("expected fallback title, got %q", got)
	}

	if got := deriveTitle("  trimmed  "); got != "trimmed" {
		t.Fatalf("expected whitespace trimmed, got %q", got)
	}

	// Exactly 50 characters: no marker.
	exact := strings.Repeat("z", 50)
	if got := deriveTitle(exact); got != exact {
		t.Fatalf("50-char title should be untouched, got %q", got)
	}
}

func TestDerivePreview(t *testing.T) {
	if got := derivePreview(""); got != "" {
		t.Fatalf("expected empty preview, got %q", got)
	}
	long := strings.Repeat("y", 250)
	if got := derivePreview(long); got != long[:100] {
		t.Fatalf("preview not truncated to 100: %d chars", len(got))
	}
	if got := derivePreview("short answer"); got != "short answer" {
		t.Fatalf("short preview modified: %q", got)
	}
}
