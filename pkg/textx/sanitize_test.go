// Package textx contains tests for the text utilities.
package textx

import "testing"

func TestSanitizeText(t *testing.T) {
	in := "he\x00llo\nwo\x7frld\t!"
	got := SanitizeText(in)
	if got != "hello\nworld\t!" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got := CollapseWhitespace("  foo \t bar\n\nbaz ")
	if got != "foo bar baz" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 60); got != "short" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Fatalf("unexpected: %q", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestPreview(t *testing.T) {
	got := Preview("  a\x00 long\n\n  resume   body ", 10)
	if got != "a long res..." {
		t.Fatalf("unexpected: %q", got)
	}
}
