package util

import "testing"

func TestSanitizePostgresText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"clean text", "第一章 起点", "第一章 起点"},
		{"nul bytes removed", "before\x00after", "beforeafter"},
		{"invalid utf8 removed", "ok\xff\xfeok", "okok"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := SanitizePostgresText(test.input); got != test.expected {
				t.Fatalf("expected %q, got %q", test.expected, got)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"exactly max", "hello", 5, "hello"},
		{"truncated", "hello world", 5, "hello…"},
		{"multibyte runes", "第一章第二章", 3, "第一章…"},
		{"zero max", "hello", 0, ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := TruncateRunes(test.input, test.max); got != test.expected {
				t.Fatalf("expected %q, got %q", test.expected, got)
			}
		})
	}
}
