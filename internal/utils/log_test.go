package utils

import "testing"

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
			name:   "counts runes not bytes",
			input:  "puntaje más alto",
			limit:  10,
			expect: "puntaje má...",
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

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	got, cut := TruncateRunes("ñandú", 3)
	if !cut || got != "ñan" {
		t.Fatalf("expected cut to %q, got %q (cut=%v)", "ñan", got, cut)
	}

	got, cut = TruncateRunes("short", 10)
	if cut || got != "short" {
		t.Fatalf("expected untouched string, got %q (cut=%v)", got, cut)
	}

	got, cut = TruncateRunes("unbounded", 0)
	if cut || got != "unbounded" {
		t.Fatalf("expected zero limit to disable truncation, got %q", got)
	}
}
