package ui

import (
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"fits", "cat", 10, "cat"},
		{"trimmed", "  cat  ", 10, "cat"},
		{"ellipsis", "a very long prompt", 10, "a very ..."},
		{"tiny_limit", "abcdef", 2, "ab"},
		{"no_limit", "abcdef", 0, "abcdef"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := truncate(tc.in, tc.limit); got != tc.want {
				t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
			}
		})
	}
}

func TestTruncateMiddle(t *testing.T) {
	if got := truncateMiddle("  ", 10); got != "" {
		t.Fatalf("truncateMiddle blank = %q, want empty", got)
	}
	if got := truncateMiddle("abcd", 2); got != "ab" {
		t.Fatalf("truncateMiddle limit<=3 = %q, want ab", got)
	}
	got := truncateMiddle("http://gpu-box.local:7860", 12)
	if len([]rune(got)) != 12 {
		t.Fatalf("truncateMiddle length = %d, want 12 (%q)", len([]rune(got)), got)
	}
	if got[:5] != "http:" || got[len(got)-4:] != "7860" {
		t.Fatalf("truncateMiddle should keep both ends, got %q", got)
	}
}

func TestSingleLine(t *testing.T) {
	if got := singleLine("a cat\n  on a\tmat "); got != "a cat on a mat" {
		t.Fatalf("singleLine = %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KiB",
		1536:    "1.5 KiB",
		3 << 20: "3.0 MiB",
	}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatETA(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, ""},
		{-3, ""},
		{4.4, "4s"},
		{65, "1m05s"},
	}
	for _, tc := range cases {
		if got := formatETA(tc.in); got != tc.want {
			t.Fatalf("formatETA(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if got := formatAge(time.Time{}, now); got != "" {
		t.Fatalf("zero time = %q, want empty", got)
	}
	if got := formatAge(now.Add(-10*time.Second), now); got != "just now" {
		t.Fatalf("seconds = %q", got)
	}
	if got := formatAge(now.Add(-5*time.Minute), now); got != "5m ago" {
		t.Fatalf("minutes = %q", got)
	}
	if got := formatAge(now.Add(-3*time.Hour), now); got != "3h ago" {
		t.Fatalf("hours = %q", got)
	}
}
