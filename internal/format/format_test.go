package format

import (
	"testing"
	"time"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, time.March, 14, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		t    time.Time
		want string
	}{
		{"seconds ago", now.Add(-30 * time.Second), "Just now"},
		{"just under a minute", now.Add(-59 * time.Second), "Just now"},
		{"one minute", now.Add(-time.Minute), "1 min ago"},
		{"several minutes", now.Add(-42 * time.Minute), "42 mins ago"},
		{"same day", now.Add(-3 * time.Hour), "12:00"},
		{"older", now.Add(-48 * time.Hour), "Mar 12"},
	}
	for _, tc := range cases {
		if got := RelativeTime(tc.t, now); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestRelativeTimeIdempotentForFixedNow(t *testing.T) {
	now := time.Date(2025, time.March, 14, 15, 0, 0, 0, time.UTC)
	ts := now.Add(-7 * time.Minute)
	first := RelativeTime(ts, now)
	second := RelativeTime(ts, now)
	if first != second {
		t.Fatalf("formatter not idempotent: %q then %q", first, second)
	}
}

func TestSanitize(t *testing.T) {
	in := `<script>alert("hi")</script>`
	got := Sanitize(in)
	if got == in {
		t.Fatalf("markup not escaped: %q", got)
	}
	if want := "&lt;script&gt;alert(&#34;hi&#34;)&lt;/script&gt;"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("short", 50); got != "short" {
		t.Fatalf("short text must be untouched, got %q", got)
	}

	long := ""
	for i := 0; i < 60; i++ {
		long += "x"
	}
	got := Preview(long, 50)
	if len([]rune(got)) != 53 {
		t.Fatalf("expected 50 runes + ellipsis, got %d runes (%q)", len([]rune(got)), got)
	}
	if got[len(got)-3:] != "..." {
		t.Fatalf("missing ellipsis: %q", got)
	}
}

func TestPreviewCountsRunes(t *testing.T) {
	// Усечение не должно резать многобайтовые руны.
	s := "привет мир привет мир"
	got := Preview(s, 10)
	if got != "привет мир..." {
		t.Fatalf("got %q", got)
	}
}
