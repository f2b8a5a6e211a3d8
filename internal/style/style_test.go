package style

import (
	"strings"
	"testing"
	"time"
)

func TestTableAlignsColumns(t *testing.T) {
	tbl := NewTable(
		Column{Name: "NAME", Width: 8, Align: AlignLeft},
		Column{Name: "N", Width: 5, Align: AlignRight},
		Column{Name: "ST", Width: 7, Align: AlignCenter},
	).SetIndent("").SetHeaderSeparator(false)
	tbl.AddRow("abc", "12", "x")
	tbl.AddRow("longvaluehere", "7", "yy")

	lines := strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("rendered %d lines, want 3:\n%s", len(lines), tbl.Render())
	}
	for _, name := range []string{"NAME", "N", "ST"} {
		if !strings.Contains(lines[0], name) {
			t.Errorf("header %q missing column %s", lines[0], name)
		}
	}
	if lines[1] != "abc         12    x   " {
		t.Errorf("row = %q", lines[1])
	}
	if lines[2] != "longv...     7   yy   " {
		t.Errorf("truncated row = %q", lines[2])
	}
}

func TestTablePadsShortRows(t *testing.T) {
	tbl := NewTable(
		Column{Name: "A", Width: 3},
		Column{Name: "B", Width: 3},
	).SetIndent("").SetHeaderSeparator(false)
	tbl.AddRow("x")

	lines := strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n")
	if lines[1] != "x      " {
		t.Errorf("short row = %q", lines[1])
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"elevenchars", 10, "elevenc..."},
		{"abcdef", 3, "..."},
		{"abcdef", 2, ".."},
		{"abcdef", 0, ""},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.width); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}

func TestDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "now"},
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m"},
		{5 * time.Minute, "5m"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 30*time.Minute, "2h30m"},
		{3 * 24 * time.Hour, "3d"},
		{3*24*time.Hour + 4*time.Hour, "3d4h"},
	}
	for _, tc := range cases {
		if got := Duration(tc.d); got != tc.want {
			t.Errorf("Duration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestAgo(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if got := Ago(now, now); got != "just now" {
		t.Errorf("Ago(now) = %q", got)
	}
	if got := Ago(now.Add(-5*time.Minute), now); got != "5m ago" {
		t.Errorf("Ago(-5m) = %q", got)
	}
}
