package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParsePayload(t *testing.T) {
	t.Run("empty means empty object", func(t *testing.T) {
		payload, err := parsePayload("", "")
		if err != nil {
			t.Fatalf("parsePayload: %v", err)
		}
		if len(payload) != 0 {
			t.Errorf("payload = %v, want empty", payload)
		}
	})

	t.Run("inline JSON", func(t *testing.T) {
		payload, err := parsePayload(`{"subject":"Build endpoint"}`, "")
		if err != nil {
			t.Fatalf("parsePayload: %v", err)
		}
		if payload["subject"] != "Build endpoint" {
			t.Errorf("subject = %v", payload["subject"])
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "payload.json")
		if err := os.WriteFile(path, []byte(`{"note":"from file"}`), 0o644); err != nil {
			t.Fatal(err)
		}
		payload, err := parsePayload("", path)
		if err != nil {
			t.Fatalf("parsePayload: %v", err)
		}
		if payload["note"] != "from file" {
			t.Errorf("note = %v", payload["note"])
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := parsePayload("", filepath.Join(t.TempDir(), "absent.json")); err == nil {
			t.Error("expected error for missing payload file")
		}
	})

	t.Run("non-object", func(t *testing.T) {
		if _, err := parsePayload(`[1,2,3]`, ""); err == nil {
			t.Error("expected error for non-object payload")
		}
	})
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"one line", "one line"},
		{"first\nsecond", "first"},
		{"", ""},
		{"\nleading", ""},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in); got != tt.want {
			t.Errorf("firstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLocalStampFallback(t *testing.T) {
	if got := localStamp("not-a-time"); got != "not-a-time" {
		t.Errorf("localStamp passthrough = %q", got)
	}
	if got := agoStamp("not-a-time"); got != "not-a-time" {
		t.Errorf("agoStamp passthrough = %q", got)
	}
}
