package ident

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAccepts(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"lead", "lead"},
		{"dev-1", "dev-1"},
		{"qa_2", "qa_2"},
		{"task.42", "task.42"},
		{"  trimmed  ", "trimmed"},
		{"UPPER", "UPPER"},
		{strings.Repeat("a", MaxLength), strings.Repeat("a", MaxLength)},
	}
	for _, tc := range cases {
		got, err := Validate(tc.in, "agent")
		if err != nil {
			t.Errorf("Validate(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Validate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []string{
		"",
		"   ",
		".",
		"..",
		"../escape",
		"..\\escape",
		"a/b",
		`a\b`,
		"a b",
		"a\tb",
		"a\x00b",
		".hidden",
		"team:name",
		"naïve",
		strings.Repeat("a", MaxLength+1),
	}
	for _, in := range cases {
		if _, err := Validate(in, "team"); err == nil {
			t.Errorf("Validate(%q) = nil error, want rejection", in)
		}
	}
}

func TestValidateErrorCarriesField(t *testing.T) {
	_, err := Validate("../up", "task_id")
	if err == nil {
		t.Fatal("Validate(../up) = nil error, want rejection")
	}
	var ie *Error
	if !errors.As(err, &ie) {
		t.Fatalf("error type = %T, want *ident.Error", err)
	}
	if ie.Field != "task_id" {
		t.Errorf("Field = %q, want %q", ie.Field, "task_id")
	}
	if !strings.Contains(err.Error(), "task_id") {
		t.Errorf("Error() = %q, want mention of field", err.Error())
	}
}
