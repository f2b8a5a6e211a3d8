// Package ident validates the identifiers that name teams, agents, tasks,
// and inbox files. Every string that can form a filesystem path passes
// through Validate before it is used; a rejected identifier never reaches
// the disk.
package ident

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxLength is the longest accepted identifier.
const MaxLength = 128

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Error describes a rejected identifier. Field names the parameter being
// validated ("team", "agent", "from", ...) so callers can surface it.
type Error struct {
	Field  string
	Value  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Validate trims value and returns it if it is a safe identifier for field.
// Rules: non-empty after trimming; at most MaxLength characters; only
// [A-Za-z0-9_.-]; not "." or ".."; no path separators, NUL, or whitespace;
// no leading dot.
func Validate(value, field string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", &Error{Field: field, Value: value, Reason: "must not be empty"}
	}
	if len(v) > MaxLength {
		return "", &Error{Field: field, Value: v, Reason: fmt.Sprintf("longer than %d characters", MaxLength)}
	}
	if v == "." || v == ".." {
		return "", &Error{Field: field, Value: v, Reason: "must not be a relative path token"}
	}
	if strings.ContainsAny(v, "/\\") {
		return "", &Error{Field: field, Value: v, Reason: "must not contain path separators"}
	}
	if strings.ContainsRune(v, 0) {
		return "", &Error{Field: field, Value: v, Reason: "must not contain NUL"}
	}
	if strings.HasPrefix(v, ".") {
		return "", &Error{Field: field, Value: v, Reason: "must not start with a dot"}
	}
	if !identPattern.MatchString(v) {
		return "", &Error{Field: field, Value: v, Reason: "may only contain letters, digits, '_', '.', and '-'"}
	}
	return v, nil
}
