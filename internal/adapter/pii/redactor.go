package pii

import (
	"log/slog"
	"strings"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor replaces the values of sensitive log attributes.
type Redactor struct {
	fieldsToRedact map[string]struct{} // Use a map for O(1) lookups
}

// NewRedactor creates a Redactor for the given attribute keys. Matching is
// case-insensitive.
func NewRedactor(fields []string) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		fieldSet[strings.ToLower(field)] = struct{}{}
	}
	return &Redactor{fieldsToRedact: fieldSet}
}

// Sensitive reports whether values under key must not be logged.
func (r *Redactor) Sensitive(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r.fieldsToRedact[strings.ToLower(key)]
	return ok
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (r *Redactor) ReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if r.Sensitive(a.Key) {
		return slog.String(a.Key, RedactedPlaceholder)
	}
	return a
}
