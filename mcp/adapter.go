package mcp

import (
	"strings"
)

// NameAdapter maps between original MCP tool names, which may contain
// dots, and safe names that satisfy the providers' tool-name pattern.
type NameAdapter struct {
	safeToOriginal map[string]string
	originalToSafe map[string]string
}

// NewNameAdapter creates an empty adapter.
func NewNameAdapter() *NameAdapter {
	return &NameAdapter{
		safeToOriginal: make(map[string]string),
		originalToSafe: make(map[string]string),
	}
}

// ToSafeName replaces dots with underscores, e.g. "gmail.messages.list"
// becomes "gmail_messages_list".
func ToSafeName(original string) string {
	return strings.ReplaceAll(original, ".", "_")
}

// GetSafeName returns the safe name for an original name, creating and
// remembering the mapping if needed.
func (a *NameAdapter) GetSafeName(original string) string {
	if safe, ok := a.originalToSafe[original]; ok {
		return safe
	}
	safe := ToSafeName(original)
	a.originalToSafe[original] = safe
	a.safeToOriginal[safe] = original
	return safe
}

// ToOriginalName resolves a safe name back to the server-side name.
func (a *NameAdapter) ToOriginalName(safe string) (string, bool) {
	original, ok := a.safeToOriginal[safe]
	return original, ok
}
