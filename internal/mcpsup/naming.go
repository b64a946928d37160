package mcpsup

import (
	"regexp"
	"strings"
)

const prefix = "mcp__"

var nonNameChar = regexp.MustCompile(`[^a-z0-9-]`)

// NamespacedName builds the globally-unique registry name for an MCP tool.
func NamespacedName(server, tool string) string {
	return prefix + sanitize(server) + "__" + tool
}

// ParseNamespacedName splits a namespaced name back into server and tool.
func ParseNamespacedName(name string) (server, tool string, ok bool) {
	if !strings.HasPrefix(name, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(name, prefix)
	idx := strings.Index(rest, "__")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+2:], true
}

// IsMCPTool reports whether name was produced by NamespacedName.
func IsMCPTool(name string) bool {
	return strings.HasPrefix(name, prefix)
}

func sanitize(name string) string {
	return nonNameChar.ReplaceAllString(strings.ToLower(name), "-")
}
