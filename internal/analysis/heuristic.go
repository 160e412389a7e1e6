package analysis

import (
	"strings"
)

// readKeywords and writeKeywords drive the deterministic fallback classifier.
// Membership is tested against the lowercased concatenation of a tool's name
// and description. The sets are fixed; changing them changes classification of
// previously analyzed tools only on their next re-analysis.
var readKeywords = []string{
	"get", "list", "read", "search", "fetch", "find", "query", "retrieve",
	"show", "view", "describe", "check", "verify", "examine", "inspect",
	"status", "info", "detail", "lookup",
}

var writeKeywords = []string{
	"create", "update", "delete", "add", "remove", "set", "write", "modify",
	"edit", "change", "insert", "append", "replace", "clear", "reset",
	"submit", "post", "put", "patch", "destroy", "drop", "truncate",
	"execute", "run", "apply", "commit", "save", "store",
}

// Classification is a tool's read/write side-effect judgment.
type Classification struct {
	IsRead  bool `json:"is_read"`
	IsWrite bool `json:"is_write"`
}

// HeuristicClassify classifies a tool by keyword membership. A tool may be
// read, write, both, or neither.
func HeuristicClassify(name, description string) Classification {
	haystack := strings.ToLower(name + " " + description)

	var c Classification
	for _, kw := range readKeywords {
		if strings.Contains(haystack, kw) {
			c.IsRead = true
			break
		}
	}
	for _, kw := range writeKeywords {
		if strings.Contains(haystack, kw) {
			c.IsWrite = true
			break
		}
	}

	return c
}
