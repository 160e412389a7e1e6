package oauth

import (
	"os"
	"regexp"
	"strings"
)

// envRefPattern matches symbolic environment references in OAuth configuration
// values, e.g. "process.env.GITHUB_CLIENT_ID".
var envRefPattern = regexp.MustCompile(`^process\.env\.([A-Za-z_][A-Za-z0-9_]*)$`)

// ResolveEnvRefs recursively resolves symbolic environment-variable references
// in a configuration value. Strings matching "process.env.<NAME>" are replaced
// with the named variable's current value; references to unset variables are
// left absent (map keys removed, slice elements dropped). Resolution recurses
// through nested maps and slices and must be applied before the configuration
// is used in any network call.
func ResolveEnvRefs(v any) any {
	resolved, _ := resolveValue(v)
	return resolved
}

// resolveValue returns the resolved value and whether it is present.
func resolveValue(v any) (any, bool) {
	switch val := v.(type) {
	case string:
		m := envRefPattern.FindStringSubmatch(strings.TrimSpace(val))
		if m == nil {
			return val, true
		}
		env, ok := os.LookupEnv(m[1])
		if !ok {
			return nil, false
		}
		return env, true

	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			if resolved, ok := resolveValue(nested); ok {
				out[k] = resolved
			}
		}
		return out, true

	case []any:
		out := make([]any, 0, len(val))
		for _, nested := range val {
			if resolved, ok := resolveValue(nested); ok {
				out = append(out, resolved)
			}
		}
		return out, true

	default:
		return val, true
	}
}
