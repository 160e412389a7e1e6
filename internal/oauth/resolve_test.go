package oauth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveEnvRefs(t *testing.T) {
	t.Setenv("STEWARDD_TEST_CLIENT_ID", "client-123")

	tests := []struct {
		name  string
		input any
		want  any
	}{
		{
			name:  "plain string untouched",
			input: "hello",
			want:  "hello",
		},
		{
			name:  "reference resolved",
			input: "process.env.STEWARDD_TEST_CLIENT_ID",
			want:  "client-123",
		},
		{
			name:  "reference with surrounding whitespace",
			input: "  process.env.STEWARDD_TEST_CLIENT_ID  ",
			want:  "client-123",
		},
		{
			name:  "non-reference prefix untouched",
			input: "see process.env.STEWARDD_TEST_CLIENT_ID docs",
			want:  "see process.env.STEWARDD_TEST_CLIENT_ID docs",
		},
		{
			name: "nested map resolved",
			input: map[string]any{
				"client_id": "process.env.STEWARDD_TEST_CLIENT_ID",
				"nested": map[string]any{
					"id": "process.env.STEWARDD_TEST_CLIENT_ID",
				},
			},
			want: map[string]any{
				"client_id": "client-123",
				"nested": map[string]any{
					"id": "client-123",
				},
			},
		},
		{
			name: "unset reference removed from map",
			input: map[string]any{
				"present": "value",
				"absent":  "process.env.STEWARDD_TEST_UNSET_VAR",
			},
			want: map[string]any{
				"present": "value",
			},
		},
		{
			name:  "unset reference dropped from slice",
			input: []any{"a", "process.env.STEWARDD_TEST_UNSET_VAR", "b"},
			want:  []any{"a", "b"},
		},
		{
			name:  "non-string values pass through",
			input: map[string]any{"count": 3, "enabled": true},
			want:  map[string]any{"count": 3, "enabled": true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ResolveEnvRefs(tc.input))
		})
	}
}
