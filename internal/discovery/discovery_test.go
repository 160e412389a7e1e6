package discovery

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/steward-ai/stewardd/internal/sandbox"
)

func newTestDiscoverer() *Discoverer {
	return NewDiscoverer(hclog.NewNullLogger(), sandbox.NewClientManager())
}

func TestEncodeSchema_ValidSchemaKept(t *testing.T) {
	t.Parallel()

	d := newTestDiscoverer()

	raw, ok := d.encodeSchema("fs", mcp.Tool{
		Name: "readFile",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{"type": "string"},
			},
			Required: []string{"path"},
		},
	})
	require.True(t, ok)
	require.Contains(t, string(raw), `"path"`)
}

func TestEncodeSchema_InvalidSchemaDropsTool(t *testing.T) {
	t.Parallel()

	d := newTestDiscoverer()

	// "type" must be a string or array of strings; a number cannot compile.
	_, ok := d.encodeSchema("fs", mcp.Tool{
		Name: "broken",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{"type": 42},
			},
		},
	})
	require.False(t, ok)
}

func TestEncodeSchema_UnserializableSchemaDropsTool(t *testing.T) {
	t.Parallel()

	d := newTestDiscoverer()

	_, ok := d.encodeSchema("fs", mcp.Tool{
		Name: "broken",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"bad": make(chan int),
			},
		},
	})
	require.False(t, ok)
}
