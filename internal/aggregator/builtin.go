package aggregator

import "encoding/json"

// BuiltinEntries returns the tool set contributed by the built-in server:
// daemon-local capabilities the chat client can call without any installed
// MCP server. Registered under BuiltinServerID at daemon startup.
func BuiltinEntries() []Entry {
	return []Entry{
		{
			ServerID:    BuiltinServerID,
			Name:        "listInstalledServers",
			Description: "Lists the installed MCP servers and their lifecycle status.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		},
		{
			ServerID:    BuiltinServerID,
			Name:        "getCurrentTime",
			Description: "Returns the current local date and time.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		},
	}
}
