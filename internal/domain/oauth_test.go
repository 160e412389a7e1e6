package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenSet_PreservesProviderExtras(t *testing.T) {
	t.Parallel()

	// GitHub-style response with fields outside the standard token shape.
	raw := `{
		"access_token": "at",
		"refresh_token": "rt",
		"expires_in": 3600,
		"token_type": "bearer",
		"scope": "repo",
		"refresh_token_expires_in": 15811200,
		"account_id": "u-42"
	}`

	var ts TokenSet
	require.NoError(t, json.Unmarshal([]byte(raw), &ts))

	require.Equal(t, "at", ts.AccessToken)
	require.Equal(t, "rt", ts.RefreshToken)
	require.Equal(t, int64(3600), ts.ExpiresIn)
	require.Equal(t, "bearer", ts.TokenType)
	require.Equal(t, "repo", ts.Scope)
	require.Equal(t, map[string]any{
		"refresh_token_expires_in": float64(15811200),
		"account_id":               "u-42",
	}, ts.Extra)

	out, err := json.Marshal(ts)
	require.NoError(t, err)
	require.JSONEq(t, raw, string(out))
}

func TestTokenSet_NoExtrasLeavesExtraNil(t *testing.T) {
	t.Parallel()

	var ts TokenSet
	require.NoError(t, json.Unmarshal([]byte(`{"access_token":"at"}`), &ts))
	require.Nil(t, ts.Extra)

	out, err := json.Marshal(ts)
	require.NoError(t, err)
	require.JSONEq(t, `{"access_token":"at"}`, string(out))
}

func TestTokenSet_KnownFieldsWinOverExtraOnMarshal(t *testing.T) {
	t.Parallel()

	ts := TokenSet{
		AccessToken: "real",
		Extra: map[string]any{
			"access_token": "stale",
			"custom":       "kept",
		},
	}

	out, err := json.Marshal(ts)
	require.NoError(t, err)
	require.JSONEq(t, `{"access_token":"real","custom":"kept"}`, string(out))
}

func TestToolID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "fs::readFile", ToolID("fs", "readFile"))
	require.Equal(t, "web::fs::readFile", ToolID("web", "fs::readFile"))
}
