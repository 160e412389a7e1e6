package domain

import (
	"encoding/json"
)

// knownTokenFields are the TokenSet fields modeled explicitly; everything else
// a provider returns is preserved in Extra.
var knownTokenFields = map[string]struct{}{
	"access_token":  {},
	"refresh_token": {},
	"expires_in":    {},
	"token_type":    {},
	"scope":         {},
}

// TokenSet holds OAuth tokens returned by a provider. Known fields are typed;
// provider-specific passthrough fields survive round-trips via Extra.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`

	// Extra preserves unknown provider fields.
	Extra map[string]any `json:"-"`
}

// OAuthDocument is an opaque provider-shaped JSON object (client registration,
// authorization server metadata, protected resource metadata).
type OAuthDocument map[string]any

// UnmarshalJSON decodes the known fields and collects everything else into Extra.
func (t *TokenSet) UnmarshalJSON(data []byte) error {
	type alias TokenSet
	var known alias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range knownTokenFields {
		delete(raw, k)
	}
	if len(raw) == 0 {
		raw = nil
	}

	*t = TokenSet(known)
	t.Extra = raw

	return nil
}

// MarshalJSON emits the known fields merged with Extra. Known fields win on key clash.
func (t TokenSet) MarshalJSON() ([]byte, error) {
	merged := make(map[string]any, len(t.Extra)+5)
	for k, v := range t.Extra {
		if _, known := knownTokenFields[k]; known {
			continue
		}
		merged[k] = v
	}

	merged["access_token"] = t.AccessToken
	if t.RefreshToken != "" {
		merged["refresh_token"] = t.RefreshToken
	}
	if t.ExpiresIn != 0 {
		merged["expires_in"] = t.ExpiresIn
	}
	if t.TokenType != "" {
		merged["token_type"] = t.TokenType
	}
	if t.Scope != "" {
		merged["scope"] = t.Scope
	}

	return json.Marshal(merged)
}
