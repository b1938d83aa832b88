package oauth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// FlowState is the context carried through the authorization server in the
// OAuth state parameter, so the callback needs no server-side session.
type FlowState struct {
	// OriginalState is the random per-flow value.
	OriginalState string `json:"originalState"`

	// ServerID is nil for a server that has not been saved yet.
	ServerID *int64 `json:"serverId,omitempty"`

	ServerURL string `json:"serverUrl"`
}

// EncodeState serializes fs as base64 JSON.
func EncodeState(fs FlowState) (string, error) {
	data, err := json.Marshal(fs)
	if err != nil {
		return "", fmt.Errorf("encoding state: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// DecodeState parses a state produced by EncodeState. Standard and URL-safe
// base64 are both accepted, with or without padding.
func DecodeState(s string) (*FlowState, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty state", ErrInvalidState)
	}

	data, err := decodeBase64(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	var fs FlowState
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if fs.ServerURL == "" {
		return nil, fmt.Errorf("%w: state carries no server URL", ErrInvalidState)
	}
	return &fs, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "+/") {
		return base64.RawStdEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}
