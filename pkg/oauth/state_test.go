package oauth

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestStateRoundTrip(t *testing.T) {
	id := int64(42)
	tests := []FlowState{
		{OriginalState: "abc", ServerID: &id, ServerURL: "https://tools.example/mcp"},
		{OriginalState: "def", ServerURL: "https://tools.example/mcp?tenant=a&b=c"},
	}

	for _, in := range tests {
		encoded, err := EncodeState(in)
		if err != nil {
			t.Fatalf("EncodeState: %v", err)
		}
		out, err := DecodeState(encoded)
		if err != nil {
			t.Fatalf("DecodeState: %v", err)
		}
		if out.OriginalState != in.OriginalState || out.ServerURL != in.ServerURL {
			t.Errorf("round trip = %+v, want %+v", out, in)
		}
		if (in.ServerID == nil) != (out.ServerID == nil) || (in.ServerID != nil && *out.ServerID != *in.ServerID) {
			t.Errorf("ServerID = %v, want %v", out.ServerID, in.ServerID)
		}
	}
}

func TestDecodeState_StandardBase64(t *testing.T) {
	raw := `{"originalState":"s","serverId":3,"serverUrl":"https://tools.example/"}`
	fs, err := DecodeState(base64.StdEncoding.EncodeToString([]byte(raw)))
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}
	if fs.ServerID == nil || *fs.ServerID != 3 {
		t.Errorf("ServerID = %v, want 3", fs.ServerID)
	}
}

func TestDecodeState_Empty(t *testing.T) {
	if _, err := DecodeState(""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}
