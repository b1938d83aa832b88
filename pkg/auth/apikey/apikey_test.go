package apikey

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/mcplab/pkg/auth"
)

func TestAuthenticate(t *testing.T) {
	a := New([]Key{
		{Key: "sk-alice", Subject: "alice", Name: "Alice"},
		{Key: "sk-bob", Subject: "bob"},
	}, "mcplab_session")

	tests := []struct {
		name        string
		header      string
		cookie      string
		wantVote    auth.Vote
		wantSubject string
	}{
		{name: "first key", header: "Bearer sk-alice", wantVote: auth.Accept, wantSubject: "alice"},
		{name: "second key", header: "Bearer sk-bob", wantVote: auth.Accept, wantSubject: "bob"},
		{name: "key in cookie", cookie: "sk-bob", wantVote: auth.Accept, wantSubject: "bob"},
		{name: "unknown key", header: "Bearer sk-mallory", wantVote: auth.Reject},
		{name: "empty token", header: "Bearer ", wantVote: auth.Reject},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantVote: auth.Abstain},
		{name: "no credentials", wantVote: auth.Abstain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: "mcplab_session", Value: tt.cookie})
			}

			res := a.Authenticate(context.Background(), r)
			if res.Vote != tt.wantVote {
				t.Fatalf("Vote = %d, want %d", res.Vote, tt.wantVote)
			}
			if tt.wantSubject != "" && res.Identity.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", res.Identity.Subject, tt.wantSubject)
			}
		})
	}
}

func TestAuthenticate_Name(t *testing.T) {
	a := New([]Key{{Key: "sk-alice", Subject: "alice", Name: "Alice"}}, "")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer sk-alice")

	res := a.Authenticate(context.Background(), r)
	if res.Identity == nil || res.Identity.Name != "Alice" {
		t.Errorf("Identity = %+v", res.Identity)
	}
}
