package noop

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/mcplab/pkg/auth"
)

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{subject: "", want: DefaultSubject},
		{subject: "dev", want: "dev"},
	}
	for _, tt := range tests {
		a := &Authenticator{Subject: tt.subject}
		res := a.Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
		if res.Vote != auth.Accept || res.Identity.Subject != tt.want {
			t.Errorf("Subject %q: got %+v", tt.subject, res)
		}
	}
}
