package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/storage"
)

func makeServer(owner string) *storage.ServerRecord {
	return &storage.ServerRecord{
		Owner:     owner,
		Name:      "tools",
		URL:       "https://tools.example/mcp",
		Transport: api.TransportHTTP,
		Headers:   map[string]string{"X-Team": "core"},
	}
}

func TestCreateAndGetServer(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := makeServer("alice")
	if err := s.CreateServer(ctx, rec); err != nil {
		t.Fatalf("CreateServer failed: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := s.GetServer(ctx, "alice", rec.ID)
	if err != nil {
		t.Fatalf("GetServer failed: %v", err)
	}
	if got.URL != rec.URL {
		t.Errorf("URL = %q, want %q", got.URL, rec.URL)
	}
	if got.Headers["X-Team"] != "core" {
		t.Errorf("Headers = %v", got.Headers)
	}
	if got.Token != nil {
		t.Error("new server should have no token")
	}
}

func TestGetServerOtherOwner(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := makeServer("alice")
	_ = s.CreateServer(ctx, rec)

	if _, err := s.GetServer(ctx, "bob", rec.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other owner, got %v", err)
	}
	if err := s.SaveServerToken(ctx, "bob", rec.ID, storage.ServerToken{EncryptedAccessToken: "x", TokenType: "bearer"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound saving token as other owner, got %v", err)
	}
	if err := s.DeleteServer(ctx, "bob", rec.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting as other owner, got %v", err)
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := makeServer("alice")
	_ = s.CreateServer(ctx, rec)
	rec.Headers["X-Team"] = "mutated"

	got, _ := s.GetServer(ctx, "alice", rec.ID)
	if got.Headers["X-Team"] != "core" {
		t.Errorf("store shares header map with caller: %v", got.Headers)
	}
}

func TestListServers(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, owner := range []string{"alice", "bob", "alice"} {
		_ = s.CreateServer(ctx, makeServer(owner))
	}

	list, err := s.ListServers(ctx, "alice")
	if err != nil {
		t.Fatalf("ListServers failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID >= list[1].ID {
		t.Error("expected ascending IDs")
	}
}

func TestUpdateServerKeepsToken(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := makeServer("alice")
	_ = s.CreateServer(ctx, rec)
	_ = s.SaveServerToken(ctx, "alice", rec.ID, storage.ServerToken{EncryptedAccessToken: "enc", TokenType: "bearer"})

	update := &storage.ServerRecord{
		ID:        rec.ID,
		Owner:     "alice",
		Name:      "renamed",
		URL:       rec.URL,
		Transport: api.TransportSSE,
	}
	if err := s.UpdateServer(ctx, update); err != nil {
		t.Fatalf("UpdateServer failed: %v", err)
	}

	got, _ := s.GetServer(ctx, "alice", rec.ID)
	if got.Name != "renamed" || got.Transport != api.TransportSSE {
		t.Errorf("update not applied: %+v", got)
	}
	if got.Token == nil || got.Token.EncryptedAccessToken != "enc" {
		t.Errorf("token lost on update: %+v", got.Token)
	}

	update.URL = "https://tools.example/v2/mcp"
	if err := s.UpdateServer(ctx, update); err != nil {
		t.Fatalf("UpdateServer failed: %v", err)
	}
	got, _ = s.GetServer(ctx, "alice", rec.ID)
	if got.Token != nil {
		t.Errorf("token kept after url change: %+v", got.Token)
	}
}

func TestSaveServerTokenAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := makeServer("alice")
	_ = s.CreateServer(ctx, rec)

	exp := time.Now().Add(time.Hour).UTC()
	tok := storage.ServerToken{EncryptedAccessToken: "enc", TokenType: "bearer", ExpiresAt: &exp}
	if err := s.SaveServerToken(ctx, "alice", rec.ID, tok); err != nil {
		t.Fatalf("SaveServerToken failed: %v", err)
	}

	got, _ := s.GetServer(ctx, "alice", rec.ID)
	if got.Token == nil || got.Token.TokenType != "bearer" || !got.Token.ExpiresAt.Equal(exp) {
		t.Errorf("token = %+v", got.Token)
	}

	if err := s.DeleteServer(ctx, "alice", rec.ID); err != nil {
		t.Fatalf("DeleteServer failed: %v", err)
	}
	if _, err := s.GetServer(ctx, "alice", rec.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestOAuthClientUniqueIssuer(t *testing.T) {
	s := New()
	ctx := context.Background()

	secret := "s3cret"
	first := &storage.OAuthClientRecord{Issuer: "https://as.example", ClientID: "cid1", ClientSecret: &secret}
	if err := s.CreateOAuthClient(ctx, first); err != nil {
		t.Fatalf("CreateOAuthClient failed: %v", err)
	}

	second := &storage.OAuthClientRecord{Issuer: "https://as.example", ClientID: "cid2"}
	if err := s.CreateOAuthClient(ctx, second); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := s.GetOAuthClient(ctx, "https://as.example")
	if err != nil {
		t.Fatalf("GetOAuthClient failed: %v", err)
	}
	if got.ClientID != "cid1" || got.ClientSecret == nil || *got.ClientSecret != "s3cret" {
		t.Errorf("got %+v", got)
	}

	if _, err := s.GetOAuthClient(ctx, "https://other.example"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentOAuthClientCreate(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.CreateOAuthClient(ctx, &storage.OAuthClientRecord{Issuer: "https://as.example", ClientID: "cid"})
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, storage.ErrConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Errorf("created = %d, want exactly 1", created)
	}
}
