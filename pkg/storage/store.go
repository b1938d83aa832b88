package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rhuss/mcplab/pkg/api"
)

// ServerRecord is a tool server registered by a user.
type ServerRecord struct {
	ID          int64
	Owner       string
	Name        string
	Description string
	URL         string
	Transport   api.TransportKind
	Headers     map[string]string

	// Token is nil when no OAuth token is stored for the server.
	Token *ServerToken

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServerToken is the encrypted OAuth token stored on a server record. The
// access token and token type are always written together.
type ServerToken struct {
	EncryptedAccessToken string
	TokenType            string

	// ExpiresAt is nil when the authorization server did not report an
	// expiry.
	ExpiresAt *time.Time
}

// Expired reports whether the token has a known expiry at or before now.
func (t *ServerToken) Expired(now time.Time) bool {
	return t != nil && t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// OAuthClientRecord holds the client credentials obtained from one
// authorization server. Issuer is unique.
type OAuthClientRecord struct {
	ID           int64
	Issuer       string
	ClientID     string
	ClientSecret *string

	// RegistrationPayload is the raw dynamic registration response.
	RegistrationPayload json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServerStore persists server records.
type ServerStore interface {
	// CreateServer inserts rec, assigning ID and timestamps.
	CreateServer(ctx context.Context, rec *ServerRecord) error

	// GetServer returns the record with id owned by owner.
	GetServer(ctx context.Context, owner string, id int64) (*ServerRecord, error)

	// ListServers returns all records owned by owner, oldest first.
	ListServers(ctx context.Context, owner string) ([]*ServerRecord, error)

	// UpdateServer replaces the identity fields (name, description, url,
	// transport, headers) of an existing record. Token fields are kept
	// unless the url changes, in which case the token is dropped: it was
	// issued for the old server.
	UpdateServer(ctx context.Context, rec *ServerRecord) error

	// DeleteServer removes the record and any token stored on it.
	DeleteServer(ctx context.Context, owner string, id int64) error

	// SaveServerToken atomically replaces the token fields of a record.
	SaveServerToken(ctx context.Context, owner string, id int64, token ServerToken) error
}

// OAuthClientStore persists OAuth client registrations.
type OAuthClientStore interface {
	// GetOAuthClient returns the record for issuer or ErrNotFound.
	GetOAuthClient(ctx context.Context, issuer string) (*OAuthClientRecord, error)

	// CreateOAuthClient inserts rec. It returns ErrConflict when a record
	// for the same issuer already exists.
	CreateOAuthClient(ctx context.Context, rec *OAuthClientRecord) error
}

// Store is the full storage backend.
type Store interface {
	ServerStore
	OAuthClientStore

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
