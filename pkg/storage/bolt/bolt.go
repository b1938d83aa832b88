// Package bolt provides a single-file embedded implementation of
// storage.Store on top of bbolt. It suits single-node deployments that
// need tokens and client registrations to survive restarts without running
// PostgreSQL.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/storage"
)

const (
	dirPerm     = fs.FileMode(0o700)
	filePerm    = fs.FileMode(0o600)
	openTimeout = 5 * time.Second
)

var (
	serversBucket = []byte("mcp_servers")
	clientsBucket = []byte("oauth_clients")
)

// serverDoc is the JSON form of a server record inside the bucket.
type serverDoc struct {
	ID          int64             `json:"id"`
	Owner       string            `json:"owner"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	URL         string            `json:"url"`
	Transport   string            `json:"transport"`
	Headers     map[string]string `json:"headers,omitempty"`
	EncToken    string            `json:"encrypted_access_token,omitempty"`
	TokenType   string            `json:"token_type,omitempty"`
	ExpiresAt   *time.Time        `json:"token_expires_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type clientDoc struct {
	ID           int64           `json:"id"`
	Issuer       string          `json:"issuer"`
	ClientID     string          `json:"client_id"`
	ClientSecret *string         `json:"client_secret,omitempty"`
	Payload      json.RawMessage `json:"registration_payload,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Store is a bbolt-backed storage.Store.
type Store struct {
	db *bolt.DB
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// Open opens the database at path, creating the file, its directory and
// the buckets if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	db, err := bolt.Open(path, filePerm, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(serversBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(clientsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing bolt db: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateServer inserts rec using the bucket sequence as its ID.
func (s *Store) CreateServer(_ context.Context, rec *storage.ServerRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(serversBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		rec.ID = int64(seq)
		rec.CreatedAt = now
		rec.UpdatedAt = now
		return putServer(b, toServerDoc(rec))
	})
}

// GetServer returns the server with id if owner owns it.
func (s *Store) GetServer(_ context.Context, owner string, id int64) (*storage.ServerRecord, error) {
	var rec *storage.ServerRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		doc, err := getServer(tx.Bucket(serversBucket), owner, id)
		if err != nil {
			return err
		}
		rec = doc.record()
		return nil
	})
	return rec, err
}

// ListServers returns owner's servers in ID order. Keys are big-endian so
// the cursor already walks them in that order.
func (s *Store) ListServers(_ context.Context, owner string) ([]*storage.ServerRecord, error) {
	var out []*storage.ServerRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(serversBucket).ForEach(func(_, v []byte) error {
			var doc serverDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decoding server: %w", err)
			}
			if doc.Owner == owner {
				out = append(out, doc.record())
			}
			return nil
		})
	})
	return out, err
}

// UpdateServer replaces the identity fields of an existing record.
func (s *Store) UpdateServer(_ context.Context, rec *storage.ServerRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(serversBucket)
		doc, err := getServer(b, rec.Owner, rec.ID)
		if err != nil {
			return err
		}
		if doc.URL != rec.URL {
			doc.EncToken, doc.TokenType, doc.ExpiresAt = "", "", nil
		}
		doc.Name = rec.Name
		doc.Description = rec.Description
		doc.URL = rec.URL
		doc.Transport = string(rec.Transport)
		doc.Headers = rec.Headers
		doc.UpdatedAt = time.Now().UTC()
		if err := putServer(b, doc); err != nil {
			return err
		}
		*rec = *doc.record()
		return nil
	})
}

// DeleteServer removes the record.
func (s *Store) DeleteServer(_ context.Context, owner string, id int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(serversBucket)
		if _, err := getServer(b, owner, id); err != nil {
			return err
		}
		return b.Delete(itob(id))
	})
}

// SaveServerToken replaces the token fields of a record in one transaction.
func (s *Store) SaveServerToken(_ context.Context, owner string, id int64, token storage.ServerToken) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(serversBucket)
		doc, err := getServer(b, owner, id)
		if err != nil {
			return err
		}
		doc.EncToken = token.EncryptedAccessToken
		doc.TokenType = token.TokenType
		doc.ExpiresAt = token.ExpiresAt
		doc.UpdatedAt = time.Now().UTC()
		return putServer(b, doc)
	})
}

// GetOAuthClient returns the client registered for issuer.
func (s *Store) GetOAuthClient(_ context.Context, issuer string) (*storage.OAuthClientRecord, error) {
	var rec *storage.OAuthClientRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(clientsBucket).Get([]byte(issuer))
		if v == nil {
			return storage.ErrNotFound
		}
		var doc clientDoc
		if err := json.Unmarshal(v, &doc); err != nil {
			return fmt.Errorf("decoding oauth client: %w", err)
		}
		rec = &storage.OAuthClientRecord{
			ID:                  doc.ID,
			Issuer:              doc.Issuer,
			ClientID:            doc.ClientID,
			ClientSecret:        doc.ClientSecret,
			RegistrationPayload: doc.Payload,
			CreatedAt:           doc.CreatedAt,
			UpdatedAt:           doc.UpdatedAt,
		}
		return nil
	})
	return rec, err
}

// CreateOAuthClient inserts rec keyed by issuer. bbolt serializes write
// transactions, so the existence check and the put cannot interleave.
func (s *Store) CreateOAuthClient(_ context.Context, rec *storage.OAuthClientRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(clientsBucket)
		if b.Get([]byte(rec.Issuer)) != nil {
			return storage.ErrConflict
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		rec.ID = int64(seq)
		rec.CreatedAt = now
		rec.UpdatedAt = now

		data, err := json.Marshal(clientDoc{
			ID:           rec.ID,
			Issuer:       rec.Issuer,
			ClientID:     rec.ClientID,
			ClientSecret: rec.ClientSecret,
			Payload:      rec.RegistrationPayload,
			CreatedAt:    rec.CreatedAt,
			UpdatedAt:    rec.UpdatedAt,
		})
		if err != nil {
			return fmt.Errorf("encoding oauth client: %w", err)
		}
		return b.Put([]byte(rec.Issuer), data)
	})
}

// HealthCheck verifies the database file is still readable.
func (s *Store) HealthCheck(_ context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(serversBucket) == nil {
			return errors.New("servers bucket missing")
		}
		return nil
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func getServer(b *bolt.Bucket, owner string, id int64) (*serverDoc, error) {
	v := b.Get(itob(id))
	if v == nil {
		return nil, storage.ErrNotFound
	}
	var doc serverDoc
	if err := json.Unmarshal(v, &doc); err != nil {
		return nil, fmt.Errorf("decoding server: %w", err)
	}
	if doc.Owner != owner {
		return nil, storage.ErrNotFound
	}
	return &doc, nil
}

func putServer(b *bolt.Bucket, doc *serverDoc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding server: %w", err)
	}
	return b.Put(itob(doc.ID), data)
}

func toServerDoc(rec *storage.ServerRecord) *serverDoc {
	doc := &serverDoc{
		ID:          rec.ID,
		Owner:       rec.Owner,
		Name:        rec.Name,
		Description: rec.Description,
		URL:         rec.URL,
		Transport:   string(rec.Transport),
		Headers:     rec.Headers,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if rec.Token != nil {
		doc.EncToken = rec.Token.EncryptedAccessToken
		doc.TokenType = rec.Token.TokenType
		doc.ExpiresAt = rec.Token.ExpiresAt
	}
	return doc
}

func (d *serverDoc) record() *storage.ServerRecord {
	rec := &storage.ServerRecord{
		ID:          d.ID,
		Owner:       d.Owner,
		Name:        d.Name,
		Description: d.Description,
		URL:         d.URL,
		Transport:   api.TransportKind(d.Transport),
		Headers:     d.Headers,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.EncToken != "" && d.TokenType != "" {
		rec.Token = &storage.ServerToken{
			EncryptedAccessToken: d.EncToken,
			TokenType:            d.TokenType,
			ExpiresAt:            d.ExpiresAt,
		}
	}
	return rec
}

// itob encodes an ID as an 8-byte big-endian key.
func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}
