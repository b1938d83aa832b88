// Package postgres provides a PostgreSQL implementation of storage.Store.
// It uses pgx/v5 for connection pooling and JSONB for header maps and raw
// registration payloads.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/storage"
)

// Store is a PostgreSQL-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if _, err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const serverColumns = `id, owner, name, description, url, transport, headers,
	encrypted_access_token, token_type, token_expires_at, created_at, updated_at`

// CreateServer inserts a server record and assigns its ID and timestamps.
func (s *Store) CreateServer(ctx context.Context, rec *storage.ServerRecord) error {
	headers, err := marshalHeaders(rec.Headers)
	if err != nil {
		return err
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO mcp_servers (owner, name, description, url, transport, headers)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		rec.Owner, rec.Name, rec.Description, rec.URL, string(rec.Transport), headers,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting server: %w", err)
	}
	return nil
}

// GetServer returns the server with id if owner owns it.
func (s *Store) GetServer(ctx context.Context, owner string, id int64) (*storage.ServerRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+serverColumns+` FROM mcp_servers WHERE id = $1 AND owner = $2`,
		id, owner,
	)
	rec, err := scanServer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying server: %w", err)
	}
	return rec, nil
}

// ListServers returns owner's servers ordered by id.
func (s *Store) ListServers(ctx context.Context, owner string) ([]*storage.ServerRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+serverColumns+` FROM mcp_servers WHERE owner = $1 ORDER BY id`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("listing servers: %w", err)
	}
	defer rows.Close()

	var out []*storage.ServerRecord
	for rows.Next() {
		rec, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning server: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateServer replaces the identity fields of an existing record.
func (s *Store) UpdateServer(ctx context.Context, rec *storage.ServerRecord) error {
	headers, err := marshalHeaders(rec.Headers)
	if err != nil {
		return err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE mcp_servers
		SET name = $3, description = $4, url = $5, transport = $6, headers = $7, updated_at = now(),
			encrypted_access_token = CASE WHEN url = $5 THEN encrypted_access_token END,
			token_type = CASE WHEN url = $5 THEN token_type END,
			token_expires_at = CASE WHEN url = $5 THEN token_expires_at END
		WHERE id = $1 AND owner = $2
		RETURNING `+serverColumns,
		rec.ID, rec.Owner, rec.Name, rec.Description, rec.URL, string(rec.Transport), headers,
	)
	updated, err := scanServer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating server: %w", err)
	}
	*rec = *updated
	return nil
}

// DeleteServer removes the record and its token columns with it.
func (s *Store) DeleteServer(ctx context.Context, owner string, id int64) error {
	result, err := s.pool.Exec(ctx,
		`DELETE FROM mcp_servers WHERE id = $1 AND owner = $2`,
		id, owner,
	)
	if err != nil {
		return fmt.Errorf("deleting server: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SaveServerToken writes all token columns in a single statement.
func (s *Store) SaveServerToken(ctx context.Context, owner string, id int64, token storage.ServerToken) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE mcp_servers
		SET encrypted_access_token = $3, token_type = $4, token_expires_at = $5, updated_at = now()
		WHERE id = $1 AND owner = $2`,
		id, owner, token.EncryptedAccessToken, token.TokenType, token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("saving server token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetOAuthClient returns the client registered for issuer.
func (s *Store) GetOAuthClient(ctx context.Context, issuer string) (*storage.OAuthClientRecord, error) {
	var (
		rec     storage.OAuthClientRecord
		payload []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, issuer, client_id, client_secret, registration_payload, created_at, updated_at
		FROM oauth_clients WHERE issuer = $1`,
		issuer,
	).Scan(&rec.ID, &rec.Issuer, &rec.ClientID, &rec.ClientSecret, &payload, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying oauth client: %w", err)
	}
	rec.RegistrationPayload = payload
	return &rec, nil
}

// CreateOAuthClient inserts a client record. The unique issuer constraint
// turns a concurrent duplicate into storage.ErrConflict.
func (s *Store) CreateOAuthClient(ctx context.Context, rec *storage.OAuthClientRecord) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO oauth_clients (issuer, client_id, client_secret, registration_payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		rec.Issuer, rec.ClientID, rec.ClientSecret, nullJSON(rec.RegistrationPayload),
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if isDuplicateKey(err) {
		return storage.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("inserting oauth client: %w", err)
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanServer(row pgx.Row) (*storage.ServerRecord, error) {
	var (
		rec       storage.ServerRecord
		transport string
		headers   []byte
		encToken  *string
		tokenType *string
		expiresAt *time.Time
	)
	err := row.Scan(&rec.ID, &rec.Owner, &rec.Name, &rec.Description, &rec.URL, &transport, &headers,
		&encToken, &tokenType, &expiresAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Transport = api.TransportKind(transport)
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &rec.Headers); err != nil {
			return nil, fmt.Errorf("decoding headers: %w", err)
		}
	}
	if encToken != nil && tokenType != nil {
		rec.Token = &storage.ServerToken{
			EncryptedAccessToken: *encToken,
			TokenType:            *tokenType,
			ExpiresAt:            expiresAt,
		}
	}
	return &rec, nil
}

func marshalHeaders(h map[string]string) ([]byte, error) {
	if h == nil {
		h = map[string]string{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("marshaling headers: %w", err)
	}
	return b, nil
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
