// Package store implements the registry: durable server and tool records in
// SQLite. Server ID uniqueness is enforced by the primary key, which is the
// real guard against concurrent duplicate installs; orchestrator pre-checks
// are only an optimization.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/steward-ai/stewardd/internal/domain"
	"github.com/steward-ai/stewardd/internal/errors"
)

// Store is the SQLite-backed registry. All public methods are safe for
// concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// Open creates a registry store at the given database path. The schema is
// created automatically on first use. Use ":memory:" for an ephemeral store.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure registry database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate registry schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS servers (
		id                      TEXT PRIMARY KEY,
		display_name            TEXT NOT NULL,
		config                  TEXT NOT NULL,
		user_config             TEXT,
		oauth_tokens            TEXT,
		oauth_client_info       TEXT,
		oauth_server_metadata   TEXT,
		oauth_resource_metadata TEXT,
		status                  TEXT NOT NULL,
		server_type             TEXT NOT NULL,
		created_at              TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS tools (
		id           TEXT PRIMARY KEY,
		server_id    TEXT NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
		name         TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		input_schema TEXT,
		is_read      INTEGER,
		is_write     INTEGER,
		analyzed_at  TEXT,
		updated_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tools_server ON tools(server_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateServer persists a new record, returning errors.ErrServerConflict when
// the ID already exists. The primary key is the enforcement point, so two
// concurrent installs with the same ID cannot both succeed.
func (s *Store) CreateServer(ctx context.Context, rec domain.ServerRecord) error {
	cfg, userCfg, oauthCols, err := encodeServer(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO servers
			(id, display_name, config, user_config, oauth_tokens, oauth_client_info,
			 oauth_server_metadata, oauth_resource_metadata, status, server_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DisplayName, cfg, userCfg,
		oauthCols[0], oauthCols[1], oauthCols[2], oauthCols[3],
		string(rec.Status), string(rec.ServerType),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", errors.ErrServerConflict, rec.ID)
		}
		return fmt.Errorf("insert server %q: %w", rec.ID, err)
	}

	return nil
}

// GetServer returns the record for the given ID, or errors.ErrServerNotFound.
func (s *Store) GetServer(ctx context.Context, id string) (domain.ServerRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, config, user_config, oauth_tokens, oauth_client_info,
		        oauth_server_metadata, oauth_resource_metadata, status, server_type, created_at
		 FROM servers WHERE id = ?`, id)

	rec, err := scanServer(row)
	if err == sql.ErrNoRows {
		return domain.ServerRecord{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	if err != nil {
		return domain.ServerRecord{}, fmt.Errorf("get server %q: %w", id, err)
	}

	return rec, nil
}

// ListServers returns all persisted records ordered by creation time.
func (s *Store) ListServers(ctx context.Context) ([]domain.ServerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_name, config, user_config, oauth_tokens, oauth_client_info,
		        oauth_server_metadata, oauth_resource_metadata, status, server_type, created_at
		 FROM servers ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	var recs []domain.ServerRecord
	for rows.Next() {
		rec, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// UpdateServer replaces an existing record, or returns errors.ErrServerNotFound.
func (s *Store) UpdateServer(ctx context.Context, rec domain.ServerRecord) error {
	cfg, userCfg, oauthCols, err := encodeServer(rec)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE servers SET
			display_name = ?, config = ?, user_config = ?, oauth_tokens = ?,
			oauth_client_info = ?, oauth_server_metadata = ?, oauth_resource_metadata = ?,
			status = ?, server_type = ?
		 WHERE id = ?`,
		rec.DisplayName, cfg, userCfg,
		oauthCols[0], oauthCols[1], oauthCols[2], oauthCols[3],
		string(rec.Status), string(rec.ServerType), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update server %q: %w", rec.ID, err)
	}

	return requireRow(res, rec.ID)
}

// UpdateServerStatus transitions the lifecycle status of an existing record.
func (s *Store) UpdateServerStatus(ctx context.Context, id string, status domain.ServerStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE servers SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update server status %q: %w", id, err)
	}

	return requireRow(res, id)
}

// DeleteServer removes the record and, via the foreign key, all of its tools.
func (s *Store) DeleteServer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete server %q: %w", id, err)
	}

	return requireRow(res, id)
}

// UpsertTool inserts or updates a tool record. Descriptor fields always take
// the freshest discovery data; is_read, is_write and analyzed_at merge with
// COALESCE so classification never regresses from non-null back to null.
func (s *Store) UpsertTool(ctx context.Context, rec domain.ToolRecord) error {
	var analyzedAt any
	if rec.AnalyzedAt != nil {
		analyzedAt = rec.AnalyzedAt.UTC().Format(time.RFC3339Nano)
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tools (id, server_id, name, description, input_schema, is_read, is_write, analyzed_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name         = excluded.name,
			description  = excluded.description,
			input_schema = excluded.input_schema,
			is_read      = COALESCE(excluded.is_read, tools.is_read),
			is_write     = COALESCE(excluded.is_write, tools.is_write),
			analyzed_at  = COALESCE(excluded.analyzed_at, tools.analyzed_at),
			updated_at   = excluded.updated_at`,
		rec.ID, rec.ServerID, rec.Name, rec.Description, nullableString(rec.InputSchema),
		nullableBool(rec.IsRead), nullableBool(rec.IsWrite), analyzedAt,
		updatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert tool %q: %w", rec.ID, err)
	}

	return nil
}

// ToolsByServer returns all tool records for a server ordered by name.
func (s *Store) ToolsByServer(ctx context.Context, serverID string) ([]domain.ToolRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, server_id, name, description, input_schema, is_read, is_write, analyzed_at, updated_at
		 FROM tools WHERE server_id = ? ORDER BY name`, serverID)
	if err != nil {
		return nil, fmt.Errorf("list tools for %q: %w", serverID, err)
	}
	defer rows.Close()

	var recs []domain.ToolRecord
	for rows.Next() {
		var (
			rec        domain.ToolRecord
			schema     sql.NullString
			isRead     sql.NullBool
			isWrite    sql.NullBool
			analyzedAt sql.NullString
			updatedAt  string
		)
		if err := rows.Scan(&rec.ID, &rec.ServerID, &rec.Name, &rec.Description,
			&schema, &isRead, &isWrite, &analyzedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan tool: %w", err)
		}

		if schema.Valid {
			rec.InputSchema = json.RawMessage(schema.String)
		}
		if isRead.Valid {
			v := isRead.Bool
			rec.IsRead = &v
		}
		if isWrite.Valid {
			v := isWrite.Bool
			rec.IsWrite = &v
		}
		if analyzedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, analyzedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse analyzed_at for %q: %w", rec.ID, err)
			}
			rec.AnalyzedAt = &t
		}
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			rec.UpdatedAt = t
		}

		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (domain.ServerRecord, error) {
	var (
		rec       domain.ServerRecord
		cfg       string
		userCfg   sql.NullString
		oauth     [4]sql.NullString
		status    string
		srvType   string
		createdAt string
	)
	if err := row.Scan(&rec.ID, &rec.DisplayName, &cfg, &userCfg,
		&oauth[0], &oauth[1], &oauth[2], &oauth[3],
		&status, &srvType, &createdAt); err != nil {
		return domain.ServerRecord{}, err
	}

	if err := json.Unmarshal([]byte(cfg), &rec.Config); err != nil {
		return domain.ServerRecord{}, fmt.Errorf("decode config: %w", err)
	}
	if userCfg.Valid {
		if err := json.Unmarshal([]byte(userCfg.String), &rec.UserConfigValues); err != nil {
			return domain.ServerRecord{}, fmt.Errorf("decode user config: %w", err)
		}
	}
	if oauth[0].Valid {
		rec.OAuthTokens = &domain.TokenSet{}
		if err := json.Unmarshal([]byte(oauth[0].String), rec.OAuthTokens); err != nil {
			return domain.ServerRecord{}, fmt.Errorf("decode oauth tokens: %w", err)
		}
	}
	for i, dst := range []**domain.OAuthDocument{&rec.OAuthClientInfo, &rec.OAuthServerMetadata, &rec.OAuthResourceMetadata} {
		col := oauth[i+1]
		if !col.Valid {
			continue
		}
		doc := domain.OAuthDocument{}
		if err := json.Unmarshal([]byte(col.String), &doc); err != nil {
			return domain.ServerRecord{}, fmt.Errorf("decode oauth document: %w", err)
		}
		*dst = &doc
	}

	rec.Status = domain.ServerStatus(status)
	rec.ServerType = domain.ServerType(srvType)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}

	return rec, nil
}

func encodeServer(rec domain.ServerRecord) (cfg string, userCfg any, oauthCols [4]any, err error) {
	cfgBytes, err := json.Marshal(rec.Config)
	if err != nil {
		return "", nil, oauthCols, fmt.Errorf("encode config: %w", err)
	}
	cfg = string(cfgBytes)

	if rec.UserConfigValues != nil {
		b, err := json.Marshal(rec.UserConfigValues)
		if err != nil {
			return "", nil, oauthCols, fmt.Errorf("encode user config: %w", err)
		}
		userCfg = string(b)
	}

	for i, v := range []any{rec.OAuthTokens, rec.OAuthClientInfo, rec.OAuthServerMetadata, rec.OAuthResourceMetadata} {
		if v == nil || isNilPtr(v) {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", nil, oauthCols, fmt.Errorf("encode oauth column: %w", err)
		}
		oauthCols[i] = string(b)
	}

	return cfg, userCfg, oauthCols, nil
}

func isNilPtr(v any) bool {
	switch t := v.(type) {
	case *domain.TokenSet:
		return t == nil
	case *domain.OAuthDocument:
		return t == nil
	default:
		return false
	}
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
