package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/concierge/orchestrator/pkg/models"
)

// PgStore is an alternate Store backend for deployments that want
// chat/draft/note persistence in PostgreSQL instead of the filesystem
// (pool bootstrap, migrate-on-connect, parameterized SQL). It preserves
// the same invariants as the file-backed store: per-session scoping, append-only chat
// ordering, and terminal-only draft cleanup.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore connects to PostgreSQL and ensures the schema exists.
func NewPgStore(ctx context.Context, connURL string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sessionstore: ping: %w", err)
	}
	s := &PgStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sessionstore: migrate: %w", err)
	}
	log.Info().Msg("postgres session store initialized")
	return s, nil
}

func (s *PgStore) migrate(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			agent_type TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_session_ts ON chat_messages (session_id, timestamp);

		CREATE TABLE IF NOT EXISTS email_drafts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			data JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_drafts_session ON email_drafts (session_id);
		CREATE INDEX IF NOT EXISTS idx_drafts_status ON email_drafts (status);

		CREATE TABLE IF NOT EXISTS session_notes (
			session_id TEXT NOT NULL,
			note TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS session_files (
			session_id TEXT NOT NULL,
			name TEXT NOT NULL,
			blob BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (session_id, name)
		);
	`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *PgStore) Close() { s.pool.Close() }

func (s *PgStore) AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("%s-%d", sessionID, time.Now().UnixNano())
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, session_id, sender, agent_type, body, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, sessionID, string(msg.Sender), msg.AgentType, msg.Body, msg.Timestamp)
	return err
}

func (s *PgStore) LoadHistory(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	query := `SELECT id, session_id, sender, agent_type, body, timestamp
			  FROM chat_messages WHERE session_id = $1 ORDER BY timestamp ASC`
	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var sender string
		if err := rows.Scan(&m.ID, &m.SessionID, &sender, &m.AgentType, &m.Body, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Sender = models.Sender(sender)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *PgStore) SaveDraft(ctx context.Context, draft models.EmailDraft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO email_drafts (id, session_id, status, created_at, updated_at, data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at, data = EXCLUDED.data`,
		draft.ID, draft.SessionID, string(draft.Status), draft.CreatedAt, draft.UpdatedAt, data)
	return err
}

func (s *PgStore) UpdateDraft(ctx context.Context, draft models.EmailDraft) error {
	return s.SaveDraft(ctx, draft)
}

func (s *PgStore) GetDraft(ctx context.Context, draftID string, sessionID string) (models.EmailDraft, error) {
	var raw []byte
	var row = s.pool.QueryRow(ctx, `SELECT data FROM email_drafts WHERE id = $1`, draftID)
	if err := row.Scan(&raw); err != nil {
		return models.EmailDraft{}, models.NewError(models.ErrProviderNotFound, "sessionstore.GetDraft", "draft not found")
	}
	var d models.EmailDraft
	if err := json.Unmarshal(raw, &d); err != nil {
		return models.EmailDraft{}, err
	}
	if sessionID != "" && d.SessionID != sessionID {
		return models.EmailDraft{}, models.NewError(models.ErrProviderNotFound, "sessionstore.GetDraft", "draft not found in session")
	}
	return d, nil
}

func (s *PgStore) ListDrafts(ctx context.Context, sessionID string, status models.DraftStatus) ([]models.EmailDraft, error) {
	query := `SELECT data FROM email_drafts WHERE session_id = $1`
	args := []any{sessionID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EmailDraft
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var d models.EmailDraft
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PgStore) DeleteDraft(ctx context.Context, sessionID string, draftID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM email_drafts WHERE id = $1 AND session_id = $2`, draftID, sessionID)
	return err
}

func (s *PgStore) ListPendingApprovals(ctx context.Context) ([]models.EmailDraft, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM email_drafts WHERE status = $1 ORDER BY created_at ASC`,
		string(models.DraftPendingApproval))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EmailDraft
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var d models.EmailDraft
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PgStore) CleanupOldDrafts(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM email_drafts WHERE status = ANY($1) AND updated_at < $2`,
		[]string{string(models.DraftSent), string(models.DraftRejected), string(models.DraftFailed)}, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgStore) SaveNote(ctx context.Context, sessionID string, note string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_notes (session_id, note, created_at) VALUES ($1, $2, $3)`,
		sessionID, note, time.Now().UTC())
	return err
}

func (s *PgStore) ListFiles(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM session_files WHERE session_id = $1 ORDER BY name`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *PgStore) SaveFile(ctx context.Context, sessionID string, name string, blob []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_files (session_id, name, blob, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, name) DO UPDATE SET blob = EXCLUDED.blob, created_at = EXCLUDED.created_at`,
		sessionID, name, blob, time.Now().UTC())
	return err
}

// Compile-time check that PgStore implements Store.
var _ Store = (*PgStore)(nil)
