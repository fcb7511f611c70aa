package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"github.com/agenthost/chatlog/pkg/classify"
)

// ErrUnavailable reports that the sink could not be reached or the
// schema could not be created. Fatal during startup; recoverable via
// reconciliation everywhere else.
var ErrUnavailable = errors.New("sink unavailable")

// Content caps per delivery path. Streaming inserts are trimmed harder
// so a runaway chunk cannot stall the live path.
const (
	maxStreamContent = 10_000
	maxBatchContent  = 100_000
)

// Store is the write surface both delivery paths use. The batch
// reconciler additionally reads existing event keys to compute the
// missing set.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Insert(ctx context.Context, ev Event) error
	ExistingKeys(ctx context.Context, sessionID string) (map[string]struct{}, error)
	Close() error
}

// Config holds QuestDB connection settings. The defaults match a
// stock QuestDB container exposing the Postgres endpoint.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// DefaultConfig returns connection defaults for a local QuestDB.
func DefaultConfig() Config {
	return Config{
		Host:     "127.0.0.1",
		Port:     8812,
		Database: "qdb",
		User:     "admin",
		Password: "quest",
	}
}

// DSN renders the config as a Postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Database)
}

// QuestDB is the Store implementation backed by QuestDB's Postgres
// wire endpoint.
type QuestDB struct {
	db *sql.DB
}

// Open connects to QuestDB and pings it. A failed ping is reported as
// ErrUnavailable so callers can abort startup.
func Open(ctx context.Context, cfg Config) (*QuestDB, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping %s:%d: %v", ErrUnavailable, cfg.Host, cfg.Port, err)
	}

	log.Debug().Str("host", cfg.Host).Int("port", cfg.Port).Msg("Connected to QuestDB")
	return &QuestDB{db: db}, nil
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS chat (
	timestamp TIMESTAMP,
	session_id SYMBOL CAPACITY 10000 CACHE,
	message_type SYMBOL CAPACITY 10 CACHE,
	content STRING,
	project_tag SYMBOL CAPACITY 1000 CACHE,
	tool_used SYMBOL CAPACITY 100 CACHE,
	file_modified STRING,
	context_tokens INT,
	streaming BOOLEAN
) TIMESTAMP(timestamp) PARTITION BY DAY;
`

// EnsureSchema creates the chat table if it is absent. Safe to call
// any number of times.
func (q *QuestDB) EnsureSchema(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("%w: create table: %v", ErrUnavailable, err)
	}
	return nil
}

const insertSQL = `
INSERT INTO chat (
	timestamp, session_id, message_type, content, project_tag,
	tool_used, file_modified, context_tokens, streaming
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// Insert appends one event row. Content is capped according to the
// delivery path so oversized chunks degrade instead of failing.
func (q *QuestDB) Insert(ctx context.Context, ev Event) error {
	content := ev.Content
	limit := maxBatchContent
	if ev.Streaming {
		limit = maxStreamContent
	}
	if len(content) > limit {
		content = content[:limit]
	}

	_, err := q.db.ExecContext(ctx, insertSQL,
		ev.Timestamp.UTC(),
		ev.SessionID,
		string(ev.Type),
		content,
		nullable(ev.ProjectTag),
		nullable(ev.ToolUsed),
		nullable(ev.FileModified),
		ev.ContextTokens,
		ev.Streaming,
	)
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrUnavailable, err)
	}
	return nil
}

// ExistingKeys loads the identity keys of every stored event for a
// session. The verify pass diffs these against the reconstructed set.
// Batch rows contribute exact keys; rows written by the live path
// contribute loose keys, because their wall-clock timestamps never
// line up with the timing-log reconstruction.
func (q *QuestDB) ExistingKeys(ctx context.Context, sessionID string) (map[string]struct{}, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT timestamp, message_type, content, streaming FROM chat WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: query session %s: %v", ErrUnavailable, sessionID, err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var (
			ts        time.Time
			msgType   string
			content   string
			streaming bool
		)
		if err := rows.Scan(&ts, &msgType, &content, &streaming); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
		}
		ev := Event{Timestamp: ts, Type: classify.MessageType(msgType), Content: content, Streaming: streaming}
		if streaming {
			keys[ev.LooseKey()] = struct{}{}
		} else {
			keys[ev.Key()] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrUnavailable, err)
	}
	return keys, nil
}

// Close releases the connection pool.
func (q *QuestDB) Close() error {
	return q.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
