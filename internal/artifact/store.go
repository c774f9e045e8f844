// Package artifact stores synthesized audio: WAV payloads on disk plus a
// SQLite index of their metadata. Entries are append-only and addressed
// by generated identifier; an existing artifact is never overwritten.
package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vaanilabs/vaani/internal/config"
)

// ErrNotFound reports a lookup for an identifier the index does not hold.
var ErrNotFound = errors.New("artifact not found")

// Artifact is one stored synthesis output.
type Artifact struct {
	ID         string
	SessionID  string
	Engine     string
	Language   string
	Text       string
	DurationMS float64
	Bytes      int64
	CreatedAt  time.Time
}

// Store wraps the artifact directory and its SQLite index.
type Store struct {
	db    *sql.DB
	cfg   config.ArtifactConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open prepares the artifact directory and index according to config.
func Open(ctx context.Context, cfg config.ArtifactConfig, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	dir := filepath.Dir(cfg.IndexPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.IndexPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if err := s.vacuum(ctx); err != nil {
			log.Warn("artifact index vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("artifact prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS artifacts (
    artifact_id TEXT PRIMARY KEY,
    session_id TEXT,
    engine TEXT,
    language TEXT,
    text TEXT,
    duration_ms REAL,
    bytes INTEGER,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put writes one artifact: payload to disk first, then the index row.
// The identifier is generated here and returned in the completed record.
func (s *Store) Put(ctx context.Context, meta Artifact, wav []byte) (Artifact, error) {
	meta.ID = uuid.NewString()
	meta.Bytes = int64(len(wav))
	meta.CreatedAt = s.clock().UTC()

	final := filepath.Join(s.cfg.Directory, meta.ID+".wav")
	if _, err := os.Stat(final); err == nil {
		return Artifact{}, fmt.Errorf("artifact %s already exists", meta.ID)
	}

	tmp, err := os.CreateTemp(s.cfg.Directory, ".artifact-*.tmp")
	if err != nil {
		return Artifact{}, fmt.Errorf("stage artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(wav); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Artifact{}, fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return Artifact{}, fmt.Errorf("publish artifact: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO artifacts(artifact_id, session_id, engine, language, text, duration_ms, bytes, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.SessionID, meta.Engine, meta.Language, meta.Text, meta.DurationMS, meta.Bytes, meta.CreatedAt)
	if err != nil {
		os.Remove(final)
		return Artifact{}, fmt.Errorf("index artifact: %w", err)
	}
	return meta, nil
}

// Get looks up one artifact's metadata by identifier.
func (s *Store) Get(ctx context.Context, id string) (Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT artifact_id, session_id, engine, language, text, duration_ms, bytes, created_at
		 FROM artifacts WHERE artifact_id = ?`, id)
	var a Artifact
	var created string
	err := row.Scan(&a.ID, &a.SessionID, &a.Engine, &a.Language, &a.Text, &a.DurationMS, &a.Bytes, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, ErrNotFound
	}
	if err != nil {
		return Artifact{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		a.CreatedAt = ts
	}
	return a, nil
}

// URL returns the public read path for an identifier.
func (s *Store) URL(id string) string {
	return strings.TrimSuffix(s.cfg.PublicBase, "/") + "/" + id + ".wav"
}

// Handler serves stored artifacts. Expects to be mounted at the
// configured public base, e.g. GET /audio/{id}.wav.
func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		name := path.Base(r.URL.Path)
		id := strings.TrimSuffix(name, ".wav")
		if _, err := uuid.Parse(id); err != nil {
			http.NotFound(w, r)
			return
		}
		if _, err := s.Get(r.Context(), id); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(s.cfg.Directory, id+".wav"))
	})
}

// Count reports how many artifacts the index holds.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&n)
	return n, err
}

// Prune applies configured retention. A zero retention_days and zero
// max_artifacts means unbounded retention; nothing is removed.
func (s *Store) Prune(ctx context.Context) error {
	var stale []string

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour).UTC()
		ids, err := s.collect(ctx, `SELECT artifact_id FROM artifacts WHERE created_at < ?`, cutoff)
		if err != nil {
			return err
		}
		stale = append(stale, ids...)
	}
	if s.cfg.MaxArtifacts > 0 {
		ids, err := s.collect(ctx, `SELECT artifact_id FROM artifacts
			ORDER BY created_at DESC LIMIT -1 OFFSET ?`, s.cfg.MaxArtifacts)
		if err != nil {
			return err
		}
		stale = append(stale, ids...)
	}
	if len(stale) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE artifact_id = ?`, id); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, id := range stale {
		if err := os.Remove(filepath.Join(s.cfg.Directory, id+".wav")); err != nil && !os.IsNotExist(err) {
			s.log.Warn("remove pruned artifact failed",
				slog.String("artifact_id", id),
				slog.String("error", err.Error()))
		}
	}
	s.log.Info("pruned artifacts", slog.Int("count", len(stale)))
	return nil
}

func (s *Store) collect(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
