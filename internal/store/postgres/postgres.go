// Package postgres stores profiles, evaluations and job postings in
// PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/conversation"
	"github.com/spigell/cv-screener/internal/evaluation"
	"github.com/spigell/cv-screener/internal/profile"
	"github.com/spigell/cv-screener/internal/store"
)

//go:embed schema/*.sql
var schemaFS embed.FS

const pingTimeout = 5 * time.Second

var (
	_ store.ProfileStore    = (*Store)(nil)
	_ store.EvaluationStore = (*Store)(nil)
	_ store.PostingStore    = (*Store)(nil)
)

// Store is a pgx backed implementation of the profile, evaluation and
// posting stores.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

// Connect opens a pool for databaseURL and applies the embedded schema.
func Connect(ctx context.Context, databaseURL string, log *zap.Logger) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("postgres url is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, pingTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool, logger: log, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Info("postgres connected", zap.String("host", config.ConnConfig.Host))
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate executes every embedded schema file in name order. The files are
// idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute %s: %w", entry.Name(), err)
		}
		s.logger.Debug("schema applied", zap.String("file", entry.Name()))
	}
	return nil
}

func (s *Store) SaveProfile(ctx context.Context, p *store.StoredProfile) error {
	raw, err := json.Marshal(p.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO profiles (id, document_ref, profile, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET document_ref = EXCLUDED.document_ref,
		    profile = EXCLUDED.profile,
		    updated_at = EXCLUDED.updated_at`,
		p.ID, p.DocumentRef, raw, createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*store.StoredProfile, error) {
	return getProfile(ctx, s.pool, id, "")
}

// ReplaceSection locks the row so concurrent edits of one profile apply in order.
func (s *Store) ReplaceSection(ctx context.Context, id, section string, raw []byte) (*store.StoredProfile, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stored, err := getProfile(ctx, tx, id, " FOR UPDATE")
	if err != nil {
		return nil, err
	}
	if err := profile.ReplaceSection(stored.Profile, section, raw); err != nil {
		return nil, err
	}
	stored.UpdatedAt = s.now()

	encoded, err := json.Marshal(stored.Profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE profiles SET profile = $2, updated_at = $3 WHERE id = $1`,
		id, encoded, stored.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update profile %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getProfile(ctx context.Context, q querier, id, suffix string) (*store.StoredProfile, error) {
	var (
		p   store.StoredProfile
		raw []byte
	)
	err := q.QueryRow(ctx, `
		SELECT id, document_ref, profile, created_at, updated_at
		FROM profiles WHERE id = $1`+suffix, id).
		Scan(&p.ID, &p.DocumentRef, &raw, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}

	p.Profile = profile.Empty()
	if err := json.Unmarshal(raw, p.Profile); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", id, err)
	}
	profile.Normalize(p.Profile)
	return &p, nil
}

func (s *Store) InsertEvaluation(ctx context.Context, r *evaluation.Record) error {
	raw, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("encode evaluation: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO evaluations (id, application_id, profile_id, job_id, job_title, candidate_name, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.ApplicationID, r.ProfileID, r.JobID, r.JobTitle, r.CandidateName, raw, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert evaluation %s: %w", r.ID, err)
	}
	return nil
}

const evaluationColumns = `id, application_id, profile_id, job_id, job_title, candidate_name, result, created_at`

func (s *Store) LatestEvaluation(ctx context.Context, applicationID string) (*evaluation.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+evaluationColumns+`
		FROM evaluations WHERE application_id = $1
		ORDER BY created_at DESC LIMIT 1`, applicationID)

	r, err := scanEvaluation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest evaluation %s: %w", applicationID, err)
	}
	return r, nil
}

func (s *Store) ListEvaluations(ctx context.Context, jobID string) ([]*evaluation.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+evaluationColumns+` FROM (
			SELECT DISTINCT ON (application_id) `+evaluationColumns+`
			FROM evaluations
			ORDER BY application_id, created_at DESC
		) latest
		WHERE $1 = '' OR job_id = $1
		ORDER BY created_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var out []*evaluation.Record
	for rows.Next() {
		r, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanEvaluation(row pgx.Row) (*evaluation.Record, error) {
	var (
		r   evaluation.Record
		raw []byte
	)
	if err := row.Scan(&r.ID, &r.ApplicationID, &r.ProfileID, &r.JobID, &r.JobTitle, &r.CandidateName, &raw, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &r.Result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &r, nil
}

func (s *Store) CreatePosting(ctx context.Context, p conversation.Posting) (conversation.Record, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO postings (id, session_id, language, title, description, requirements, salary, location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, p.SessionID, string(p.Language), p.Title, p.Description, p.Requirements, p.Salary, p.Location, s.now())
	if err != nil {
		return conversation.Record{}, fmt.Errorf("create posting: %w", err)
	}
	return conversation.Record{ID: id, Title: p.Title}, nil
}

func (s *Store) ListPostings(ctx context.Context) ([]store.Posting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, language, title, description, requirements, salary, location, created_at
		FROM postings ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list postings: %w", err)
	}
	defer rows.Close()

	var out []store.Posting
	for rows.Next() {
		var p store.Posting
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Language, &p.Title, &p.Description,
			&p.Requirements, &p.Salary, &p.Location, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
