// Package redisstore keeps conversation sessions in Redis. Each session is a
// JSON value that expires after the retention period; a sorted set indexes
// sessions by last update.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/conversation"
	"github.com/spigell/cv-screener/internal/store"
)

const (
	DefaultPrefix    = "cv-screener"
	DefaultRetention = 7 * 24 * time.Hour

	pingTimeout = 3 * time.Second
)

var _ store.SessionStore = (*Store)(nil)

// Store implements store.SessionStore.
type Store struct {
	rdb       redis.UniversalClient
	prefix    string
	retention time.Duration
	logger    *zap.Logger
}

// Options configure a Store.
type Options struct {
	Prefix    string
	Retention time.Duration
}

// Connect parses a redis:// url, checks the server and returns a Store.
func Connect(ctx context.Context, url string, opts Options, log *zap.Logger) (*Store, error) {
	parsed, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(parsed)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", parsed.Addr, err)
	}

	s := New(rdb, opts, log)
	s.logger.Info("redis connected", zap.String("addr", parsed.Addr))
	return s, nil
}

// New wraps an existing client.
func New(rdb redis.UniversalClient, opts Options, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	return &Store{rdb: rdb, prefix: opts.Prefix, retention: opts.Retention, logger: log}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) sessionKey(id string) string {
	return s.prefix + ":session:" + id
}

func (s *Store) indexKey() string {
	return s.prefix + ":sessions"
}

func (s *Store) GetSession(ctx context.Context, id string) (*conversation.Session, error) {
	data, err := s.rdb.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	var session conversation.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

func (s *Store) SaveSession(ctx context.Context, session *conversation.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}

	updated := session.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	cutoff := time.Now().Add(-s.retention)

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(session.ID), data, s.retention)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(updated.UnixMilli()), Member: session.ID})
		pipe.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+strconv.FormatInt(cutoff.UnixMilli(), 10))
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

// ListSessions returns live sessions, most recently updated first. Index
// entries whose value has expired are removed.
func (s *Store) ListSessions(ctx context.Context) ([]*conversation.Session, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list session ids: %w", err)
	}
	if len(ids) == 0 {
		return []*conversation.Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	out := make([]*conversation.Session, 0, len(values))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var session conversation.Session
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			s.logger.Warn("skipping undecodable session", zap.String("session_id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, &session)
	}

	if len(stale) > 0 {
		if err := s.rdb.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			s.logger.Warn("failed to prune session index", zap.Error(err))
		}
	}
	return out, nil
}
