package cache

import "time"

const (
	DefaultSessionTTL    = 30 * time.Second
	DefaultListTTL       = 5 * time.Minute
	DefaultEvaluationTTL = time.Minute

	// ListKey is the key of the all-sessions list.
	ListKey = "sessions"
)

// TTLs holds the lifetime of each cache class.
type TTLs struct {
	Session    time.Duration `mapstructure:"session-ttl"`
	List       time.Duration `mapstructure:"list-ttl"`
	Evaluation time.Duration `mapstructure:"evaluation-ttl"`
}

// WithDefaults fills zero durations.
func (t TTLs) WithDefaults() TTLs {
	if t.Session <= 0 {
		t.Session = DefaultSessionTTL
	}
	if t.List <= 0 {
		t.List = DefaultListTTL
	}
	if t.Evaluation <= 0 {
		t.Evaluation = DefaultEvaluationTTL
	}
	return t
}

// SessionCache groups the caches of one process: single sessions with a short
// TTL, the session list with a longer one, and evaluation results.
type SessionCache[S, E any] struct {
	Sessions    *Cache[S]
	Lists       *Cache[[]S]
	Evaluations *Cache[E]
}

// NewSessionCache creates the three caches.
func NewSessionCache[S, E any](ttls TTLs, opts ...Option) *SessionCache[S, E] {
	ttls = ttls.WithDefaults()
	return &SessionCache[S, E]{
		Sessions:    New[S](ttls.Session, opts...),
		Lists:       New[[]S](ttls.List, opts...),
		Evaluations: New[E](ttls.Evaluation, opts...),
	}
}

// InvalidateAll drops every entry of every class.
func (s *SessionCache[S, E]) InvalidateAll() {
	s.Sessions.InvalidateAll()
	s.Lists.InvalidateAll()
	s.Evaluations.InvalidateAll()
}
