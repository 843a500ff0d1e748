package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/cv-screener/internal/conversation"
	"github.com/spigell/cv-screener/internal/evaluation"
	"github.com/spigell/cv-screener/internal/profile"
)

// Memory implements every store in process memory. Values are copied on the
// way in and out.
type Memory struct {
	mu          sync.RWMutex
	profiles    map[string]*StoredProfile
	evaluations map[string][]*evaluation.Record
	sessions    map[string]*conversation.Session
	postings    []Posting
	now         func() time.Time
}

// Compile-time checks.
var (
	_ ProfileStore    = (*Memory)(nil)
	_ EvaluationStore = (*Memory)(nil)
	_ PostingStore    = (*Memory)(nil)
	_ SessionStore    = (*Memory)(nil)
)

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		profiles:    make(map[string]*StoredProfile),
		evaluations: make(map[string][]*evaluation.Record),
		sessions:    make(map[string]*conversation.Session),
		now:         time.Now,
	}
}

func (m *Memory) SaveProfile(_ context.Context, p *StoredProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profiles[p.ID] = cloneProfile(p)
	return nil
}

func (m *Memory) GetProfile(_ context.Context, id string) (*StoredProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneProfile(p), nil
}

func (m *Memory) ReplaceSection(_ context.Context, id, section string, raw []byte) (*StoredProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}

	updated := cloneProfile(stored)
	if updated.Profile == nil {
		updated.Profile = profile.Empty()
	}
	if err := profile.ReplaceSection(updated.Profile, section, raw); err != nil {
		return nil, err
	}
	updated.UpdatedAt = m.now()

	m.profiles[id] = updated
	return cloneProfile(updated), nil
}

func (m *Memory) InsertEvaluation(_ context.Context, r *evaluation.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evaluations[r.ApplicationID] = append(m.evaluations[r.ApplicationID], r.Clone())
	return nil
}

func (m *Memory) LatestEvaluation(_ context.Context, applicationID string) (*evaluation.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := latest(m.evaluations[applicationID])
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest.Clone(), nil
}

func (m *Memory) ListEvaluations(_ context.Context, jobID string) ([]*evaluation.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*evaluation.Record, 0, len(m.evaluations))
	for _, records := range m.evaluations {
		r := latest(records)
		if r == nil || (jobID != "" && r.JobID != jobID) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*conversation.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) SaveSession(_ context.Context, s *conversation.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) ListSessions(_ context.Context) ([]*conversation.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*conversation.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *Memory) CreatePosting(_ context.Context, p conversation.Posting) (conversation.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	posting := Posting{
		ID:        uuid.NewString(),
		SessionID: p.SessionID,
		Language:  string(p.Language),
		Fields:    p.Fields,
		CreatedAt: m.now(),
	}
	m.postings = append(m.postings, posting)

	return conversation.Record{ID: posting.ID, Title: posting.Title}, nil
}

func (m *Memory) ListPostings(_ context.Context) ([]Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]Posting(nil), m.postings...), nil
}

func latest(records []*evaluation.Record) *evaluation.Record {
	var out *evaluation.Record
	for _, r := range records {
		if out == nil || !r.CreatedAt.Before(out.CreatedAt) {
			out = r
		}
	}
	return out
}

func cloneProfile(p *StoredProfile) *StoredProfile {
	c := *p
	c.Profile = deepCopy(p.Profile)
	return &c
}

// deepCopy round-trips v through JSON; the stored types are plain data.
func deepCopy[T any](v *T) *T {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		panic(err)
	}
	return out
}
