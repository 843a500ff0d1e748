// Package store defines the persistence contracts of the screening pipeline
// and an in-memory implementation of all of them.
package store

import (
	"context"
	"time"

	"github.com/spigell/cv-screener/internal/conversation"
	"github.com/spigell/cv-screener/internal/evaluation"
	"github.com/spigell/cv-screener/internal/profile"
)

// ErrNotFound is returned for unknown ids by every store.
var ErrNotFound = conversation.ErrNotFound

// StoredProfile is a structured profile with its source document.
type StoredProfile struct {
	ID          string           `json:"id"`
	DocumentRef string           `json:"documentRef"`
	Profile     *profile.Profile `json:"profile"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// ProfileStore persists candidate profiles.
type ProfileStore interface {
	SaveProfile(ctx context.Context, p *StoredProfile) error
	GetProfile(ctx context.Context, id string) (*StoredProfile, error)
	// ReplaceSection swaps one top-level section of a stored profile for raw
	// JSON and returns the updated profile.
	ReplaceSection(ctx context.Context, id, section string, raw []byte) (*StoredProfile, error)
}

// EvaluationStore persists immutable evaluation records.
type EvaluationStore interface {
	InsertEvaluation(ctx context.Context, r *evaluation.Record) error
	// LatestEvaluation returns the newest record of an application.
	LatestEvaluation(ctx context.Context, applicationID string) (*evaluation.Record, error)
	// ListEvaluations returns the newest record of every application,
	// restricted to jobID when it is not empty.
	ListEvaluations(ctx context.Context, jobID string) ([]*evaluation.Record, error)
}

// PostingStore creates job postings and lists them.
type PostingStore interface {
	conversation.RecordCreator
	ListPostings(ctx context.Context) ([]Posting, error)
}

// Posting is a created job posting.
type Posting struct {
	ID        string
	SessionID string
	Language  string
	conversation.Fields
	CreatedAt time.Time
}

// SessionStore persists conversation sessions.
type SessionStore = conversation.SessionStore
