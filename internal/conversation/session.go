package conversation

import (
	"time"

	"github.com/spigell/cv-screener/internal/language"
)

// Fields is the draft job posting collected so far.
type Fields struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
	Salary       string `json:"salary"`
	Location     string `json:"location"`
}

// Get returns the value of f.
func (fs Fields) Get(f Field) string {
	switch f {
	case FieldTitle:
		return fs.Title
	case FieldDescription:
		return fs.Description
	case FieldRequirements:
		return fs.Requirements
	case FieldSalary:
		return fs.Salary
	case FieldLocation:
		return fs.Location
	}
	return ""
}

func (fs *Fields) set(f Field, value string) {
	switch f {
	case FieldTitle:
		fs.Title = value
	case FieldDescription:
		fs.Description = value
	case FieldRequirements:
		fs.Requirements = value
	case FieldSalary:
		fs.Salary = value
	case FieldLocation:
		fs.Location = value
	}
}

// Role tells who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the history.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	Step Step      `json:"step"`
	At   time.Time `json:"at"`
}

// Session is one conversation.
type Session struct {
	ID          string       `json:"id"`
	Language    language.Tag `json:"language"`
	Step        Step         `json:"step"`
	Fields      Fields       `json:"collectedFields"`
	History     []Turn       `json:"history"`
	RecordID    string       `json:"recordId,omitempty"`
	RecordTitle string       `json:"recordTitle,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Clone returns a copy that shares no memory with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.History = make([]Turn, len(s.History))
	copy(c.History, s.History)
	return &c
}

// Completed reports whether the posting has been created.
func (s *Session) Completed() bool {
	return s.Step == StepCompletion
}
