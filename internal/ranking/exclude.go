package ranking

import (
	"encoding/json"
	"errors"
	"os"
	"time"
)

// Excluded is the content of an exclude file.
type Excluded struct {
	Items []*ExcludedApplication
}

type ExcludedApplication struct {
	ID            string
	CandidateName string
	JobTitle      string
	ExcludedAt    time.Time
}

// LoadExcluded reads an exclude file. A missing or empty file is an empty list.
func LoadExcluded(path string) (*Excluded, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Excluded{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() == 0 {
		return &Excluded{}, nil
	}

	var excluded Excluded
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

// ToExcluded converts the candidates into exclude file entries.
func (c *Candidates) ToExcluded() *Excluded {
	excluded := &Excluded{}
	for _, r := range c.Items {
		excluded.Items = append(excluded.Items, &ExcludedApplication{
			ID:            r.ApplicationID,
			CandidateName: r.CandidateName,
			JobTitle:      r.JobTitle,
			ExcludedAt:    time.Now().UTC(),
		})
	}
	return excluded
}

func (e *Excluded) Append(other *Excluded) {
	e.Items = append(e.Items, other.Items...)
}

func (e *Excluded) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// ToFile overwrites path with the list.
func (e *Excluded) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
