package profile

import (
	"encoding/json"
	"fmt"
)

// ReplaceSection replaces one whole top-level section of p with the JSON value
// raw. Sections are never merged: the previous value is discarded entirely.
func ReplaceSection(p *Profile, section string, raw []byte) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("parse %s section: %w", section, err)
	}

	wrapped, err := json.Marshal(map[string]any{section: value})
	if err != nil {
		return fmt.Errorf("encode %s section: %w", section, err)
	}

	fresh, err := Parse(wrapped)
	if err != nil {
		return fmt.Errorf("replace %s section: %w", section, err)
	}

	switch section {
	case SectionBasics:
		p.Basics = fresh.Basics
	case SectionWork:
		p.Work = fresh.Work
	case SectionVolunteer:
		p.Volunteer = fresh.Volunteer
	case SectionEducation:
		p.Education = fresh.Education
	case SectionAwards:
		p.Awards = fresh.Awards
	case SectionCertifications:
		p.Certifications = fresh.Certifications
	case SectionPublications:
		p.Publications = fresh.Publications
	case SectionSkills:
		p.Skills = fresh.Skills
	case SectionLanguages:
		p.Languages = fresh.Languages
	case SectionInterests:
		p.Interests = fresh.Interests
	case SectionReferences:
		p.References = fresh.References
	case SectionProjects:
		p.Projects = fresh.Projects
	default:
		return fmt.Errorf("unknown profile section %q", section)
	}

	Normalize(p)
	return nil
}
