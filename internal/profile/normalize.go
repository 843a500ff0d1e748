package profile

// Empty returns a profile with every section present and empty.
func Empty() *Profile {
	p := &Profile{}
	Normalize(p)
	return p
}

// Normalize backfills every nil sequence with an empty one. It is idempotent
// and is the only place the completeness invariant is enforced; consumers rely
// on it instead of re-checking.
func Normalize(p *Profile) {
	if p == nil {
		return
	}

	p.Basics.Profiles = orEmpty(p.Basics.Profiles)

	p.Work = orEmpty(p.Work)
	for i := range p.Work {
		p.Work[i].Highlights = orEmpty(p.Work[i].Highlights)
	}

	p.Volunteer = orEmpty(p.Volunteer)
	for i := range p.Volunteer {
		p.Volunteer[i].Highlights = orEmpty(p.Volunteer[i].Highlights)
	}

	p.Education = orEmpty(p.Education)
	for i := range p.Education {
		p.Education[i].Courses = orEmpty(p.Education[i].Courses)
	}

	p.Awards = orEmpty(p.Awards)
	p.Certifications = orEmpty(p.Certifications)
	p.Publications = orEmpty(p.Publications)

	p.Skills = orEmpty(p.Skills)
	for i := range p.Skills {
		p.Skills[i].Keywords = orEmpty(p.Skills[i].Keywords)
	}

	p.Languages = orEmpty(p.Languages)

	p.Interests = orEmpty(p.Interests)
	for i := range p.Interests {
		p.Interests[i].Keywords = orEmpty(p.Interests[i].Keywords)
	}

	p.References = orEmpty(p.References)

	p.Projects = orEmpty(p.Projects)
	for i := range p.Projects {
		p.Projects[i].Highlights = orEmpty(p.Projects[i].Highlights)
		p.Projects[i].Keywords = orEmpty(p.Projects[i].Keywords)
		p.Projects[i].Roles = orEmpty(p.Projects[i].Roles)
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
