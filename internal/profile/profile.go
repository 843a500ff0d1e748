// Package profile holds the canonical structured résumé (Candidate Profile).
//
// The shape follows the JSON Resume layout. Sequences are never nil after
// Normalize, so encoded profiles always carry every top-level key with an
// empty array rather than null.
package profile

// Profile is the canonical structured résumé.
type Profile struct {
	Basics         Basics        `json:"basics"`
	Work           []Work        `json:"work"`
	Volunteer      []Volunteer   `json:"volunteer"`
	Education      []Education   `json:"education"`
	Awards         []Award       `json:"awards"`
	Certifications []Certificate `json:"certifications"`
	Publications   []Publication `json:"publications"`
	Skills         []Skill       `json:"skills"`
	Languages      []Language    `json:"languages"`
	Interests      []Interest    `json:"interests"`
	References     []Reference   `json:"references"`
	Projects       []Project     `json:"projects"`
}

// Basics is the required identity section. Email, Phone and URL form the contact block.
type Basics struct {
	Name     string          `json:"name"`
	Label    string          `json:"label"`
	Email    string          `json:"email"`
	Phone    string          `json:"phone"`
	URL      string          `json:"url"`
	Summary  string          `json:"summary"`
	Location Location        `json:"location"`
	Profiles []SocialProfile `json:"profiles"`
}

type Location struct {
	Address     string `json:"address"`
	PostalCode  string `json:"postalCode"`
	City        string `json:"city"`
	CountryCode string `json:"countryCode"`
	Region      string `json:"region"`
}

type SocialProfile struct {
	Network  string `json:"network"`
	Username string `json:"username"`
	URL      string `json:"url"`
}

type Work struct {
	Name       string   `json:"name"`
	Position   string   `json:"position"`
	Location   string   `json:"location"`
	URL        string   `json:"url"`
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
}

type Volunteer struct {
	Organization string   `json:"organization"`
	Position     string   `json:"position"`
	URL          string   `json:"url"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	Summary      string   `json:"summary"`
	Highlights   []string `json:"highlights"`
}

type Education struct {
	Institution string   `json:"institution"`
	URL         string   `json:"url"`
	Area        string   `json:"area"`
	StudyType   string   `json:"studyType"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	Score       string   `json:"score"`
	Courses     []string `json:"courses"`
}

type Award struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	Awarder string `json:"awarder"`
	Summary string `json:"summary"`
}

type Certificate struct {
	Name   string `json:"name"`
	Date   string `json:"date"`
	Issuer string `json:"issuer"`
	URL    string `json:"url"`
}

type Publication struct {
	Name        string `json:"name"`
	Publisher   string `json:"publisher"`
	ReleaseDate string `json:"releaseDate"`
	URL         string `json:"url"`
	Summary     string `json:"summary"`
}

type Skill struct {
	Name     string   `json:"name"`
	Level    string   `json:"level"`
	Keywords []string `json:"keywords"`
}

type Language struct {
	Language string `json:"language"`
	Fluency  string `json:"fluency"`
}

type Interest struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

type Reference struct {
	Name      string `json:"name"`
	Reference string `json:"reference"`
}

type Project struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	Highlights  []string `json:"highlights"`
	Keywords    []string `json:"keywords"`
	Roles       []string `json:"roles"`
}

// Section names, in schema order.
const (
	SectionBasics         = "basics"
	SectionWork           = "work"
	SectionVolunteer      = "volunteer"
	SectionEducation      = "education"
	SectionAwards         = "awards"
	SectionCertifications = "certifications"
	SectionPublications   = "publications"
	SectionSkills         = "skills"
	SectionLanguages      = "languages"
	SectionInterests      = "interests"
	SectionReferences     = "references"
	SectionProjects       = "projects"
)

// Sections returns every top-level key of the profile schema.
func Sections() []string {
	return []string{
		SectionBasics,
		SectionWork,
		SectionVolunteer,
		SectionEducation,
		SectionAwards,
		SectionCertifications,
		SectionPublications,
		SectionSkills,
		SectionLanguages,
		SectionInterests,
		SectionReferences,
		SectionProjects,
	}
}
