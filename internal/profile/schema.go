package profile

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

// SchemaJSON returns the machine-readable JSON Schema of a profile payload.
func SchemaJSON() string {
	return string(schemaJSON)
}

var (
	compileOnce sync.Once
	compiled    *gojsonschema.Schema
	compileErr  error
)

func schema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return compiled, compileErr
}

// ValidationError lists every schema violation of a payload.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single violation at a field path.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf(" %d. %s: %s;", i+1, err.Field, err.Message))
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// ValidatePayload checks the shape of a raw JSON profile. Missing keys are
// allowed (they are backfilled); wrong shapes, such as a string where a list
// is expected, are not.
func ValidatePayload(raw []byte) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("compile profile schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("load profile payload: %w", err)
	}

	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}

	return validationErr
}

type sectionDoc struct {
	name   string
	kind   string
	fields string
}

var sectionDocs = []sectionDoc{
	{SectionBasics, "required object", "name, label, email, phone, url, summary, location{address, postalCode, city, countryCode, region}, profiles[{network, username, url}]"},
	{SectionWork, "optional list", "name, position, location, url, startDate, endDate, summary, highlights[]"},
	{SectionVolunteer, "optional list", "organization, position, url, startDate, endDate, summary, highlights[]"},
	{SectionEducation, "optional list", "institution, url, area, studyType, startDate, endDate, score, courses[]"},
	{SectionAwards, "optional list", "title, date, awarder, summary"},
	{SectionCertifications, "optional list", "name, date, issuer, url"},
	{SectionPublications, "optional list", "name, publisher, releaseDate, url, summary"},
	{SectionSkills, "optional list", "name, level, keywords[]"},
	{SectionLanguages, "optional list", "language, fluency"},
	{SectionInterests, "optional list", "name, keywords[]"},
	{SectionReferences, "optional list", "name, reference"},
	{SectionProjects, "optional list", "name, description, url, startDate, endDate, highlights[], keywords[], roles[]"},
}

// SchemaDescription is a compact human/LLM readable list of the top-level keys
// with their optionality.
func SchemaDescription() string {
	var sb strings.Builder
	for _, doc := range sectionDocs {
		sb.WriteString(fmt.Sprintf("- %s (%s): %s\n", doc.name, doc.kind, doc.fields))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
