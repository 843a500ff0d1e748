package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyProfileEncodesEveryKey(t *testing.T) {
	raw, err := json.Marshal(Empty())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	for _, section := range Sections() {
		value, ok := decoded[section]
		require.True(t, ok, "section %s missing", section)
		require.NotNil(t, value, "section %s is null", section)
	}

	basics := decoded[SectionBasics].(map[string]any)
	assert.Equal(t, "", basics["email"])
	assert.Equal(t, "", basics["phone"])
	assert.Equal(t, []any{}, basics["profiles"])
}

func TestParseBackfillsMissingKeys(t *testing.T) {
	p, err := Parse([]byte(`{"basics": {"name": "Jane Doe"}, "work": [{"name": "Acme"}]}`))
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", p.Basics.Name)
	assert.Equal(t, "", p.Basics.Email)
	assert.NotNil(t, p.Skills)
	assert.Empty(t, p.Skills)
	require.Len(t, p.Work, 1)
	assert.NotNil(t, p.Work[0].Highlights)
}

func TestParseIsWeaklyTyped(t *testing.T) {
	p, err := Parse([]byte(`{
		"education": [{"institution": "MIT", "score": 3.8, "courses": ["Algorithms", 101]}],
		"awards": null
	}`))
	require.NoError(t, err)

	require.Len(t, p.Education, 1)
	assert.Equal(t, "3.8", p.Education[0].Score)
	assert.Equal(t, []string{"Algorithms", "101"}, p.Education[0].Courses)
	assert.NotNil(t, p.Awards)
}

func TestParseRejectsWrongShape(t *testing.T) {
	_, err := Parse([]byte(`{"work": "ten years at Acme"}`))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.NotEmpty(t, verr.Errors)
	assert.Equal(t, "work", verr.Errors[0].Field)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	p := &Profile{Skills: []Skill{{Name: "Go"}}}
	Normalize(p)
	Normalize(p)

	assert.Equal(t, []string{}, p.Skills[0].Keywords)
	Normalize(nil)
}

func TestReplaceSectionReplacesWholeSection(t *testing.T) {
	p := Empty()
	p.Skills = []Skill{{Name: "Go", Keywords: []string{"concurrency"}}, {Name: "SQL"}}
	p.Basics.Name = "Jane"

	err := ReplaceSection(p, SectionSkills, []byte(`[{"name": "Rust"}]`))
	require.NoError(t, err)

	require.Len(t, p.Skills, 1)
	assert.Equal(t, "Rust", p.Skills[0].Name)
	assert.Equal(t, []string{}, p.Skills[0].Keywords)
	assert.Equal(t, "Jane", p.Basics.Name)
}

func TestReplaceSectionErrors(t *testing.T) {
	p := Empty()

	require.Error(t, ReplaceSection(p, "hobbies", []byte(`[]`)))
	require.Error(t, ReplaceSection(p, SectionWork, []byte(`"not a list"`)))
	require.Error(t, ReplaceSection(p, SectionWork, []byte(`{broken`)))
	require.Error(t, ReplaceSection(nil, SectionWork, []byte(`[]`)))
}

func TestSchemaDescriptionListsEverySection(t *testing.T) {
	desc := SchemaDescription()
	for _, section := range Sections() {
		assert.Contains(t, desc, "- "+section+" (")
	}
	assert.Contains(t, SchemaJSON(), `"basics"`)
}
