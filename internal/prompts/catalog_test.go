package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/cv-screener/internal/language"
)

var stepKeys = []string{
	"initial",
	"collecting_title",
	"collecting_description",
	"collecting_requirements",
	"collecting_salary",
	"collecting_location",
	"ready_to_create",
	"completion",
}

func TestCatalogCoversEverySupportedLanguage(t *testing.T) {
	c, err := Load(language.Default)
	require.NoError(t, err)

	assert.Empty(t, c.Missing(append(stepKeys, AuxiliaryKeys()...)))
	assert.Len(t, c.Languages(), len(language.Supported()))
}

func TestRenderInterpolation(t *testing.T) {
	c := MustLoad(language.Default)

	got := c.Render(language.English, "completion", "Go Developer")
	assert.Equal(t, "Done! The posting \"Go Developer\" has been created.", got)

	got = c.Render(language.Russian, "completion", "Разработчик Go")
	assert.Contains(t, got, "Разработчик Go")
}

func TestRenderGenericVariantWhenValueMissing(t *testing.T) {
	c := MustLoad(language.Default)

	for _, lang := range language.Supported() {
		for _, key := range []string{"completion", "ready_to_create", KeyCreationFailed} {
			got := c.Render(lang, key, "   ")
			assert.NotEmpty(t, got, "%s/%s", lang, key)
			assert.NotContains(t, got, "{{", "%s/%s", lang, key)
		}
	}
}

func TestRenderFallsBackToDefaultLanguage(t *testing.T) {
	c := MustLoad(language.Default)

	got := c.Render(language.Tag("de"), "collecting_salary", "")
	assert.Equal(t, c.Render(language.English, "collecting_salary", ""), got)

	assert.Empty(t, c.Render(language.English, "no_such_key", ""))
}

func TestLoadRejectsUnknownFallback(t *testing.T) {
	_, err := Load(language.Tag("xx"))
	require.Error(t, err)
}
