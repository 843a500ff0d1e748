// Package prompts provides the localized texts the conversation shows to an actor.
// Catalogs are stored as JSON files, one per language, and embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/spigell/cv-screener/internal/language"
)

//go:embed catalog/*.json
var catalogFiles embed.FS

// Auxiliary keys that are not conversation steps.
const (
	KeyInvalidInput    = "invalid_input"
	KeyConfirmReprompt = "confirm_reprompt"
	KeyCreationFailed  = "creation_failed"

	genericSuffix = "_generic"
	placeholder   = "{{.Value}}"
)

// Catalog maps (language, key) to a template.
type Catalog struct {
	texts    map[language.Tag]map[string]string
	fallback language.Tag
}

// Load parses every embedded catalog. fallback is the language used when a
// language or a key is missing; an empty value means language.Default.
func Load(fallback language.Tag) (*Catalog, error) {
	if fallback == "" {
		fallback = language.Default
	}

	entries, err := catalogFiles.ReadDir("catalog")
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	c := &Catalog{texts: make(map[language.Tag]map[string]string), fallback: fallback}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".json" {
			continue
		}

		data, err := catalogFiles.ReadFile(path.Join("catalog", name))
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", name, err)
		}

		var texts map[string]string
		if err := json.Unmarshal(data, &texts); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", name, err)
		}

		c.texts[language.Tag(strings.TrimSuffix(name, ".json"))] = texts
	}

	if _, ok := c.texts[fallback]; !ok {
		return nil, fmt.Errorf("fallback language %q has no catalog", fallback)
	}

	return c, nil
}

// MustLoad is Load that panics; the catalogs are compiled in, so a failure is a build defect.
func MustLoad(fallback language.Tag) *Catalog {
	c, err := Load(fallback)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt catalog: %v", err))
	}
	return c
}

// Render returns the text for key in lang. Missing languages or keys fall back
// to the fallback language. Templates that reference a value render their
// generic variant when value is empty.
func (c *Catalog) Render(lang language.Tag, key, value string) string {
	tmpl, ok := c.lookup(lang, key)
	if !ok {
		return ""
	}

	if !strings.Contains(tmpl, placeholder) {
		return tmpl
	}

	value = strings.TrimSpace(value)
	if value == "" {
		if generic, ok := c.lookup(lang, key+genericSuffix); ok && !strings.Contains(generic, placeholder) {
			return generic
		}
		// No usable generic variant: drop the placeholder rather than leak it.
		return strings.TrimSpace(strings.ReplaceAll(tmpl, placeholder, ""))
	}

	return strings.ReplaceAll(tmpl, placeholder, value)
}

func (c *Catalog) lookup(lang language.Tag, key string) (string, bool) {
	if texts, ok := c.texts[lang]; ok {
		if tmpl, ok := texts[key]; ok && strings.TrimSpace(tmpl) != "" {
			return tmpl, true
		}
	}
	tmpl, ok := c.texts[c.fallback][key]
	return tmpl, ok
}

// Languages returns the languages that have a catalog, sorted.
func (c *Catalog) Languages() []language.Tag {
	out := make([]language.Tag, 0, len(c.texts))
	for tag := range c.texts {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Missing lists "lang/key" pairs for every supported language that lacks one of keys.
// Interpolated keys additionally require their generic variant.
func (c *Catalog) Missing(keys []string) []string {
	var missing []string
	for _, lang := range language.Supported() {
		texts := c.texts[lang]
		for _, key := range keys {
			tmpl, ok := texts[key]
			if !ok || strings.TrimSpace(tmpl) == "" {
				missing = append(missing, fmt.Sprintf("%s/%s", lang, key))
				continue
			}
			if strings.Contains(tmpl, placeholder) {
				if _, ok := texts[key+genericSuffix]; !ok {
					missing = append(missing, fmt.Sprintf("%s/%s", lang, key+genericSuffix))
				}
			}
		}
	}
	return missing
}

// AuxiliaryKeys are the non-step keys every catalog must define.
func AuxiliaryKeys() []string {
	return []string{KeyInvalidInput, KeyConfirmReprompt, KeyCreationFailed}
}
