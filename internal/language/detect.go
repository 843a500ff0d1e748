// Package language resolves the language of free-form actor input.
package language

import (
	"strings"
	"unicode"

	xlanguage "golang.org/x/text/language"
)

// Tag is a supported language code.
type Tag string

const (
	English   Tag = "en"
	Russian   Tag = "ru"
	Ukrainian Tag = "uk"
	Uzbek     Tag = "uz"
	Arabic    Tag = "ar"
	Chinese   Tag = "zh"
	Korean    Tag = "ko"
	Japanese  Tag = "ja"

	// Default is used whenever no script rule matches.
	Default = English
)

var supported = []Tag{English, Russian, Ukrainian, Uzbek, Arabic, Chinese, Korean, Japanese}

// Supported returns all languages the detector can produce.
func Supported() []Tag {
	out := make([]Tag, len(supported))
	copy(out, supported)
	return out
}

// IsSupported reports whether t is one of the supported tags.
func IsSupported(t Tag) bool {
	for _, s := range supported {
		if s == t {
			return true
		}
	}
	return false
}

// Result is a detection outcome. Matched is false when Tag is the fallback.
// Broad is set when only a whole script block matched (any Cyrillic, any Han)
// rather than a letter or marker unique to Tag.
type Result struct {
	Tag     Tag
	Matched bool
	Broad   bool
}

// Script families whose members share a block that the broad rules match.
var families = map[Tag]string{
	Russian:   "cyrillic",
	Ukrainian: "cyrillic",
	Uzbek:     "cyrillic",
	Chinese:   "han",
	Japanese:  "han",
}

// SameFamily reports whether a and b are written in a shared script block,
// so a broad match for one cannot tell them apart.
func SameFamily(a, b Tag) bool {
	fa, ok := families[a]
	return ok && fa == families[b]
}

var (
	ukrainianLetters = []rune("іїєґІЇЄҐ")
	uzbekCyrillic    = []rune("ўқғҳЎҚҒҲ")
	russianLetters   = []rune("ёыэъЁЫЭЪ")

	// Uzbek Latin writes oʻ/gʻ with a turned comma; keyboards substitute the
	// ASCII apostrophe, which also shows up in English (o'clock), so it needs
	// more than one occurrence to count.
	uzbekStrictMarkers = []string{"oʻ", "gʻ", "o‘", "g‘", "oʼ", "gʼ"}
	uzbekLooseMarkers  = []string{"o'", "g'", "o`", "g`"}
)

type rule struct {
	tag   Tag
	match func(string) bool
	broad bool
}

// Order matters: language-unique letters first, then the shared Cyrillic block,
// then Latin markers, then the non-Latin blocks. Kana and Hangul must be ruled
// out before Han, since Japanese text mixes Kana with Han characters.
var rules = []rule{
	{Ukrainian, containsAnyRune(ukrainianLetters), false},
	{Uzbek, containsAnyRune(uzbekCyrillic), false},
	{Russian, containsAnyRune(russianLetters), false},
	{Russian, containsTable(unicode.Cyrillic), true},
	{Uzbek, hasUzbekLatinMarkers, false},
	{Arabic, containsTable(unicode.Arabic), false},
	{Japanese, containsTable(unicode.Hiragana, unicode.Katakana), false},
	{Korean, containsTable(unicode.Hangul), false},
	{Chinese, containsTable(unicode.Han), true},
}

// Detect returns the language of text, or Default when nothing matches.
func Detect(text string) Tag {
	return DetectResult(text).Tag
}

// DetectResult is Detect with the information whether a rule actually matched.
func DetectResult(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Tag: Default}
	}
	for _, r := range rules {
		if r.match(text) {
			return Result{Tag: r.tag, Matched: true, Broad: r.broad}
		}
	}
	return Result{Tag: Default}
}

// ParseHint normalises a BCP 47 style hint ("ru-RU", "uk_UA", "zh-Hans") to a
// supported tag.
func ParseHint(hint string) (Tag, bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return "", false
	}
	parsed, err := xlanguage.Parse(strings.ReplaceAll(hint, "_", "-"))
	if err != nil {
		return "", false
	}
	base, _ := parsed.Base()
	tag := Tag(base.String())
	if !IsSupported(tag) {
		return "", false
	}
	return tag, true
}

func containsAnyRune(set []rune) func(string) bool {
	return func(s string) bool {
		return strings.ContainsAny(s, string(set))
	}
}

func containsTable(tables ...*unicode.RangeTable) func(string) bool {
	return func(s string) bool {
		return strings.ContainsFunc(s, func(r rune) bool {
			return unicode.IsOneOf(tables, r)
		})
	}
}

func hasUzbekLatinMarkers(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range uzbekStrictMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	loose := 0
	for _, m := range uzbekLooseMarkers {
		loose += strings.Count(lower, m)
	}
	return loose >= 2
}
