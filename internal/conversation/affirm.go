package conversation

import (
	"strings"
	"unicode"
)

var affirmations = map[string]struct{}{}

func init() {
	for _, words := range [][]string{
		{"yes", "y", "yep", "yeah", "ok", "okay", "sure", "confirm", "create", "go ahead"},
		{"да", "ага", "конечно", "создать", "создавай", "ок", "давай"},
		{"так", "звісно", "гаразд", "створити", "створюй"},
		{"ha", "xa", "ҳа", "албатта", "albatta", "mayli", "майли", "yarat"},
		{"نعم", "أجل", "موافق", "حسنا", "أنشئ"},
		{"是", "是的", "好", "好的", "确认", "可以", "创建"},
		{"네", "예", "응", "좋아요", "확인", "생성"},
		{"はい", "ええ", "うん", "お願いします", "作成", "作成して"},
	} {
		for _, w := range words {
			affirmations[w] = struct{}{}
		}
	}
}

// isAffirmative reports whether input is a plain "yes" in any supported
// language. Anything longer or hedged is treated as not confirmed.
func isAffirmative(input string) bool {
	normalized := strings.ToLower(strings.TrimFunc(input, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}))
	normalized = strings.Join(strings.Fields(normalized), " ")
	if normalized == "" {
		return false
	}

	_, ok := affirmations[normalized]
	return ok
}
