package classify

import (
	"regexp"
	"strings"
	"unicode"
)

// Keyword хранит скомпилированное правило поиска одного ключевого слова.
//
// Слова из букв, цифр и подчёркивания в языках с пробелами между словами
// ищутся по границам слова (границей считается любой символ, не являющийся буквой,
// цифрой или подчёркиванием в смысле Unicode). Всё остальное, включая
// ключи на китайском, японском, корейском и тайском, а также ключи с
// пунктуацией и пробелами, ищется как подстрока без учёта регистра.
type Keyword struct {
	Raw      string
	lower    string
	boundary *regexp.Regexp
}

// NewKeyword компилирует ключевое слово; пустые строки дают ok=false.
func NewKeyword(raw string) (Keyword, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Keyword{}, false
	}
	kw := Keyword{Raw: trimmed, lower: strings.ToLower(trimmed)}
	if isWordLike(trimmed) {
		kw.boundary = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(trimmed) + `(?:$|[^\p{L}\p{N}_])`)
	}
	return kw, true
}

// Match сообщает, встречается ли ключ в тексте.
func (k Keyword) Match(text string) bool {
	if k.lower == "" {
		return false
	}
	if k.boundary != nil {
		return k.boundary.MatchString(text)
	}
	return strings.Contains(strings.ToLower(text), k.lower)
}

// Keywords представляет набор ключевых слов.
type Keywords []Keyword

// CompileKeywords компилирует список, пропуская пустые и повторяющиеся значения.
func CompileKeywords(raw []string) Keywords {
	seen := make(map[string]struct{}, len(raw))
	out := make(Keywords, 0, len(raw))
	for _, item := range raw {
		kw, ok := NewKeyword(item)
		if !ok {
			continue
		}
		if _, dup := seen[kw.lower]; dup {
			continue
		}
		seen[kw.lower] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// MatchAny возвращает первое совпавшее ключевое слово.
func (ks Keywords) MatchAny(text string) (string, bool) {
	for _, kw := range ks {
		if kw.Match(text) {
			return kw.Raw, true
		}
	}
	return "", false
}

func isWordLike(s string) bool {
	for _, r := range s {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
		if isScriptWithoutSpaces(r) {
			return false
		}
	}
	return true
}

func isScriptWithoutSpaces(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul, unicode.Thai, unicode.Lao, unicode.Khmer, unicode.Myanmar)
}
