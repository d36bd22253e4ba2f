// Package assistant holds the natural-language assistant: intent classification,
// entity resolution, the conversational flows and the prompt bridge to the LLM.
// Everything here is deterministic string matching over a context snapshot.
package assistant

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s and strips diacritics so "Serviço" and "servico" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// words splits folded text on anything that is not a letter or digit.
func words(folded string) []string {
	return strings.FieldsFunc(folded, func(r rune) bool { return !isWordRune(r) })
}

// utterance is a user message prepared for matching.
type utterance struct {
	raw    string
	folded string
	words  []string
	padded string // " w1 w2 ... wn " for whole-word phrase lookups
}

func newUtterance(raw string) utterance {
	f := fold(strings.TrimSpace(raw))
	w := words(f)
	return utterance{
		raw:    strings.TrimSpace(raw),
		folded: f,
		words:  w,
		padded: " " + strings.Join(w, " ") + " ",
	}
}

// has reports whether the folded phrase occurs as whole words.
func (u utterance) has(phrase string) bool {
	return strings.Contains(u.padded, " "+phrase+" ")
}

// phraseList is a literal keyword table, folded and word-normalized at init.
type phraseList []string

func phrases(items ...string) phraseList {
	out := make(phraseList, 0, len(items))
	for _, it := range items {
		if p := strings.Join(words(fold(it)), " "); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// match returns the first phrase of l found in u.
func (l phraseList) match(u utterance) (string, bool) {
	for _, p := range l {
		if u.has(p) {
			return p, true
		}
	}
	return "", false
}

func (l phraseList) in(u utterance) bool {
	_, ok := l.match(u)
	return ok
}

// digitsOnly strips the usual separators and reports whether only digits remain.
func digitsOnly(s string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune(" .-/()+", r):
		default:
			return "", false
		}
	}
	return b.String(), b.Len() > 0
}
