// Package match implements whole-word keyword matching over normalised chat
// input.
//
// Input is expected to have been passed through Normalize (lower-cased,
// punctuation removed, whitespace collapsed). Keywords are normalised the
// same way on every call, so a keyword such as "what's up" matches the input
// "whats up".
package match

import (
	"strings"
	"unicode"
)

// Normalize lower-cases s, drops every rune that is not a letter, digit,
// underscore or whitespace, and collapses runs of whitespace to one space.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Matches reports whether any keyword occurs in text as a whole word (or
// whole word sequence for multi-word keywords). A keyword never matches a
// fragment of a larger word: "hi" does not match "this".
func Matches(text string, keywords []string) bool {
	return First(text, keywords) != ""
}

// First returns the first keyword, in slice order, that Matches text, or ""
// when none does.
func First(text string, keywords []string) string {
	padded := " " + Normalize(text) + " "
	for _, kw := range keywords {
		k := Normalize(kw)
		if k == "" {
			continue
		}
		if strings.Contains(padded, " "+k+" ") {
			return kw
		}
	}
	return ""
}

// ContainsAny reports whether any phrase occurs in text as a raw substring
// after lower-casing both sides. Used for trigger phrases where partial words
// are intended ("install" also fires on "installation").
func ContainsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
