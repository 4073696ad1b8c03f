// Package kana provides the pure string transforms used before comparing
// readings: katakana to hiragana mapping, separator-dot and parenthesis
// stripping, and kana character set extraction.
package kana

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const (
	// MiddleDot separates name parts in readings and surfaces (e.g. "ジョン・スミス").
	MiddleDot = '・'
	// LongVowel is the prolonged sound mark, shared by both scripts.
	LongVowel = 'ー'

	hiraganaFirst = 0x3041 // ぁ
	hiraganaLast  = 0x3096 // ゖ
	katakanaFirst = 0x30A1 // ァ
	katakanaLast  = 0x30F6 // ヶ
	kanaOffset    = katakanaFirst - hiraganaFirst
)

var (
	dotSet   = runes.Predicate(func(r rune) bool { return r == MiddleDot })
	parenSet = runes.Predicate(func(r rune) bool { return r == '(' || r == ')' })
)

// IsHiragana reports whether r is in the hiragana syllable range.
func IsHiragana(r rune) bool {
	return r >= hiraganaFirst && r <= hiraganaLast
}

// IsKatakana reports whether r is in the katakana syllable range (small kana included).
func IsKatakana(r rune) bool {
	return r >= katakanaFirst && r <= katakanaLast
}

// IsKana reports whether r is hiragana, katakana, or the long vowel mark.
func IsKana(r rune) bool {
	return IsHiragana(r) || IsKatakana(r) || r == LongVowel
}

// IsKanji reports whether r is a CJK unified ideograph.
func IsKanji(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

// IsWordRune reports whether r counts as a word character: any Unicode letter
// or number, underscore, kana, or kanji. Everything else is a symbol.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || IsKana(r) || IsKanji(r)
}

// HasSymbol reports whether s contains at least one non-word rune.
func HasSymbol(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !IsWordRune(r) }) >= 0
}

func toHiraganaRune(r rune) rune {
	if IsKatakana(r) {
		return r - kanaOffset
	}
	return r
}

// KatakanaToHiragana removes every middle dot and maps each katakana rune to
// its hiragana counterpart. Other runes, the long vowel mark included, pass
// through unchanged. Applying it twice is the same as applying it once.
func KatakanaToHiragana(s string) string {
	if s == "" {
		return ""
	}
	// Chain keeps per-call buffers, so it is built fresh for each conversion.
	t := transform.Chain(runes.Remove(dotSet), runes.Map(toHiraganaRune))
	out, _, err := transform.String(t, s)
	if err != nil {
		return mapFallback(s)
	}
	return out
}

func mapFallback(s string) string {
	return strings.Map(func(r rune) rune {
		if r == MiddleDot {
			return -1
		}
		return toHiraganaRune(r)
	}, s)
}

// StripParens removes every '(' and ')' and keeps whatever was inside.
func StripParens(s string) string {
	if !strings.ContainsAny(s, "()") {
		return s
	}
	out, _, err := transform.String(runes.Remove(parenSet), s)
	if err != nil {
		return strings.NewReplacer("(", "", ")", "").Replace(s)
	}
	return out
}

// StripDots removes every middle dot.
func StripDots(s string) string {
	return strings.ReplaceAll(s, string(MiddleDot), "")
}

// Set is a set of kana runes. Only membership matters.
type Set map[rune]struct{}

// ExtractKana returns the distinct kana runes of s.
func ExtractKana(s string) Set {
	set := make(Set)
	for _, r := range s {
		if IsKana(r) {
			set[r] = struct{}{}
		}
	}
	return set
}

// Has reports whether r is in the set.
func (s Set) Has(r rune) bool {
	_, ok := s[r]
	return ok
}

// Difference returns the runes of s that are not in other.
func (s Set) Difference(other Set) Set {
	out := make(Set)
	for r := range s {
		if !other.Has(r) {
			out[r] = struct{}{}
		}
	}
	return out
}

// Sorted returns the runes of the set in code point order.
func (s Set) Sorted() []rune {
	out := make([]rune, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders the set as its sorted runes, e.g. "かん".
func (s Set) String() string {
	return string(s.Sorted())
}
