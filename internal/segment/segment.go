// Package segment tokenizes query text for lexical matching and
// prefix splitting.
//
// The policy is language-agnostic and deterministic: CJK characters
// (Han, Hiragana, Katakana, Hangul) are emitted as single-rune tokens,
// the unigram treatment most CJK analyzers apply, while Latin script
// and digits group into runs delimited by whitespace and punctuation.
// A mixed query such as "北京2024年sales数据" therefore yields
// [北 京 2024 年 sales 数 据].
package segment

import (
	"strings"
	"unicode"
)

// Token is one tokenization unit with its byte position in the
// original string.
type Token struct {
	// Text is the original substring, case preserved.
	Text string

	// Start is the byte offset of the token in the input.
	Start int

	// End is the byte offset one past the token.
	End int
}

// isCJK reports whether r belongs to one of the scripts the unigram
// policy applies to: Han, Hiragana, Katakana, or Hangul.
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r)
}

// Tokens splits s into tokens under the unigram-CJK policy.
func Tokens(s string) []Token {
	var tokens []Token
	runStart := -1

	flush := func(end int) {
		if runStart >= 0 {
			tokens = append(tokens, Token{Text: s[runStart:end], Start: runStart, End: end})
			runStart = -1
		}
	}

	for i, r := range s {
		switch {
		case isCJK(r):
			flush(i)
			end := i + len(string(r))
			tokens = append(tokens, Token{Text: s[i:end], Start: i, End: end})
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if runStart < 0 {
				runStart = i
			}
		default:
			flush(i)
		}
	}
	flush(len(s))

	return tokens
}

// Fields returns just the token texts of s.
func Fields(s string) []string {
	tokens := Tokens(s)
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

// Normalize folds a token for matching: lowercased with surrounding
// whitespace removed. CJK runes pass through unchanged.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SplitTail separates a query into its stable prefix and trailing
// token. The prefix keeps the original separators so that direct
// concatenation with a completed tail reconstructs natural text.
// count is the total number of tokens in the query.
func SplitTail(s string) (prefix, tail string, count int) {
	tokens := Tokens(s)
	if len(tokens) == 0 {
		return "", "", 0
	}
	last := tokens[len(tokens)-1]
	return s[:last.Start], last.Text, len(tokens)
}
