// Package text enforces the length policy applied to narration text before any
// provider call is paid for.
package text

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ellipsis is appended when text is cut at a word boundary.
const Ellipsis = "..."

// ReasonTextRequired is the invalid-outcome reason for missing text.
const ReasonTextRequired = "text required"

// minSentenceCut is the shortest sentence-boundary cut worth keeping. Anything
// at or below it falls back to a word-boundary cut.
const minSentenceCut = 10

const sentenceTerminators = ".!?"

// Warning formats.
const (
	warnFmtTruncated = "text length (%d) exceeds maximum (%d); truncated to %d characters"
	warnFmtLong      = "text length (%d) exceeds recommended length (%d); consider splitting it into smaller requests"
)

// Outcome is the result of Validate. When Valid is false only Reason is set;
// when Valid is true Text holds the text to send and Warning may be set.
type Outcome struct {
	Valid   bool
	Text    string
	Warning string
	Reason  string
}

// Validate applies the length policy to text. Lengths are counted in runes.
//
// A non-positive maxLength disables the length checks and a warningLength above
// maxLength is treated as maxLength.
func Validate(text string, maxLength, warningLength int) Outcome {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Outcome{Valid: false, Text: "", Warning: "", Reason: ReasonTextRequired}
	}

	if maxLength <= 0 {
		return Outcome{Valid: true, Text: trimmed, Warning: "", Reason: ""}
	}

	if warningLength > maxLength {
		warningLength = maxLength
	}

	length := len([]rune(trimmed))

	if length > maxLength {
		truncated := Truncate(trimmed, maxLength)

		return Outcome{
			Valid:   true,
			Text:    truncated,
			Warning: fmt.Sprintf(warnFmtTruncated, length, maxLength, len([]rune(truncated))),
			Reason:  "",
		}
	}

	if warningLength > 0 && length > warningLength {
		return Outcome{
			Valid:   true,
			Text:    trimmed,
			Warning: fmt.Sprintf(warnFmtLong, length, warningLength),
			Reason:  "",
		}
	}

	return Outcome{Valid: true, Text: trimmed, Warning: "", Reason: ""}
}

// Truncate shortens text to at most maxLength runes, preferring to end on a
// sentence. The sentence cut ends with a period. The word cut ends with Ellipsis,
// which counts toward maxLength.
func Truncate(text string, maxLength int) string {
	runes := []rune(text)
	if maxLength <= 0 || len(runes) <= maxLength {
		return text
	}

	window := runes[:maxLength]

	sentenceCut, found := cutAtSentence(window)
	if found && len([]rune(sentenceCut)) > minSentenceCut {
		return sentenceCut
	}

	return cutAtWord(window)
}

// cutAtSentence keeps everything before the last run of terminators in window
// and closes it with a period.
func cutAtSentence(window []rune) (string, bool) {
	last := -1

	for index := len(window) - 1; index >= 0; index-- {
		if strings.ContainsRune(sentenceTerminators, window[index]) {
			last = index

			break
		}
	}

	if last < 0 {
		return "", false
	}

	head := strings.TrimRightFunc(string(window[:last]), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(sentenceTerminators, r)
	})
	if head == "" {
		return "", false
	}

	return head + ".", true
}

// cutAtWord drops the trailing partial word from the part of window that leaves
// room for Ellipsis. A first word that does not fit leaves Ellipsis alone. When
// window cannot hold Ellipsis at all it is cut as is.
func cutAtWord(window []rune) string {
	budget := len(window) - utf8.RuneCountInString(Ellipsis)
	if budget <= 0 {
		return string(window)
	}

	head := window[:budget]
	last := -1

	for index := len(head) - 1; index >= 0; index-- {
		if unicode.IsSpace(head[index]) {
			last = index

			break
		}
	}

	if last < 0 {
		return Ellipsis
	}

	return strings.TrimRightFunc(string(head[:last]), unicode.IsSpace) + Ellipsis
}
