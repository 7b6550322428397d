package speech

import (
	"regexp"
	"strings"
)

var (
	cjkPattern    = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
	numberPattern = regexp.MustCompile(`\b\d+\b`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

var numberWords = map[string]string{
	"0": "zero", "1": "one", "2": "two", "3": "three", "4": "four", "5": "five",
	"6": "six", "7": "seven", "8": "eight", "9": "nine", "10": "ten",
	"11": "eleven", "12": "twelve", "13": "thirteen", "14": "fourteen", "15": "fifteen",
	"16": "sixteen", "17": "seventeen", "18": "eighteen", "19": "nineteen",
	"20": "twenty", "21": "twenty one", "22": "twenty two", "23": "twenty three",
	"24": "twenty four", "25": "twenty five", "26": "twenty six", "27": "twenty seven",
	"28": "twenty eight", "29": "twenty nine", "30": "thirty", "31": "thirty one",
	"2023": "twenty twenty three", "2024": "twenty twenty four", "2025": "twenty twenty five",
	"2026": "twenty twenty six", "2027": "twenty twenty seven",
}

// Normalize prepares text for an English voice: CJK ideographs are removed,
// small numbers and recent years are spelled out and whitespace collapses.
// Digits that are part of a clock time are left alone.
func Normalize(text string) string {
	s := cjkPattern.ReplaceAllString(text, "")
	s = replaceNumbers(s)
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

func replaceNumbers(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range numberPattern.FindAllStringIndex(s, -1) {
		start, end := loc[0], loc[1]
		word, ok := numberWords[s[start:end]]
		if !ok || (start > 0 && s[start-1] == ':') || (end < len(s) && s[end] == ':') {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString(word)
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}
