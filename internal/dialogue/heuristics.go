package dialogue

import (
	"regexp"
	"strings"
)

var (
	urlPattern        = regexp.MustCompile(`https?://[^\s]+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Hedging reports whether answer contains a phrase showing the model could
// not really answer. The matched phrase is returned for logging.
func (t *Tables) Hedging(answer string) (string, bool) {
	return containsAny(answer, t.HedgePhrases)
}

// TimeSensitive reports whether question mentions a topic whose answer
// goes stale quickly.
func (t *Tables) TimeSensitive(question string) (string, bool) {
	return containsAny(question, t.TopicKeywords)
}

// SearchDenied reports an explicit "don't search" from the user.
func (t *Tables) SearchDenied(utterance string) bool {
	_, ok := containsAny(utterance, t.SearchDenials)
	return ok
}

// SearchRequested reports an explicit request to look something up.
func (t *Tables) SearchRequested(utterance string) bool {
	_, ok := containsAny(utterance, t.SearchRequests)
	return ok
}

// IsExit reports whether utterance contains an exit command as a whole word.
func (t *Tables) IsExit(utterance string) bool {
	return t.exitRe != nil && t.exitRe.MatchString(utterance)
}

// IsClear reports whether utterance asks to wipe the conversation memory.
func (t *Tables) IsClear(utterance string) bool {
	return t.clearRe != nil && t.clearRe.MatchString(utterance)
}

// LooksCasual is the offline classifier: short utterances and utterances
// without any interrogative marker are casual.
func (t *Tables) LooksCasual(utterance string) bool {
	if len(strings.Fields(utterance)) <= 5 {
		return true
	}
	_, question := containsAny(utterance, t.QuestionWords)
	return !question
}

// extractURL finds the first http(s) URL in prompt and returns the prompt
// without it.
func extractURL(prompt string) (string, string) {
	found := urlPattern.FindString(prompt)
	if found == "" {
		return prompt, ""
	}
	cleaned := urlPattern.ReplaceAllString(prompt, " ")
	cleaned = strings.TrimSpace(whitespacePattern.ReplaceAllString(cleaned, " "))
	return cleaned, strings.TrimRight(found, ".,;:!?)\"'")
}
