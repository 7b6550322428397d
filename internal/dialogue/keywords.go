package dialogue

import (
	"context"
	"log/slog"
	"strings"

	"go-jarvis/internal/llm"
)

// KeywordExtractor reduces a question to search engine keywords.
type KeywordExtractor struct {
	backend llm.Completer
	logger  *slog.Logger
}

func NewKeywordExtractor(backend llm.Completer, logger *slog.Logger) *KeywordExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeywordExtractor{backend: backend, logger: logger.With("component", "keywords")}
}

// Extract returns a comma-separated keyword string. convContext is the
// rendered recent conversation and may be empty. On backend failure the
// question itself is returned.
func (k *KeywordExtractor) Extract(ctx context.Context, question, convContext string) string {
	input := question
	if convContext != "" {
		input = "Conversation so far:\n" + convContext + "\n\nQuestion: " + question
	}
	keywords, err := ask(ctx, k.backend, AgentKeywordExtractor, input)
	if err != nil {
		k.logger.Warn("keyword extraction failed, searching with the question", "err", err)
		return question
	}
	return keywords
}

// ExtractQuestion isolates the core question of a spoken utterance. On
// backend failure the utterance is returned.
func (k *KeywordExtractor) ExtractQuestion(ctx context.Context, utterance string) string {
	question, err := ask(ctx, k.backend, AgentQuestionExtractor, utterance)
	if err != nil {
		k.logger.Warn("question extraction failed, using utterance", "err", err)
		return utterance
	}
	return question
}

// NormalizeKeywords makes an extractor result search-engine ready.
func NormalizeKeywords(keywords string) string {
	s := strings.ReplaceAll(keywords, ",", " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
