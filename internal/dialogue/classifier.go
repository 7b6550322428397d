package dialogue

import (
	"context"
	"log/slog"
	"strings"

	"go-jarvis/internal/llm"
)

// Kind is the routing verdict for an utterance.
type Kind string

const (
	Casual      Kind = "casual"
	NeedsSearch Kind = "search"
)

// Classification is produced and consumed within a single turn.
type Classification struct {
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

// Classifier decides between casual chat and retrieval.
type Classifier struct {
	backend llm.Completer
	tables  *Tables
	logger  *slog.Logger
}

func NewClassifier(backend llm.Completer, tables *Tables, logger *slog.Logger) *Classifier {
	if tables == nil {
		tables = DefaultTables()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{backend: backend, tables: tables, logger: logger.With("component", "classifier")}
}

// Classify asks the backend for a one-word verdict. Only the literal answer
// "casual" yields Casual; anything else needs search. When the backend
// fails the offline heuristic decides.
func (c *Classifier) Classify(ctx context.Context, utterance string) Classification {
	answer, err := ask(ctx, c.backend, AgentClassifier, utterance)
	if err != nil {
		kind := NeedsSearch
		if c.tables.LooksCasual(utterance) {
			kind = Casual
		}
		c.logger.Warn("classifier backend failed, using heuristic", "err", err, "kind", kind)
		return Classification{Kind: kind, Reason: "heuristic"}
	}
	if strings.ToLower(strings.TrimSpace(answer)) == "casual" {
		return Classification{Kind: Casual, Reason: "model"}
	}
	return Classification{Kind: NeedsSearch, Reason: "model: " + answer}
}
