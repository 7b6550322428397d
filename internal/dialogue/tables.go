package dialogue

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var tablesYAML []byte

// CityZone maps a spoken place name to an IANA time zone.
type CityZone struct {
	Name string `yaml:"name"`
	Zone string `yaml:"zone"`
}

// Tables holds every fixed word list used for routing. Detectors built on
// these lists are literal case-insensitive checks.
type Tables struct {
	Version        int                 `yaml:"version"`
	QuestionWords  []string            `yaml:"question_words"`
	HedgePhrases   []string            `yaml:"hedge_phrases"`
	TopicKeywords  []string            `yaml:"topic_keywords"`
	SearchDenials  []string            `yaml:"search_denials"`
	SearchRequests []string            `yaml:"search_requests"`
	ExitCommands   []string            `yaml:"exit_commands"`
	ClearCommands  []string            `yaml:"clear_commands"`
	Cities         map[string]CityZone `yaml:"cities"`

	exitRe  *regexp.Regexp
	clearRe *regexp.Regexp
}

// ParseTables decodes a YAML table set.
func ParseTables(raw []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse routing tables: %w", err)
	}
	for _, list := range [][]string{t.QuestionWords, t.HedgePhrases, t.TopicKeywords, t.SearchDenials, t.SearchRequests, t.ExitCommands, t.ClearCommands} {
		for i := range list {
			list[i] = strings.ToLower(list[i])
		}
	}
	lowered := make(map[string]CityZone, len(t.Cities))
	for k, v := range t.Cities {
		lowered[strings.ToLower(k)] = v
	}
	t.Cities = lowered
	t.exitRe = wordsPattern(t.ExitCommands)
	t.clearRe = wordsPattern(t.ClearCommands)
	return &t, nil
}

var (
	defaultTables     *Tables
	defaultTablesOnce sync.Once
)

// DefaultTables returns the embedded table set.
func DefaultTables() *Tables {
	defaultTablesOnce.Do(func() {
		t, err := ParseTables(tablesYAML)
		if err != nil {
			panic(err)
		}
		defaultTables = t
	})
	return defaultTables
}

// wordsPattern matches any of phrases on word boundaries.
func wordsPattern(phrases []string) *regexp.Regexp {
	if len(phrases) == 0 {
		return nil
	}
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(p), " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func containsAny(text string, needles []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, n := range needles {
		if n != "" && strings.Contains(lower, n) {
			return n, true
		}
	}
	return "", false
}
