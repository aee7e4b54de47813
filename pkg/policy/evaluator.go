package policy

import (
	"strings"
	"unicode/utf8"
)

const DefaultMaxLength = 200

var DefaultKeywords = []string{"ethereum", "defi", "l2"}

type Config struct {
	MaxLength int      `yaml:"max_length"`
	Keywords  []string `yaml:"keywords"`
}

// Evaluator decides whether a prompt is acceptable. All rules must pass.
type Evaluator struct {
	maxLength int
	keywords  []string
}

// NewEvaluator builds an evaluator. Zero values fall back to the defaults.
func NewEvaluator(cfg *Config) *Evaluator {
	e := &Evaluator{
		maxLength: DefaultMaxLength,
		keywords:  DefaultKeywords,
	}
	if cfg == nil {
		return e
	}
	if cfg.MaxLength > 0 {
		e.maxLength = cfg.MaxLength
	}
	if len(cfg.Keywords) > 0 {
		e.keywords = make([]string, 0, len(cfg.Keywords))
		for _, k := range cfg.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				e.keywords = append(e.keywords, k)
			}
		}
	}
	return e
}

// Evaluate returns the verdict for prompt.
func (e *Evaluator) Evaluate(prompt string) bool {
	return e.Check(prompt).Verdict()
}

// Result carries the outcome of each rule, for logging.
type Result struct {
	LengthOK  bool
	KeywordOK bool
}

func (r Result) Verdict() bool {
	return r.LengthOK && r.KeywordOK
}

func (e *Evaluator) Check(prompt string) Result {
	return Result{
		LengthOK:  utf8.RuneCountInString(prompt) <= e.maxLength,
		KeywordOK: e.hasKeyword(prompt),
	}
}

func (e *Evaluator) hasKeyword(prompt string) bool {
	folded := strings.ToLower(prompt)
	for _, k := range e.keywords {
		if strings.Contains(folded, k) {
			return true
		}
	}
	return false
}
