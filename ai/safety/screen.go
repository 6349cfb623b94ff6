// Package safety implements the stage-1 prompt-injection screen.
//
// The detector is deliberately a cheap, rule-based pass: a denylist of known
// jailbreak phrases, structural heuristics for prompt-template smuggling, and
// an instruction-density check, combined into a threshold score. It sits
// behind the Screener interface so a trained classifier can replace it
// without touching the pipeline.
package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the screen result for one message.
type Verdict struct {
	Flagged bool
	Score   float64
	Detail  string
}

// Screener classifies raw message text as adversarial or clean.
type Screener interface {
	Screen(text string) Verdict
}

// Weights per rule group. The score is the sum of fired rules; reaching
// DefaultThreshold flags the message.
const (
	denylistWeight   = 1.0
	structuralWeight = 0.5
	densityWeight    = 0.5

	DefaultThreshold = 1.0
)

// compiledPattern holds a raw phrase alongside its pre-compiled regex
// (nil for plain substring patterns).
type compiledPattern struct {
	raw   string
	regex *regexp.Regexp
}

// Known jailbreak / override phrases. Matched case-insensitively as
// substrings of the normalized text.
var denylistPhrases = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard previous instructions",
	"ignore the above",
	"reveal system prompt",
	"reveal your system prompt",
	"show me your instructions",
	"print your instructions",
	"system prompt",
	"developer mode",
	"do anything now",
	"jailbreak",
}

// Role-override imperatives ("you are now a ...", "act as ...",
// "pretend to be ...", "from now on you ...").
var roleOverridePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\byou are now\b`),
	regexp.MustCompile(`(?i)\bact as (?:a|an|the)\b`),
	regexp.MustCompile(`(?i)\bpretend (?:to be|you are)\b`),
	regexp.MustCompile(`(?i)\bfrom now on,? you\b`),
	regexp.MustCompile(`(?i)\bnew instructions?:`),
}

// Tokens that resemble the downstream prompt template delimiters.
var delimiterTokens = []string{
	"```",
	"<|",
	"|>",
	"[system]",
	"[/inst]",
	"<<sys>>",
	"### instruction",
	"### system",
}

// ruleScreener is the stage-1 implementation.
type ruleScreener struct {
	denylist  []compiledPattern
	threshold float64
}

// NewScreener creates the rule-based screener with the default threshold.
func NewScreener() Screener {
	return NewScreenerWithThreshold(DefaultThreshold)
}

// NewScreenerWithThreshold creates the rule-based screener with a custom
// flagging threshold.
func NewScreenerWithThreshold(threshold float64) Screener {
	patterns := make([]compiledPattern, 0, len(denylistPhrases))
	for _, p := range denylistPhrases {
		patterns = append(patterns, compiledPattern{raw: p})
	}
	return &ruleScreener{
		denylist:  patterns,
		threshold: threshold,
	}
}

func (s *ruleScreener) Screen(text string) Verdict {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Verdict{Detail: "empty text"}
	}

	var score float64
	var fired []string

	for _, p := range s.denylist {
		if strings.Contains(normalized, p.raw) {
			score += denylistWeight
			fired = append(fired, "denylist:"+p.raw)
			break // one denylist hit is enough, do not stack
		}
	}

	for _, re := range roleOverridePatterns {
		if re.MatchString(text) {
			score += denylistWeight
			fired = append(fired, "role_override:"+re.String())
			break
		}
	}

	for _, token := range delimiterTokens {
		if strings.Contains(normalized, token) {
			score += structuralWeight
			fired = append(fired, "delimiter:"+token)
			break
		}
	}

	if density := imperativeDensity(normalized); density > 0.5 && len(normalized) > 80 {
		score += densityWeight
		fired = append(fired, fmt.Sprintf("imperative_density:%.2f", density))
	}

	verdict := Verdict{
		Flagged: score >= s.threshold,
		Score:   score,
	}
	if len(fired) > 0 {
		verdict.Detail = strings.Join(fired, "; ")
	} else {
		verdict.Detail = "no rules fired"
	}
	return verdict
}

// Imperative verbs that open instruction clauses. A message consisting
// mostly of such clauses is an unusually dense instruction sequence for a
// support inquiry.
var imperativeVerbs = map[string]bool{
	"ignore": true, "disregard": true, "forget": true, "reveal": true,
	"print": true, "output": true, "repeat": true, "translate": true,
	"execute": true, "run": true, "delete": true, "override": true,
	"bypass": true, "disable": true,
}

// imperativeDensity returns the fraction of sentences that start with an
// imperative verb from the instruction vocabulary.
func imperativeDensity(text string) float64 {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n' || r == ';'
	})
	if len(sentences) == 0 {
		return 0
	}

	imperative := 0
	for _, sentence := range sentences {
		words := strings.Fields(strings.TrimSpace(sentence))
		if len(words) == 0 {
			continue
		}
		if imperativeVerbs[strings.Trim(words[0], ",:")] {
			imperative++
		}
	}
	return float64(imperative) / float64(len(sentences))
}
