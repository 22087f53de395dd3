package moderation

import (
	"chat-pipeline/errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/dlclark/regexp2"
	"github.com/samber/lo"
)

type RuleKind string

const (
	// KindRegex matches the whole normalized body.
	KindRegex RuleKind = "regex"
	// KindGlob matches the whole normalized body, '*' and '?' are wildcards.
	KindGlob RuleKind = "glob"
	// KindWords blocks a body containing any of the words anywhere.
	KindWords RuleKind = "words"
)

// RuleSpec is a filter rule as authored in configuration.
type RuleSpec struct {
	Name    string
	Kind    RuleKind
	Pattern string
	Words   []string
}

type Classification struct {
	Blocked bool
	Rule    string
}

var Clean = Classification{}

type matcher interface {
	match(normalized string) (bool, error)
}

type compiledRule struct {
	name    string
	matcher matcher
}

// Filter classifies message bodies. It is immutable and safe for concurrent use.
type Filter struct {
	rules []compiledRule
	log   *slog.Logger
}

// NewFilter compiles every rule up front, a malformed rule is a configuration error.
// matchTimeout bounds a single regex evaluation, zero disables it.
func NewFilter(specs []RuleSpec, matchTimeout time.Duration, log *slog.Logger) (*Filter, error) {
	rules := make([]compiledRule, 0, len(specs))
	for i, spec := range specs {
		m, err := compile(spec, matchTimeout)
		if err != nil {
			return nil, fmt.Errorf("rule #%d (%s): %w: %v", i, spec.Kind, errors.ErrInvalidRule, err)
		}
		rules = append(rules, compiledRule{name: ruleName(spec), matcher: m})
	}
	return &Filter{rules: rules, log: log}, nil
}

// Classify blocks the body on the first rule matching its normalized form.
func (f *Filter) Classify(body string) Classification {
	normalized := Normalize(body)
	for _, r := range f.rules {
		ok, err := r.matcher.match(normalized)
		if err != nil {
			f.log.Warn("Filter rule evaluation failed, rule skipped", "rule", r.name, "error", err)
			continue
		}
		if ok {
			return Classification{Blocked: true, Rule: r.name}
		}
	}
	return Clean
}

func (f *Filter) Len() int {
	return len(f.rules)
}

func compile(spec RuleSpec, matchTimeout time.Duration) (matcher, error) {
	switch spec.Kind {
	case KindRegex, "":
		return newRegexMatcher(spec.Pattern, matchTimeout)
	case KindGlob:
		return newRegexMatcher(globToRegex(NormalizePattern(spec.Pattern)), matchTimeout)
	case KindWords:
		return newWordsMatcher(spec.Words)
	default:
		return nil, fmt.Errorf("unknown kind %q", spec.Kind)
	}
}

func ruleName(spec RuleSpec) string {
	if spec.Name != "" {
		return spec.Name
	}
	if spec.Kind == KindWords {
		return fmt.Sprintf("%s:%s", KindWords, strings.Join(spec.Words, ","))
	}
	kind := spec.Kind
	if kind == "" {
		kind = KindRegex
	}
	return fmt.Sprintf("%s:%s", kind, spec.Pattern)
}

type regexMatcher struct {
	re *regexp2.Regexp
}

// newRegexMatcher anchors the pattern on both ends, glob and regex rules share it.
func newRegexMatcher(pattern string, matchTimeout time.Duration) (regexMatcher, error) {
	if pattern == "" {
		return regexMatcher{}, fmt.Errorf("empty pattern")
	}
	re, err := regexp2.Compile(`\A(?:`+pattern+`)\z`, regexp2.IgnoreCase)
	if err != nil {
		return regexMatcher{}, err
	}
	if matchTimeout > 0 {
		re.MatchTimeout = matchTimeout
	}
	return regexMatcher{re: re}, nil
}

func (m regexMatcher) match(normalized string) (bool, error) {
	return m.re.MatchString(normalized)
}

type wordsMatcher struct {
	machine *goahocorasick.Machine
}

// newWordsMatcher initializes the Aho-Corasick automaton with the normalized words.
func newWordsMatcher(words []string) (wordsMatcher, error) {
	normalized := lo.Uniq(lo.FilterMap(words, func(w string, _ int) (string, bool) {
		n := NormalizePattern(w)
		return n, n != ""
	}))
	if len(normalized) == 0 {
		return wordsMatcher{}, errors.ErrEmptyWords
	}
	slices.Sort(normalized)

	patterns := lo.Map(normalized, func(w string, _ int) []rune { return []rune(w) })
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return wordsMatcher{}, err
	}
	return wordsMatcher{machine: m}, nil
}

func (m wordsMatcher) match(normalized string) (bool, error) {
	if normalized == "" {
		return false, nil
	}
	return len(m.machine.MultiPatternSearch([]rune(normalized), true)) > 0, nil
}

// globToRegex translates '*' and '?' and keeps bracket expressions, everything else is literal.
func globToRegex(glob string) string {
	var b strings.Builder
	runes := []rune(glob)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			end := closingBracket(runes, i)
			if end < 0 {
				b.WriteString(regexp2.Escape(string(r)))
				continue
			}
			class := string(runes[i+1 : end])
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i = end
		default:
			b.WriteString(regexp2.Escape(string(r)))
		}
	}
	return b.String()
}

func closingBracket(runes []rune, open int) int {
	for j := open + 1; j < len(runes); j++ {
		if runes[j] == ']' && j > open+1 {
			return j
		}
	}
	return -1
}
