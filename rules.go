package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// RuleKind selects the transformation a RenameRule performs.
type RuleKind string

const (
	RuleLiteral    RuleKind = "literal"
	RuleRegex      RuleKind = "regex"
	RuleSmartSpace RuleKind = "smart_space"
	RuleDigitSpace RuleKind = "digit_space"
)

// RenameRule is one step of a rename recipe. Rules run in list order over a
// file's stem, each feeding its output to the next. The persisted form is
// "match|replacement|kind|case_sensitive"; because "|" is the field
// delimiter it cannot appear inside match or replacement (regex alternation
// needs a character class instead).
type RenameRule struct {
	Match         string
	Replacement   string
	Kind          RuleKind
	CaseSensitive bool

	re *regexp.Regexp
}

// compile prepares the matcher for literal(ci) and regex kinds. Compile
// errors surface per file at apply time, so a bad pattern spoils files, not
// the whole batch.
func (r *RenameRule) compile() error {
	if r.re != nil {
		return nil
	}
	switch r.Kind {
	case RuleLiteral:
		if r.CaseSensitive {
			return nil
		}
		r.re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(r.Match))
	case RuleRegex:
		expr := r.Match
		if !r.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		r.re = re
	}
	return nil
}

// separator is what smart_space/digit_space insert at boundaries.
func (r *RenameRule) separator() string {
	if r.Replacement == "" {
		return " "
	}
	return r.Replacement
}

// Apply transforms name according to the rule.
func (r *RenameRule) Apply(name string) (string, error) {
	switch r.Kind {
	case RuleLiteral:
		if r.CaseSensitive {
			return strings.ReplaceAll(name, r.Match, r.Replacement), nil
		}
		if err := r.compile(); err != nil {
			return "", err
		}
		return r.re.ReplaceAllLiteralString(name, r.Replacement), nil
	case RuleRegex:
		if err := r.compile(); err != nil {
			return "", err
		}
		return r.re.ReplaceAllString(name, r.Replacement), nil
	case RuleSmartSpace:
		return insertSeparators(name, r.separator(), smartBoundary), nil
	case RuleDigitSpace:
		return insertSeparators(name, r.separator(), digitBoundary), nil
	}
	return "", fmt.Errorf("%w: unknown rule kind %q", ErrInvalidPattern, r.Kind)
}

// String renders the persisted delimiter form, the inverse of ParseRule.
func (r RenameRule) String() string {
	return fmt.Sprintf("%s|%s|%s|%t", r.Match, r.Replacement, r.Kind, r.CaseSensitive)
}

// smartBoundary marks letter/digit transitions plus camel-case steps.
// Separators and punctuation never trigger, so an already spaced name passes
// through unchanged.
func smartBoundary(prev, next rune) bool {
	if unicode.IsLetter(prev) && unicode.IsDigit(next) {
		return true
	}
	if unicode.IsDigit(prev) && unicode.IsLetter(next) {
		return true
	}
	return unicode.IsLower(prev) && unicode.IsUpper(next)
}

// digitBoundary marks letter/digit transitions in both directions only.
func digitBoundary(prev, next rune) bool {
	if unicode.IsLetter(prev) && unicode.IsDigit(next) {
		return true
	}
	return unicode.IsDigit(prev) && unicode.IsLetter(next)
}

func insertSeparators(name, sep string, boundary func(prev, next rune) bool) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 8)
	for i, r := range runes {
		if i > 0 && boundary(runes[i-1], r) {
			b.WriteString(sep)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ApplyRules folds the rules in order over the stem of name and reattaches
// the extension unchanged. Dotfiles like ".bashrc" have no stem to speak
// of, so the whole name is used.
func ApplyRules(name string, rules []RenameRule) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem, ext = name, ""
	}
	for i := range rules {
		out, err := rules[i].Apply(stem)
		if err != nil {
			return "", fmt.Errorf("rule %d (%s): %w", i+1, rules[i].Kind, err)
		}
		stem = out
	}
	return stem + ext, nil
}

// ParseRule decodes one "match|replacement|kind|case_sensitive" line. Match
// and replacement are taken verbatim (a replacement of " " is meaningful),
// the trailing fields tolerate surrounding spaces.
func ParseRule(line string) (RenameRule, error) {
	fields := strings.Split(line, "|")
	if len(fields) != 4 {
		return RenameRule{}, fmt.Errorf("rule %q: want 4 |-separated fields, got %d", line, len(fields))
	}
	kind := RuleKind(strings.TrimSpace(fields[2]))
	switch kind {
	case RuleLiteral, RuleRegex, RuleSmartSpace, RuleDigitSpace:
	default:
		return RenameRule{}, fmt.Errorf("rule %q: unknown kind %q", line, fields[2])
	}
	caseSensitive, err := strconv.ParseBool(strings.TrimSpace(fields[3]))
	if err != nil {
		return RenameRule{}, fmt.Errorf("rule %q: case_sensitive: %v", line, err)
	}
	return RenameRule{
		Match:         fields[0],
		Replacement:   fields[1],
		Kind:          kind,
		CaseSensitive: caseSensitive,
	}, nil
}

// ParseRuleList reads one rule per line, skipping blanks and # comments.
func ParseRuleList(r io.Reader) ([]RenameRule, error) {
	var rules []RenameRule
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		rule, err := ParseRule(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// LoadRuleFile reads a rule list from disk.
func LoadRuleFile(path string) ([]RenameRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()
	rules, err := ParseRuleList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}
