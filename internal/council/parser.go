package council

import (
	"regexp"
	"sort"
	"strings"
)

// RankingHeader introduces the ranking section of an evaluation.
const RankingHeader = "FINAL RANKING:"

var rankingHeaderPattern = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(RankingHeader))

// RankingParser recovers an ordered list of labels from free-form evaluator
// output. It is immutable once built and safe for concurrent use.
type RankingParser struct {
	labels   *regexp.Regexp
	suffixes *regexp.Regexp
	bySuffix map[string]string
}

// NewRankingParser compiles a parser for the given label set.
func NewRankingParser(labels []string) *RankingParser {
	var valid []string
	for _, label := range labels {
		if label != "" {
			valid = append(valid, label)
		}
	}
	if len(valid) == 0 {
		return &RankingParser{}
	}

	p := &RankingParser{bySuffix: make(map[string]string, len(valid))}
	p.labels = compileAlternation(valid, "", "")

	// Bare letters ("C, then A") are only trusted when every label has a
	// distinct suffix after its last space.
	suffixes := make([]string, 0, len(valid))
	for _, label := range valid {
		i := strings.LastIndex(label, " ")
		if i < 0 || i == len(label)-1 {
			return p
		}
		suffix := label[i+1:]
		if _, dup := p.bySuffix[suffix]; dup {
			return p
		}
		p.bySuffix[suffix] = label
		suffixes = append(suffixes, suffix)
	}
	p.suffixes = compileAlternation(suffixes, `\b`, `\b`)
	return p
}

// Parse returns the labels found in text in order of appearance, confined to
// the text after the first FINAL RANKING: header when there is one. raw is
// always text. Parse never fails; on any internal problem it returns an empty
// ranking.
func (p *RankingParser) Parse(text string) (ranked []string, raw string) {
	raw = text
	ranked = []string{}
	defer func() {
		if recover() != nil {
			ranked = []string{}
		}
	}()

	if p == nil || p.labels == nil {
		return ranked, raw
	}

	span := text
	if loc := rankingHeaderPattern.FindStringIndex(text); loc != nil {
		span = text[loc[1]:]
	}

	if found := p.labels.FindAllString(span, -1); len(found) > 0 {
		return found, raw
	}

	if p.suffixes != nil {
		ranked = p.bareLetters(span)
	}
	return ranked, raw
}

// proseLetters are bare suffixes that are also English words ("A solid
// answer", "I think").
var proseLetters = map[string]bool{"A": true, "I": true}

// proseFollower matches the start of a lowercase word after a letter.
var proseFollower = regexp.MustCompile(`^\s+\p{Ll}`)

// minBareLetters is the number of distinct bare letters a ranking needs.
const minBareLetters = 2

// bareLetters returns the labels named by standalone suffix letters. A prose
// letter followed by a lowercase word is skipped, and fewer than
// minBareLetters distinct letters yields no ranking.
func (p *RankingParser) bareLetters(span string) []string {
	ranked := []string{}
	distinct := make(map[string]bool)
	for _, loc := range p.suffixes.FindAllStringIndex(span, -1) {
		suffix := span[loc[0]:loc[1]]
		if proseLetters[suffix] && proseFollower.MatchString(span[loc[1]:]) {
			continue
		}
		distinct[suffix] = true
		ranked = append(ranked, p.bySuffix[suffix])
	}
	if len(distinct) < minBareLetters {
		return []string{}
	}
	return ranked
}

// ParseRanking is a one-off RankingParser.Parse.
func ParseRanking(text string, labels []string) ([]string, string) {
	return NewRankingParser(labels).Parse(text)
}

// compileAlternation builds prefix(a|b|...)suffix with longer terms tried first.
func compileAlternation(terms []string, prefix, suffix string) *regexp.Regexp {
	sorted := make([]string, len(terms))
	copy(sorted, terms)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	quoted := make([]string, len(sorted))
	for i, term := range sorted {
		quoted[i] = regexp.QuoteMeta(term)
	}
	re, err := regexp.Compile(prefix + "(?:" + strings.Join(quoted, "|") + ")" + suffix)
	if err != nil {
		return nil
	}
	return re
}
