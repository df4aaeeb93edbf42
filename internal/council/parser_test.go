package council

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var abcd = []string{"Response A", "Response B", "Response C", "Response D"}

var nineLabels = []string{
	Label(0), Label(1), Label(2), Label(3), Label(4),
	Label(5), Label(6), Label(7), Label(8),
}

func TestParseRanking(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		labels []string
		want   []string
	}{
		{
			name: "standard format with FINAL RANKING",
			input: `Response A is good but lacks detail.
Response B provides comprehensive coverage.
Response C is accurate but brief.

FINAL RANKING:
1. Response B
2. Response A
3. Response C`,
			want: []string{"Response B", "Response A", "Response C"},
		},
		{
			name: "format without numbered list",
			input: `FINAL RANKING:
Response C
Response A
Response B`,
			want: []string{"Response C", "Response A", "Response B"},
		},
		{
			name: "format with text after ranking section",
			input: `FINAL RANKING:
1. Response B
2. Response A
3. Response C

These are my rankings based on quality.`,
			want: []string{"Response B", "Response A", "Response C"},
		},
		{
			name:  "no header falls back to whole text",
			input: `I think Response A is best, then Response C, then Response B.`,
			want:  []string{"Response A", "Response C", "Response B"},
		},
		{
			name:  "no header and bare letters",
			input: "I like C best, then A, then B.",
			want:  []string{"Response C", "Response A", "Response B"},
		},
		{
			name:  "article is not a bare letter",
			input: "A solid set of answers overall; none stands out.",
			want:  []string{},
		},
		{
			name:  "a single bare letter is not a ranking",
			input: "FINAL RANKING: B stands out.",
			want:  []string{},
		},
		{
			name:   "pronoun is not a bare letter",
			input:  "I think the second is best.",
			labels: nineLabels,
			want:   []string{},
		},
		{
			name:   "pronoun skipped among bare letters",
			input:  "I like C best, then A, then B.",
			labels: nineLabels,
			want:   []string{"Response C", "Response A", "Response B"},
		},
		{
			name:   "bare I in a list still counts",
			input:  "FINAL RANKING:\n1. I\n2. C",
			labels: nineLabels,
			want:   []string{"Response I", "Response C"},
		},
		{
			name:  "bare letters after header",
			input: "FINAL RANKING:\n1. D\n2. B",
			want:  []string{"Response D", "Response B"},
		},
		{
			name:  "empty string",
			input: "",
			want:  []string{},
		},
		{
			name:  "header with no labels",
			input: "FINAL RANKING:\nNo responses to rank.",
			want:  []string{},
		},
		{
			name: "only the section after the header counts",
			input: `Response A is mentioned here first.
Response B is also mentioned.

FINAL RANKING:
1. Response C
2. Response A`,
			want: []string{"Response C", "Response A"},
		},
		{
			name:  "header is case insensitive",
			input: "Response A rocks.\nfinal ranking:\n1. Response D\n2. Response C",
			want:  []string{"Response D", "Response C"},
		},
		{
			name:  "first header wins",
			input: "FINAL RANKING: Response B\nFINAL RANKING: Response A",
			want:  []string{"Response B", "Response A"},
		},
		{
			name:  "duplicates are kept",
			input: "FINAL RANKING:\n1. Response A\n2. Response A\n3. Response B",
			want:  []string{"Response A", "Response A", "Response B"},
		},
		{
			name:  "unknown labels are ignored",
			input: "FINAL RANKING:\n1. Response Q\n2. Response B",
			want:  []string{"Response B"},
		},
		{
			name:  "labels are case sensitive",
			input: "FINAL RANKING:\n1. response a\n2. Response C",
			want:  []string{"Response C"},
		},
		{
			name:   "no labels",
			input:  "FINAL RANKING:\n1. Response A",
			labels: []string{},
			want:   []string{},
		},
		{
			name:   "longest label matches first",
			input:  "FINAL RANKING:\n1. Response AB\n2. Response A\n3. Response AA",
			labels: []string{"Response A", "Response AA", "Response AB"},
			want:   []string{"Response AB", "Response A", "Response AA"},
		},
		{
			name:   "labels with regex metacharacters",
			input:  "FINAL RANKING:\n1. (b)+\n2. a.*",
			labels: []string{"a.*", "(b)+"},
			want:   []string{"(b)+", "a.*"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := tt.labels
			if labels == nil {
				labels = abcd
			}
			ranked, raw := ParseRanking(tt.input, labels)
			require.NotNil(t, ranked)
			assert.Equal(t, tt.want, ranked)
			assert.Equal(t, tt.input, raw)
		})
	}
}

func TestParseRankingIsIdempotent(t *testing.T) {
	text := "Response B is best.\nFINAL RANKING:\n1. Response B\n2. Response D\n3. Response A"
	p := NewRankingParser(abcd)

	first, _ := p.Parse(text)
	second, _ := p.Parse(text)
	assert.Equal(t, first, second)
}

func TestParseRankingRoundTrip(t *testing.T) {
	perms := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{2, 0, 3, 1},
		{1, 3, 0, 2},
	}
	for _, perm := range perms {
		t.Run(fmt.Sprint(perm), func(t *testing.T) {
			var b strings.Builder
			b.WriteString("Some critique first.\n\nFINAL RANKING:\n")
			want := make([]string, len(perm))
			for i, k := range perm {
				want[i] = abcd[k]
				fmt.Fprintf(&b, "%d. %s\n", i+1, abcd[k])
			}

			got, _ := ParseRanking(b.String(), abcd)
			assert.Equal(t, want, got)
		})
	}
}

func TestRankingParserNil(t *testing.T) {
	var p *RankingParser
	ranked, raw := p.Parse("FINAL RANKING: Response A")
	assert.Empty(t, ranked)
	assert.NotNil(t, ranked)
	assert.Equal(t, "FINAL RANKING: Response A", raw)
}

func TestRankingParserWithoutBareLetters(t *testing.T) {
	// labels without a distinct suffix only match in full
	p := NewRankingParser([]string{"alpha", "beta"})
	ranked, _ := p.Parse("FINAL RANKING: beta, a, alpha")
	assert.Equal(t, []string{"beta", "alpha"}, ranked)

	ranked, _ = p.Parse("FINAL RANKING: b, a")
	assert.Empty(t, ranked)
}
