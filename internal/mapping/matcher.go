package mapping

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"curator/internal/logging"
)

// Scorer measures similarity between two names on a 0 to 100 scale. The
// scale aligns with Mapping.Confidence so scores compare directly against
// the auto-accept threshold.
type Scorer interface {
	Score(a, b string) int
}

// SequenceScorer scores with the classic longest-matching-subsequence ratio
// over the rune sequences of both names.
type SequenceScorer struct{}

// Score implements Scorer.
func (SequenceScorer) Score(a, b string) int {
	matcher := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return int(matcher.Ratio()*100 + 0.5)
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Candidate is one folder an agency name can be matched against.
type Candidate struct {
	ID   string
	Name string
}

// Matcher scores agency names against candidate folders and produces match
// records. Normalized exact matches short-circuit the scorer; everything
// else is ranked and routed by the auto-accept threshold.
type Matcher struct {
	scorer    Scorer
	threshold int
	logger    *slog.Logger
	now       func() time.Time
}

// NewMatcher constructs a Matcher. A nil scorer falls back to
// SequenceScorer.
func NewMatcher(scorer Scorer, threshold int, logger *slog.Logger) *Matcher {
	if scorer == nil {
		scorer = SequenceScorer{}
	}
	return &Matcher{
		scorer:    scorer,
		threshold: threshold,
		logger:    logging.NewComponentLogger(logger, "matcher"),
		now:       time.Now,
	}
}

// Match scores agencyName against every candidate and returns the resulting
// mapping. With no candidates the result is a zero-confidence manual entry.
func (m *Matcher) Match(agencyName string, candidates []Candidate) Mapping {
	normalized := Normalize(agencyName)
	matchedAt := m.now().UTC()

	for _, candidate := range candidates {
		if Normalize(candidate.Name) == normalized {
			return Mapping{
				AgencyName: agencyName,
				FolderID:   candidate.ID,
				FolderName: candidate.Name,
				Confidence: 100,
				MatchType:  MatchExact,
				Reasoning:  fmt.Sprintf("folder name %q matches exactly after normalization", candidate.Name),
				MatchedAt:  matchedAt,
			}
		}
	}

	best := Candidate{}
	bestScore := -1
	scored := make([]Candidate, len(candidates))
	copy(scored, candidates)
	// Deterministic winner on score ties.
	sort.Slice(scored, func(i, j int) bool { return scored[i].Name < scored[j].Name })
	for _, candidate := range scored {
		score := m.scorer.Score(normalized, Normalize(candidate.Name))
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	if bestScore < 0 {
		return Mapping{
			AgencyName: agencyName,
			Confidence: 0,
			MatchType:  MatchManual,
			Reasoning:  "no candidate folders to match against",
			MatchedAt:  matchedAt,
		}
	}

	matchType := MatchManual
	if bestScore >= m.threshold {
		matchType = MatchAuto
	}
	m.logger.Debug("scored agency against candidates",
		logging.String("agency", agencyName),
		logging.String("best_candidate", best.Name),
		logging.Int("confidence", bestScore),
		logging.String("match_type", string(matchType)))

	return Mapping{
		AgencyName: agencyName,
		FolderID:   best.ID,
		FolderName: best.Name,
		Confidence: bestScore,
		MatchType:  matchType,
		Reasoning:  fmt.Sprintf("best of %d candidates: %q scored %d against threshold %d", len(candidates), best.Name, bestScore, m.threshold),
		MatchedAt:  matchedAt,
	}
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds a name for comparison: lower case, diacritics stripped,
// punctuation dropped, whitespace collapsed.
func Normalize(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
