package fusion

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ScoringConfig holds the constants of the answer quality heuristic. The
// defaults were tuned on short meeting-assistant answers and are not
// expected to transfer to other workloads unchanged.
type ScoringConfig struct {
	// Length bands in runes.
	ShortLength  int     `yaml:"short_length"`
	IdealLength  int     `yaml:"ideal_length"`
	LongLength   int     `yaml:"long_length"`
	OverlongSpan float64 `yaml:"overlong_span"`

	SentenceWeight float64 `yaml:"sentence_weight"`
	SentenceCap    int     `yaml:"sentence_cap"`
	ClauseWeight   float64 `yaml:"clause_weight"`
	ClauseCap      int     `yaml:"clause_cap"`
	NewlineWeight  float64 `yaml:"newline_weight"`
	NewlineCap     int     `yaml:"newline_cap"`
	ColonWeight    float64 `yaml:"colon_weight"`
	ColonCap       int     `yaml:"colon_cap"`

	ContentWeight float64 `yaml:"content_weight"`
	// ContentScript picks the runes that count as content: "han" (CJK
	// ideographs, the default) or "letters" (any letter or digit).
	ContentScript string `yaml:"content_script"`

	// Relative score difference under which the shorter answer wins.
	TieMargin float64 `yaml:"tie_margin"`
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		ShortLength:    50,
		IdealLength:    200,
		LongLength:     800,
		OverlongSpan:   1000,
		SentenceWeight: 0.1,
		SentenceCap:    5,
		ClauseWeight:   0.05,
		ClauseCap:      8,
		NewlineWeight:  0.1,
		NewlineCap:     3,
		ColonWeight:    0.05,
		ColonCap:       2,
		ContentWeight:  0.3,
		ContentScript:  ScriptHan,
		TieMargin:      0.1,
	}
}

const (
	ScriptHan     = "han"
	ScriptLetters = "letters"
)

func (c ScoringConfig) Validate() error {
	if c.ShortLength <= 0 || c.IdealLength <= c.ShortLength || c.LongLength <= c.IdealLength {
		return errors.New("scoring: length bands must be increasing and positive")
	}
	if c.OverlongSpan <= 0 {
		return errors.New("scoring: overlong span must be positive")
	}
	if c.TieMargin < 0 || c.TieMargin >= 1 {
		return errors.New("scoring: tie margin must be in [0, 1)")
	}
	switch c.ContentScript {
	case "", ScriptHan, ScriptLetters:
	default:
		return fmt.Errorf("scoring: unknown content script %q", c.ContentScript)
	}
	return nil
}

const (
	sentenceEnds = "。.!?！？"
	clauseMarks  = "，,、"
	colonMarks   = "：:"
)

// Scorer ranks two candidate answers when the merge pass is unavailable.
type Scorer struct {
	cfg ScoringConfig
}

func NewScorer(cfg ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score rates text by length, punctuation structure and the share of
// letters and digits. Empty text scores 0.
func (s *Scorer) Score(text string) float64 {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return s.lengthScore(n) + s.structureScore(text) + s.contentScore(text, n)
}

func (s *Scorer) lengthScore(n int) float64 {
	c := s.cfg
	x := float64(n)
	short, ideal, long := float64(c.ShortLength), float64(c.IdealLength), float64(c.LongLength)

	switch {
	case n < c.ShortLength:
		return x / short * 0.3
	case n < c.IdealLength:
		return 0.3 + (x-short)/(ideal-short)*0.4
	case n <= c.LongLength:
		return 0.7 + (long-x)/(long-ideal)*0.3
	default:
		return math.Max(0.5, 1-(x-long)/c.OverlongSpan*0.5)
	}
}

func (s *Scorer) structureScore(text string) float64 {
	c := s.cfg
	var sentences, clauses, newlines, colons int
	for _, r := range text {
		switch {
		case strings.ContainsRune(sentenceEnds, r):
			sentences++
		case strings.ContainsRune(clauseMarks, r):
			clauses++
		case r == '\n':
			newlines++
		case strings.ContainsRune(colonMarks, r):
			colons++
		}
	}
	return float64(min(sentences, c.SentenceCap))*c.SentenceWeight +
		float64(min(clauses, c.ClauseCap))*c.ClauseWeight +
		float64(min(newlines, c.NewlineCap))*c.NewlineWeight +
		float64(min(colons, c.ColonCap))*c.ColonWeight
}

func (s *Scorer) contentScore(text string, n int) float64 {
	counts := isHan
	if s.cfg.ContentScript == ScriptLetters {
		counts = isLetterOrDigit
	}

	content := 0
	for _, r := range text {
		if counts(r) {
			content++
		}
	}
	return float64(content) / float64(n) * s.cfg.ContentWeight
}

// isHan matches the CJK Unified Ideographs block only.
func isHan(r rune) bool { return r >= 0x4e00 && r <= 0x9fff }

func isLetterOrDigit(r rune) bool { return unicode.IsLetter(r) || unicode.IsNumber(r) }

// Select returns the better of a and b. An empty side loses. Scores within
// TieMargin of each other favour the shorter answer; a wins remaining ties.
func (s *Scorer) Select(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}

	sa, sb := s.Score(a), s.Score(b)
	if math.Abs(sa-sb)/math.Max(math.Max(sa, sb), 0.1) < s.cfg.TieMargin {
		if utf8.RuneCountInString(a) <= utf8.RuneCountInString(b) {
			return a
		}
		return b
	}
	if sa >= sb {
		return a
	}
	return b
}
