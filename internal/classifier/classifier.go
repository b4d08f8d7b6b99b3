// Package classifier identifies survey question types from page text using
// the keyword patterns in the knowledge base. Classification is pure: the
// same text against the same patterns always yields the same answer.
package classifier

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"quenito/internal/knowledge"
	"quenito/internal/logging"
)

// strongIndicatorConfidence is returned when a phrase identifies the type
// outright, bypassing keyword scoring.
const strongIndicatorConfidence = 0.95

// keywordBonus is added when at least bonusFraction of a type's keyword list
// matched; broad lists with many hits deserve more than their raw ratio.
const (
	keywordBonus  = 0.2
	bonusFraction = 0.3
)

// PatternSource supplies the current question patterns. The knowledge store
// satisfies it; tests use fixed maps.
type PatternSource interface {
	AllPatterns() map[string]knowledge.PatternRecord
}

// Config tunes the classifier.
type Config struct {
	// EnableParallel scores question types concurrently. Worthwhile only
	// when the pattern set grows well past the built-in demographics.
	EnableParallel bool
}

// Classifier scores page text against every known question type.
type Classifier struct {
	source PatternSource
	cfg    Config
}

// New creates a classifier over the given pattern source.
func New(source PatternSource, cfg Config) *Classifier {
	return &Classifier{source: source, cfg: cfg}
}

// Classify returns the best-matching question type and its keyword
// confidence. Unrecognized text returns ("", 0.0); the caller escalates.
func (c *Classifier) Classify(pageText string) (string, float64) {
	text := strings.ToLower(pageText)
	patterns := c.source.AllPatterns()

	// Strong indicators decide immediately, highest priority first so a
	// page carrying two indicator phrases resolves deterministically.
	for _, name := range typesByPriority(patterns) {
		for _, phrase := range patterns[name].StrongIndicators {
			if strings.Contains(text, strings.ToLower(phrase)) {
				logging.ClassifierDebug("strong indicator %q -> %s", phrase, name)
				return name, strongIndicatorConfidence
			}
		}
	}

	scores := c.scoreAll(text, patterns)

	bestType := ""
	bestScore := 0.0
	for _, name := range typesByPriority(patterns) {
		if s := scores[name]; s > bestScore {
			bestType, bestScore = name, s
		}
	}

	if bestScore == 0 {
		return "", 0.0
	}
	logging.ClassifierDebug("classified as %s (confidence=%.2f)", bestType, bestScore)
	return bestType, bestScore
}

// scoreAll computes the keyword score per type, optionally in parallel.
func (c *Classifier) scoreAll(text string, patterns map[string]knowledge.PatternRecord) map[string]float64 {
	scores := make(map[string]float64, len(patterns))

	if !c.cfg.EnableParallel {
		for name, p := range patterns {
			scores[name] = scoreKeywords(text, p.Keywords)
		}
		return scores
	}

	var mu sync.Mutex
	var g errgroup.Group
	for name, p := range patterns {
		name, p := name, p
		g.Go(func() error {
			s := scoreKeywords(text, p.Keywords)
			mu.Lock()
			scores[name] = s
			mu.Unlock()
			return nil
		})
	}
	g.Wait() // scoring never errors
	return scores
}

// scoreKeywords returns matched/total with a bonus for broad matches,
// capped at 1.0.
func scoreKeywords(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	matched := 0
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	score := float64(matched) / float64(len(keywords))
	if float64(matched) >= bonusFraction*float64(len(keywords)) {
		score += keywordBonus
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// typesByPriority orders type names by descending pattern priority, with
// name order breaking remaining ties so classification stays deterministic.
func typesByPriority(patterns map[string]knowledge.PatternRecord) []string {
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := patterns[names[i]].Priority, patterns[names[j]].Priority
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	return names
}
