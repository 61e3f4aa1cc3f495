// Package match implements the buyer-matching engine: free-text waste
// descriptions are classified, embedded, and ranked against active buyer needs.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/reclaimhub/wastex/internal/ai"
	"github.com/reclaimhub/wastex/internal/model"
)

// Config holds the tuning knobs for the matching engine.
type Config struct {
	// Threshold is the minimum full-precision score for a candidate to be
	// retained.
	Threshold float64
	// Boost is added to the similarity score when seller and buyer share at
	// least one word.
	Boost float64
	// Ceiling caps the final score; 1.0 is reserved as a non-score sentinel.
	Ceiling float64
}

// DefaultConfig returns the default matching configuration.
func DefaultConfig() Config {
	return Config{
		Threshold: 0.45,
		Boost:     0.2,
		Ceiling:   0.99,
	}
}

// Engine ranks buyer needs against seller descriptions. It is stateless and
// safe for concurrent use as long as the injected services are.
type Engine struct {
	classifier ai.Classifier
	embedder   ai.Embedder
	config     Config
}

// New creates a matching engine with the given service handles.
func New(classifier ai.Classifier, embedder ai.Embedder) *Engine {
	return NewWithConfig(classifier, embedder, DefaultConfig())
}

// NewWithConfig creates a matching engine with custom tuning.
func NewWithConfig(classifier ai.Classifier, embedder ai.Embedder, config Config) *Engine {
	if config.Threshold == 0 {
		config.Threshold = 0.45
	}
	if config.Boost == 0 {
		config.Boost = 0.2
	}
	if config.Ceiling == 0 {
		config.Ceiling = 0.99
	}

	return &Engine{
		classifier: classifier,
		embedder:   embedder,
		config:     config,
	}
}

// Rank classifies and embeds sellerText, scores it against every buyer need
// with an embedding, and returns the retained candidates ordered by score
// descending. Ties preserve buyer order, so identical inputs always produce
// identical output.
//
// Classifier failure degrades to the Unknown category; embedder failure is
// fatal because no ranking is possible without the seller vector.
func (e *Engine) Rank(ctx context.Context, sellerText string, buyers []model.BuyerNeed) ([]model.MatchCandidate, error) {
	category := e.classify(ctx, sellerText)

	sellerVector, err := e.embedder.Embed(ctx, sellerText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed seller text: %w", err)
	}

	sellerWords := tokenize(sellerText)

	type scored struct {
		candidate model.MatchCandidate
		raw       float64
	}

	candidates := make([]scored, 0, len(buyers))

	for _, buyer := range buyers {
		if len(buyer.Embedding) == 0 {
			slog.Debug("Skipping buyer without embedding", "buyer_id", buyer.BuyerID)
			continue
		}

		score := cosineSimilarity(sellerVector, buyer.Embedding)

		if sharesWord(sellerWords, tokenize(buyer.LookingFor)) {
			score += e.config.Boost
		}

		if score > e.config.Ceiling {
			score = e.config.Ceiling
		}

		// Threshold comparison uses full precision; rounding is
		// presentation only.
		if score <= e.config.Threshold {
			continue
		}

		candidates = append(candidates, scored{
			raw: score,
			candidate: model.MatchCandidate{
				BuyerID:          buyer.BuyerID,
				MatchScore:       math.Round(score*100) / 100,
				CategoryDetected: category,
				Reason:           fmt.Sprintf("Matched '%s'", buyer.LookingFor),
			},
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].raw > candidates[j].raw
	})

	result := make([]model.MatchCandidate, len(candidates))
	for i, c := range candidates {
		result[i] = c.candidate
	}

	return result, nil
}

// classify returns the detected category, degrading to Unknown when the
// classifier is unavailable. Ranking never aborts on classifier failure.
func (e *Engine) classify(ctx context.Context, text string) model.Category {
	label, err := e.classifier.Classify(ctx, text)
	if err != nil {
		slog.Warn("Classifier unavailable, falling back to Unknown", "error", err)
		return model.CategoryUnknown
	}
	return model.ParseCategory(label)
}

// cosineSimilarity returns dot(u,v) / (|u|*|v|), or 0 when either vector has
// zero magnitude or the dimensions disagree.
func cosineSimilarity(u, v []float64) float64 {
	if len(u) != len(v) || len(u) == 0 {
		return 0
	}

	var dot, normU, normV float64
	for i := range u {
		dot += u[i] * v[i]
		normU += u[i] * u[i]
		normV += v[i] * v[i]
	}

	if normU == 0 || normV == 0 {
		return 0
	}

	return dot / (math.Sqrt(normU) * math.Sqrt(normV))
}

// tokenize splits text into a lowercase whitespace-delimited word set.
func tokenize(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// sharesWord reports whether the two word sets intersect.
func sharesWord(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for w := range a {
		if _, ok := b[w]; ok {
			return true
		}
	}
	return false
}
