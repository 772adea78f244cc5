package generate

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ragstack/ragd/models"
)

// ErrValidation is reserved for future hard gating; the validator currently
// only reports signals and never fails a request.
var ErrValidation = errors.New("response validation failed")

const (
	minAnswerLength = 10
	maxAnswerLength = 5000
)

// uncertaintyPhrases indicate the model could not ground its answer. A match
// adds a warning but changes no score.
var uncertaintyPhrases = []string{
	"i don't have enough information",
	"cannot find",
	"not available in the context",
	"not mentioned in the documents",
}

var wordToken = regexp.MustCompile(`\w+`)

// Validator scores answers for grounding and quality against the retrieved
// context. Stateless and deterministic given identical inputs.
type Validator struct{}

// NewValidator creates a validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks answer length, grounding overlap and uncertainty wording.
// IsValid is always true: the result is informational, not a gate.
func (v *Validator) Validate(result models.GenerationResult, retrieved []models.Retrieved) models.ValidationResult {
	answer := result.Answer

	out := models.ValidationResult{
		IsValid:  true,
		Warnings: []string{},
	}

	// These length penalties adjust an intermediate score that the final
	// quality formula below overwrites. Kept for compatibility with the
	// reference scoring behaviour.
	if len(answer) < minAnswerLength {
		out.Warnings = append(out.Warnings, "answer too short")
		out.QualityScore -= 0.2
	}
	if len(answer) > maxAnswerLength {
		out.Warnings = append(out.Warnings, "answer too long")
		out.QualityScore -= 0.1
	}

	out.GroundingScore = groundingScore(answer, retrieved)
	if out.GroundingScore < 0.5 {
		out.Warnings = append(out.Warnings, "low grounding score")
	}

	if containsUncertainty(answer) {
		out.Warnings = append(out.Warnings, "response indicates uncertainty")
	}

	out.QualityScore = qualityScore(answer, out.GroundingScore)
	return out
}

// groundingScore measures word overlap between the answer and each context
// chunk. The answer token count is added to the denominator once per chunk,
// so the score is the mean per-chunk overlap ratio, capped at 1.0.
func groundingScore(answer string, retrieved []models.Retrieved) float64 {
	if len(retrieved) == 0 {
		return 0.0
	}

	answerWords := tokenSet(answer)

	overlap := 0
	total := 0
	for _, r := range retrieved {
		contextWords := tokenSet(r.Chunk.Text)
		for w := range answerWords {
			if contextWords[w] {
				overlap++
			}
		}
		total += len(answerWords)
	}

	if total == 0 {
		return 0.0
	}
	score := float64(overlap) / float64(total)
	if score > 1.0 {
		return 1.0
	}
	return score
}

func tokenSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range wordToken.FindAllString(strings.ToLower(text), -1) {
		set[w] = true
	}
	return set
}

func containsUncertainty(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// qualityScore starts from grounding and adjusts for answer length, clamped
// to [0, 1].
func qualityScore(answer string, grounding float64) float64 {
	score := grounding

	wordCount := len(strings.Fields(answer))
	if wordCount >= 50 && wordCount <= 500 {
		score += 0.2
	}
	if wordCount < 20 || wordCount > 1000 {
		score -= 0.3
	}

	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
