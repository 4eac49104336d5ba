package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentmatch/matching-engine/internal/models"
)

type fakeGeminiService struct {
	response     string
	err          error
	prompt       string
	maxRetries   int
	initialDelay time.Duration
}

func (g *fakeGeminiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, nil
}

func (g *fakeGeminiService) GenerateText(ctx context.Context, prompt string, temperature float32) (string, error) {
	return g.response, g.err
}

func (g *fakeGeminiService) GenerateTextWithRetry(ctx context.Context, prompt string, temperature float32, maxRetries int, initialDelay time.Duration) (string, error) {
	g.prompt = prompt
	g.maxRetries = maxRetries
	g.initialDelay = initialDelay
	return g.response, g.err
}

func (g *fakeGeminiService) ModelID() string { return "fake-embedding-001" }
func (g *fakeGeminiService) Dimensions() int { return 4 }

func sampleResult() *models.MatchResult {
	rank := 2
	return &models.MatchResult{
		ID:                 uuid.New(),
		CombinedScore:      78.5,
		CosineSimilarity:   0.812,
		CriteriaScore:      24,
		CriteriaMaxScore:   30,
		CriteriaPercentage: 80,
		Rank:               &rank,
		MatchedCriteria:    models.StringList{"skill:Python"},
		MissingCriteria:    models.StringList{"certification:AWS"},
		RulesApplied: models.RuleTrail{
			{RuleName: "remote bonus", RuleType: "OVERALL_MODIFIER", ScoreBefore: 73.5, ScoreAfter: 78.5, Delta: 5},
		},
	}
}

func TestExplainForwardsRetryConfiguration(t *testing.T) {
	gemini := &fakeGeminiService{response: "  A solid match.  "}
	explainer := NewGeminiExplainer(gemini, 3, 2*time.Second)

	job := &models.Job{Title: "Backend Engineer"}
	candidate := &models.Candidate{FullName: "Alex Doe"}

	explanation, err := explainer.Explain(context.Background(), job, candidate, sampleResult())

	require.NoError(t, err)
	assert.Equal(t, "A solid match.", explanation)
	assert.Equal(t, 3, gemini.maxRetries)
	assert.Equal(t, 2*time.Second, gemini.initialDelay)
}

func TestExplainPromptGroundsInScoring(t *testing.T) {
	gemini := &fakeGeminiService{response: "ok"}
	explainer := NewGeminiExplainer(gemini, 1, 0)

	job := &models.Job{Title: "Backend Engineer"}
	candidate := &models.Candidate{FullName: "Alex Doe"}

	_, err := explainer.Explain(context.Background(), job, candidate, sampleResult())
	require.NoError(t, err)

	assert.Contains(t, gemini.prompt, "Backend Engineer")
	assert.Contains(t, gemini.prompt, "Alex Doe")
	assert.Contains(t, gemini.prompt, "78.50")
	assert.Contains(t, gemini.prompt, "skill:Python")
	assert.Contains(t, gemini.prompt, "certification:AWS")
	assert.Contains(t, gemini.prompt, "remote bonus")
}

func TestExplainWrapsGenerationFailure(t *testing.T) {
	gemini := &fakeGeminiService{err: fmt.Errorf("upstream unavailable")}
	explainer := NewGeminiExplainer(gemini, 1, 0)

	_, err := explainer.Explain(context.Background(), &models.Job{}, &models.Candidate{}, sampleResult())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate explanation")
}
