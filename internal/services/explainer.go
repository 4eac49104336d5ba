package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"talentmatch/matching-engine/internal/models"
)

// Explainer turns a scored match into a human-readable explanation. Prose
// generation is a pluggable collaborator: swap the implementation without
// touching the scoring contract.
type Explainer interface {
	Explain(ctx context.Context, job *models.Job, candidate *models.Candidate, result *models.MatchResult) (string, error)
}

type geminiExplainer struct {
	gemini     GeminiService
	maxRetries int
	retryDelay time.Duration
}

func NewGeminiExplainer(gemini GeminiService, maxRetries int, retryDelay time.Duration) Explainer {
	return &geminiExplainer{
		gemini:     gemini,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Explain implements Explainer.
func (e *geminiExplainer) Explain(ctx context.Context, job *models.Job, candidate *models.Candidate, result *models.MatchResult) (string, error) {
	prompt := buildExplanationPrompt(job, candidate, result)

	explanation, err := e.gemini.GenerateTextWithRetry(ctx, prompt, 0.5, e.maxRetries, e.retryDelay)
	if err != nil {
		return "", fmt.Errorf("failed to generate explanation: %w", err)
	}

	return strings.TrimSpace(explanation), nil
}

func buildExplanationPrompt(job *models.Job, candidate *models.Candidate, result *models.MatchResult) string {
	var sb strings.Builder

	sb.WriteString("You are an expert recruiter explaining a candidate ranking to a hiring manager.\n\n")
	sb.WriteString(fmt.Sprintf("POSITION: %s\n", job.Title))
	sb.WriteString(fmt.Sprintf("CANDIDATE: %s\n\n", candidate.FullName))

	sb.WriteString("SCORING SUMMARY:\n")
	sb.WriteString(fmt.Sprintf("- Combined score: %.2f / 100\n", result.CombinedScore))
	sb.WriteString(fmt.Sprintf("- Semantic similarity: %.3f\n", result.CosineSimilarity))
	sb.WriteString(fmt.Sprintf("- Criteria: %.2f of %.2f points (%.2f%%)\n",
		result.CriteriaScore, result.CriteriaMaxScore, result.CriteriaPercentage))
	if result.Rank != nil {
		sb.WriteString(fmt.Sprintf("- Rank among qualifying candidates: %d\n", *result.Rank))
	}
	if result.Disqualified {
		reason := "unspecified"
		if result.DisqualifiedBy != nil {
			reason = *result.DisqualifiedBy
		}
		sb.WriteString(fmt.Sprintf("- DISQUALIFIED by: %s\n", reason))
	}

	if len(result.MatchedCriteria) > 0 {
		sb.WriteString(fmt.Sprintf("\nMATCHED CRITERIA: %s\n", strings.Join(result.MatchedCriteria, "; ")))
	}
	if len(result.MissingCriteria) > 0 {
		sb.WriteString(fmt.Sprintf("MISSING CRITERIA: %s\n", strings.Join(result.MissingCriteria, "; ")))
	}

	if len(result.RulesApplied) > 0 {
		sb.WriteString("\nRULE ADJUSTMENTS:\n")
		for _, app := range result.RulesApplied {
			sb.WriteString(fmt.Sprintf("- %s (%s): %.2f -> %.2f\n",
				app.RuleName, app.RuleType, app.ScoreBefore, app.ScoreAfter))
		}
	}

	sb.WriteString("\nWrite 3-5 sentences explaining this outcome in plain language. ")
	sb.WriteString("Ground every statement in the numbers above; do not invent facts about the candidate. ")
	sb.WriteString("If the candidate was disqualified, lead with the reason.")

	return sb.String()
}
