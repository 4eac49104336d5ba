package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentmatch/matching-engine/internal/models"
)

func pythonCriteria() []models.ScoringCriterion {
	return []models.ScoringCriterion{
		{
			Type:       models.CriterionSkill,
			Value:      "Python",
			Points:     20,
			Weight:     1,
			IsRequired: true,
		},
		{
			Type:          models.CriterionExperience,
			Value:         "",
			MinValue:      3,
			PerUnitPoints: 2,
			MaxPoints:     10,
		},
	}
}

func TestScoreRequiredSkillWithExperience(t *testing.T) {
	scorer := NewCriteriaScorer(nil)

	candidate := &models.Candidate{
		Skills:          models.StringList{"Python", "Go"},
		YearsExperience: 5,
	}

	result := scorer.Score(candidate, pythonCriteria())

	// Skill 20*1 plus experience (5-3)*2 = 4, capped at 10.
	assert.Equal(t, 24.0, result.Points)
	assert.Equal(t, 30.0, result.MaxPoints)
	assert.Equal(t, 80.0, result.Percentage)
	assert.False(t, result.Disqualified)
	assert.Contains(t, result.Matched, "skill:Python")
	assert.Empty(t, result.Missing)
}

func TestScoreMissingRequiredSkillDisqualifies(t *testing.T) {
	scorer := NewCriteriaScorer(nil)

	candidate := &models.Candidate{
		Skills:          models.StringList{"Java"},
		YearsExperience: 5,
	}

	result := scorer.Score(candidate, pythonCriteria())

	assert.True(t, result.Disqualified)
	assert.Equal(t, "skill:Python", result.DisqualifiedBy)
	assert.Contains(t, result.Missing, "skill:Python")
	// Experience points are still scored; disqualification zeroes the combined
	// score later, not the criteria bookkeeping.
	assert.Equal(t, 4.0, result.Points)
}

func TestScoreNoCriteriaIsFullPercentage(t *testing.T) {
	scorer := NewCriteriaScorer(nil)

	result := scorer.Score(&models.Candidate{}, nil)

	assert.Equal(t, 100.0, result.Percentage)
	assert.Equal(t, 0.0, result.Points)
	assert.False(t, result.Disqualified)
}

func TestScoreWeightMultipliesAward(t *testing.T) {
	scorer := NewCriteriaScorer(nil)

	criteria := []models.ScoringCriterion{
		{Type: models.CriterionSkill, Value: "Kubernetes", Points: 10, Weight: 2.5},
	}
	candidate := &models.Candidate{Skills: models.StringList{"Kubernetes"}}

	result := scorer.Score(candidate, criteria)

	assert.Equal(t, 25.0, result.Points)
	assert.Equal(t, 25.0, result.MaxPoints)
	assert.Equal(t, 100.0, result.Percentage)
}

func TestScoreMatchingIsCaseInsensitiveAndByContainment(t *testing.T) {
	scorer := NewCriteriaScorer(nil)

	tests := []struct {
		name      string
		criterion models.ScoringCriterion
		candidate models.Candidate
		matched   bool
	}{
		{
			name:      "skill case insensitive",
			criterion: models.ScoringCriterion{Type: models.CriterionSkill, Value: "python", Points: 5, Weight: 1},
			candidate: models.Candidate{Skills: models.StringList{"PYTHON"}},
			matched:   true,
		},
		{
			name:      "education by containment",
			criterion: models.ScoringCriterion{Type: models.CriterionEducation, Value: "bachelor", Points: 5, Weight: 1},
			candidate: models.Candidate{Education: models.StringList{"Bachelor of Science in Computer Science"}},
			matched:   true,
		},
		{
			name:      "certification whitespace collapsed",
			criterion: models.ScoringCriterion{Type: models.CriterionCertification, Value: "aws  solutions architect", Points: 5, Weight: 1},
			candidate: models.Candidate{Certifications: models.StringList{"AWS Solutions Architect"}},
			matched:   true,
		},
		{
			name:      "language no partial match of needle",
			criterion: models.ScoringCriterion{Type: models.CriterionLanguage, Value: "German", Points: 5, Weight: 1},
			candidate: models.Candidate{Languages: models.StringList{"English", "Spanish"}},
			matched:   false,
		},
		{
			name:      "skill is not matched by a superstring entry",
			criterion: models.ScoringCriterion{Type: models.CriterionSkill, Value: "Go", Points: 5, Weight: 1},
			candidate: models.Candidate{Skills: models.StringList{"Django"}},
			matched:   false,
		},
		{
			name:      "skill is not a prefix match",
			criterion: models.ScoringCriterion{Type: models.CriterionSkill, Value: "Java", Points: 5, Weight: 1},
			candidate: models.Candidate{Skills: models.StringList{"JavaScript"}},
			matched:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scorer.Score(&tt.candidate, []models.ScoringCriterion{tt.criterion})
			if tt.matched {
				assert.Equal(t, 5.0, result.Points)
			} else {
				assert.Equal(t, 0.0, result.Points)
			}
		})
	}
}

func TestScoreRequiredSkillNotSatisfiedBySuperstring(t *testing.T) {
	scorer := NewCriteriaScorer(nil)

	criteria := []models.ScoringCriterion{
		{Type: models.CriterionSkill, Value: "Go", Points: 20, Weight: 1, IsRequired: true},
	}
	candidate := &models.Candidate{Skills: models.StringList{"Django", "Python"}}

	result := scorer.Score(candidate, criteria)

	assert.Equal(t, 0.0, result.Points)
	assert.True(t, result.Disqualified)
	assert.Equal(t, "skill:Go", result.DisqualifiedBy)
	assert.Contains(t, result.Missing, "skill:Go")
}

func TestScoreExperienceBelowMinimum(t *testing.T) {
	scorer := NewCriteriaScorer(nil)

	criteria := []models.ScoringCriterion{
		{Type: models.CriterionExperience, MinValue: 3, PerUnitPoints: 2, MaxPoints: 10, IsRequired: true},
	}
	candidate := &models.Candidate{YearsExperience: 2}

	result := scorer.Score(candidate, criteria)

	assert.True(t, result.Disqualified)
	assert.Equal(t, 0.0, result.Points)
	assert.Len(t, result.Missing, 1)
}

func TestScoreExperienceCapAndAreaLookup(t *testing.T) {
	scorer := NewCriteriaScorer(nil)

	criteria := []models.ScoringCriterion{
		{Type: models.CriterionExperience, Value: "backend", MinValue: 1, PerUnitPoints: 3, MaxPoints: 9},
	}
	candidate := &models.Candidate{
		YearsExperience: 1,
		ExperienceYears: models.FloatMap{"Backend": 10},
	}

	result := scorer.Score(candidate, criteria)

	// Area lookup is case insensitive; (10-1)*3 = 27 caps at 9.
	assert.Equal(t, 9.0, result.Points)
	assert.Equal(t, 9.0, result.MaxPoints)
}

func TestScoreCustomWithoutEvaluator(t *testing.T) {
	scorer := NewCriteriaScorer(nil)

	t.Run("optional records an error", func(t *testing.T) {
		criteria := []models.ScoringCriterion{
			{Type: models.CriterionCustom, Value: "portfolio_review", Points: 10, Weight: 1},
		}
		result := scorer.Score(&models.Candidate{}, criteria)

		assert.False(t, result.Disqualified)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Missing, "custom:portfolio_review")
	})

	t.Run("required disqualifies conservatively", func(t *testing.T) {
		criteria := []models.ScoringCriterion{
			{Type: models.CriterionCustom, Value: "portfolio_review", Points: 10, Weight: 1, IsRequired: true},
		}
		result := scorer.Score(&models.Candidate{}, criteria)

		assert.True(t, result.Disqualified)
		assert.Equal(t, "custom:portfolio_review", result.DisqualifiedBy)
	})
}

func TestScoreCustomEvaluator(t *testing.T) {
	scorer := NewCriteriaScorer(func(candidate *models.Candidate, value string) (bool, error) {
		switch value {
		case "has_email":
			return candidate.Email != "", nil
		default:
			return false, fmt.Errorf("unknown predicate %q", value)
		}
	})

	criteria := []models.ScoringCriterion{
		{Type: models.CriterionCustom, Value: "has_email", Points: 5, Weight: 1},
		{Type: models.CriterionCustom, Value: "bogus", Points: 5, Weight: 1},
	}
	result := scorer.Score(&models.Candidate{Email: "a@b.c"}, criteria)

	assert.Equal(t, 5.0, result.Points)
	assert.Len(t, result.Errors, 1)
}

func TestScorePointsByTypeAccumulates(t *testing.T) {
	scorer := NewCriteriaScorer(nil)

	criteria := []models.ScoringCriterion{
		{Type: models.CriterionSkill, Value: "Go", Points: 10, Weight: 1},
		{Type: models.CriterionSkill, Value: "Python", Points: 10, Weight: 1},
		{Type: models.CriterionLanguage, Value: "English", Points: 4, Weight: 1},
	}
	candidate := &models.Candidate{
		Skills:    models.StringList{"Go", "Python"},
		Languages: models.StringList{"English"},
	}

	result := scorer.Score(candidate, criteria)

	assert.Equal(t, 20.0, result.PointsByType["skill"])
	assert.Equal(t, 4.0, result.PointsByType["language"])
}
