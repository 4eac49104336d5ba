package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentmatch/matching-engine/internal/models"
)

func newRuleContext(similarity, percentage float64) *RuleContext {
	ctx := &RuleContext{
		Fields: map[string]interface{}{
			"candidate": map[string]interface{}{
				"location":         "Berlin",
				"skills":           []string{"Go", "Python"},
				"years_experience": 5.0,
			},
			"score": map[string]interface{}{
				"similarity": similarity,
			},
		},
		Similarity: similarity,
		Criteria: CriteriaScoreResult{
			Points:       percentage,
			MaxPoints:    100,
			Percentage:   percentage,
			PointsByType: map[string]float64{"skill": percentage},
		},
		SemanticWeight: 0.4,
		CriteriaWeight: 0.6,
	}
	ctx.Recombine()
	return ctx
}

func TestEvalCondition(t *testing.T) {
	fields := newRuleContext(0.8, 80).Fields

	tests := []struct {
		name      string
		condition Condition
		want      bool
		wantErr   bool
	}{
		{
			name:      "eq string case insensitive",
			condition: Condition{Op: "eq", Field: "candidate.location", Value: "berlin"},
			want:      true,
		},
		{
			name:      "neq",
			condition: Condition{Op: "neq", Field: "candidate.location", Value: "Munich"},
			want:      true,
		},
		{
			name:      "neq on missing field is true",
			condition: Condition{Op: "neq", Field: "candidate.salary", Value: 100},
			want:      true,
		},
		{
			name:      "gte numeric",
			condition: Condition{Op: "gte", Field: "candidate.years_experience", Value: 5},
			want:      true,
		},
		{
			name:      "lt numeric",
			condition: Condition{Op: "lt", Field: "score.similarity", Value: 0.5},
			want:      false,
		},
		{
			name:      "contains string slice",
			condition: Condition{Op: "contains", Field: "candidate.skills", Value: "go"},
			want:      true,
		},
		{
			name:      "in list",
			condition: Condition{Op: "in", Field: "candidate.location", Value: []interface{}{"Berlin", "Hamburg"}},
			want:      true,
		},
		{
			name:      "exists",
			condition: Condition{Op: "exists", Field: "candidate.skills"},
			want:      true,
		},
		{
			name:      "exists missing path",
			condition: Condition{Op: "exists", Field: "candidate.salary.expected"},
			want:      false,
		},
		{
			name: "and short circuits",
			condition: Condition{Op: "and", Conditions: []Condition{
				{Op: "eq", Field: "candidate.location", Value: "Berlin"},
				{Op: "gt", Field: "candidate.years_experience", Value: 10},
			}},
			want: false,
		},
		{
			name: "or",
			condition: Condition{Op: "or", Conditions: []Condition{
				{Op: "eq", Field: "candidate.location", Value: "Munich"},
				{Op: "contains", Field: "candidate.skills", Value: "Python"},
			}},
			want: true,
		},
		{
			name: "not",
			condition: Condition{Op: "not", Conditions: []Condition{
				{Op: "eq", Field: "candidate.location", Value: "Munich"},
			}},
			want: true,
		},
		{
			name:      "unknown operator errors",
			condition: Condition{Op: "between", Field: "candidate.years_experience", Value: 3},
			wantErr:   true,
		},
		{
			name:      "ordering on non numeric field errors",
			condition: Condition{Op: "gt", Field: "candidate.location", Value: 3},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalCondition(&tt.condition, fields)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyOverallModifier(t *testing.T) {
	engine := NewRuleEngine()

	t.Run("additive", func(t *testing.T) {
		ctx := newRuleContext(0.8, 80)
		rules := []models.ScoringRule{
			{Name: "bonus", RuleType: models.RuleOverallMod, Active: true,
				Actions: models.JSONMap{"additive": 5}},
		}

		result := engine.Apply(rules, ctx)

		assert.Equal(t, 85.0, result.AdjustedScore)
		require.Len(t, result.Trail, 1)
		assert.Equal(t, 80.0, result.Trail[0].ScoreBefore)
		assert.Equal(t, 85.0, result.Trail[0].ScoreAfter)
		assert.Equal(t, 5.0, result.Trail[0].Delta)
	})

	t.Run("percent then clamp to 100", func(t *testing.T) {
		ctx := newRuleContext(0.9, 95)
		rules := []models.ScoringRule{
			{Name: "big boost", RuleType: models.RuleOverallMod, Active: true,
				Actions: models.JSONMap{"percent": 50}},
		}

		result := engine.Apply(rules, ctx)

		assert.Equal(t, 100.0, result.AdjustedScore)
	})

	t.Run("clamp to 0", func(t *testing.T) {
		ctx := newRuleContext(0.1, 10)
		rules := []models.ScoringRule{
			{Name: "penalty", RuleType: models.RuleOverallMod, Active: true,
				Actions: models.JSONMap{"additive": -500}},
		}

		result := engine.Apply(rules, ctx)

		assert.Equal(t, 0.0, result.AdjustedScore)
	})
}

func TestApplyOrderingAndHalts(t *testing.T) {
	engine := NewRuleEngine()

	t.Run("priority desc then execution order asc", func(t *testing.T) {
		ctx := newRuleContext(0.8, 80)
		rules := []models.ScoringRule{
			{Name: "second", RuleType: models.RuleOverallMod, Active: true, Priority: 5, ExecutionOrder: 2,
				Actions: models.JSONMap{"additive": 1}},
			{Name: "third", RuleType: models.RuleOverallMod, Active: true, Priority: 1,
				Actions: models.JSONMap{"additive": 1}},
			{Name: "first", RuleType: models.RuleOverallMod, Active: true, Priority: 5, ExecutionOrder: 1,
				Actions: models.JSONMap{"additive": 1}},
		}

		result := engine.Apply(rules, ctx)

		require.Len(t, result.Trail, 3)
		assert.Equal(t, "first", result.Trail[0].RuleName)
		assert.Equal(t, "second", result.Trail[1].RuleName)
		assert.Equal(t, "third", result.Trail[2].RuleName)
	})

	t.Run("pre filter runs before higher priority rules", func(t *testing.T) {
		ctx := newRuleContext(0.8, 80)
		rules := []models.ScoringRule{
			{Name: "boost", RuleType: models.RuleOverallMod, Active: true, Priority: 100,
				Actions: models.JSONMap{"additive": 10}},
			{Name: "location gate", RuleType: models.RulePreFilter, Active: true, Priority: 0,
				Conditions: models.JSONMap{"op": "neq", "field": "candidate.location", "value": "Berlin"}},
		}

		// The gate does not fire (location is Berlin) so the boost still runs.
		result := engine.Apply(rules, ctx)
		assert.True(t, result.PreFilterPassed)
		require.Len(t, result.Trail, 1)
		assert.Equal(t, "boost", result.Trail[0].RuleName)

		// Move the candidate: the gate fires first and the boost never runs.
		ctx = newRuleContext(0.8, 80)
		ctx.Fields["candidate"].(map[string]interface{})["location"] = "Munich"
		result = engine.Apply(rules, ctx)

		assert.True(t, result.Disqualified)
		assert.False(t, result.PreFilterPassed)
		assert.Equal(t, "location gate", result.DisqualifiedBy)
		require.Len(t, result.Trail, 1)
		assert.Equal(t, "location gate", result.Trail[0].RuleName)
		assert.Equal(t, "disqualified", result.Trail[0].Note)
	})

	t.Run("disqualify halts unconditionally", func(t *testing.T) {
		ctx := newRuleContext(0.8, 80)
		rules := []models.ScoringRule{
			{Name: "hard no", RuleType: models.RuleDisqualify, Active: true, Priority: 10},
			{Name: "boost", RuleType: models.RuleOverallMod, Active: true, Priority: 1,
				Actions: models.JSONMap{"additive": 10}},
		}

		result := engine.Apply(rules, ctx)

		assert.True(t, result.Disqualified)
		assert.Equal(t, "hard no", result.DisqualifiedBy)
		require.Len(t, result.Trail, 1)
	})

	t.Run("stop on match halts after firing", func(t *testing.T) {
		ctx := newRuleContext(0.8, 80)
		rules := []models.ScoringRule{
			{Name: "first", RuleType: models.RuleOverallMod, Active: true, Priority: 2, StopOnMatch: true,
				Actions: models.JSONMap{"additive": 1}},
			{Name: "never", RuleType: models.RuleOverallMod, Active: true, Priority: 1,
				Actions: models.JSONMap{"additive": 1}},
		}

		result := engine.Apply(rules, ctx)

		require.Len(t, result.Trail, 1)
		assert.Equal(t, "first", result.Trail[0].RuleName)
		assert.Equal(t, 81.0, result.AdjustedScore)
	})

	t.Run("stop on match does not halt when the rule does not fire", func(t *testing.T) {
		ctx := newRuleContext(0.8, 80)
		rules := []models.ScoringRule{
			{Name: "dormant", RuleType: models.RuleOverallMod, Active: true, Priority: 2, StopOnMatch: true,
				Conditions: models.JSONMap{"op": "eq", "field": "candidate.location", "value": "Munich"},
				Actions:    models.JSONMap{"additive": 50}},
			{Name: "runs", RuleType: models.RuleOverallMod, Active: true, Priority: 1,
				Actions: models.JSONMap{"additive": 1}},
		}

		result := engine.Apply(rules, ctx)

		require.Len(t, result.Trail, 1)
		assert.Equal(t, "runs", result.Trail[0].RuleName)
	})

	t.Run("inactive rules are ignored", func(t *testing.T) {
		ctx := newRuleContext(0.8, 80)
		rules := []models.ScoringRule{
			{Name: "off", RuleType: models.RuleDisqualify, Active: false},
		}

		result := engine.Apply(rules, ctx)

		assert.False(t, result.Disqualified)
		assert.Empty(t, result.Trail)
	})
}

func TestApplySkipsMalformedRules(t *testing.T) {
	engine := NewRuleEngine()
	ctx := newRuleContext(0.8, 80)

	rules := []models.ScoringRule{
		{Name: "broken condition", RuleType: models.RuleOverallMod, Active: true, Priority: 3,
			Conditions: models.JSONMap{"op": "between", "field": "candidate.years_experience"},
			Actions:    models.JSONMap{"additive": 50}},
		{Name: "broken action", RuleType: models.RuleCategoryBoost, Active: true, Priority: 2,
			Actions: models.JSONMap{"multiplier": 2}},
		{Name: "fine", RuleType: models.RuleOverallMod, Active: true, Priority: 1,
			Actions: models.JSONMap{"additive": 5}},
	}

	result := engine.Apply(rules, ctx)

	assert.ElementsMatch(t, []string{"broken condition", "broken action"}, result.SkippedRules)
	assert.Equal(t, 85.0, result.AdjustedScore)
	require.Len(t, result.Trail, 1)
	assert.Equal(t, "fine", result.Trail[0].RuleName)
}

func TestApplyCategoryBoost(t *testing.T) {
	engine := NewRuleEngine()
	ctx := newRuleContext(0.8, 80)

	rules := []models.ScoringRule{
		{Name: "skill boost", RuleType: models.RuleCategoryBoost, Active: true,
			Actions: models.JSONMap{"category": "skill", "multiplier": 1.25}},
	}

	result := engine.Apply(rules, ctx)

	// Skill points 80 -> 100, criteria percentage 80% -> 100%, so the blended
	// score moves from 0.4*80 + 0.6*80 to 0.4*80 + 0.6*100.
	assert.Equal(t, 100.0, ctx.Criteria.PointsByType["skill"])
	assert.Equal(t, 100.0, ctx.Criteria.Percentage)
	assert.Equal(t, 92.0, result.AdjustedScore)
}

func TestApplyWeightAdjuster(t *testing.T) {
	engine := NewRuleEngine()
	ctx := newRuleContext(1.0, 50)
	sem := 0.8
	crit := 0.2

	rules := []models.ScoringRule{
		{Name: "trust the vectors", RuleType: models.RuleWeightAdjuster, Active: true,
			Actions: models.JSONMap{"semantic_weight": sem, "criteria_weight": crit}},
	}

	result := engine.Apply(rules, ctx)

	// 0.8*1.0*100 + 0.2*50 = 90, up from 0.4*100 + 0.6*50 = 70.
	assert.Equal(t, 90.0, result.AdjustedScore)
	assert.Equal(t, 0.8, ctx.SemanticWeight)
	assert.Equal(t, 0.2, ctx.CriteriaWeight)
}

func TestValidateRuleDefinition(t *testing.T) {
	tests := []struct {
		name    string
		rule    models.ScoringRule
		wantErr bool
	}{
		{
			name: "valid pre filter",
			rule: models.ScoringRule{RuleType: models.RulePreFilter,
				Conditions: models.JSONMap{"op": "lt", "field": "candidate.years_experience", "value": 2}},
		},
		{
			name:    "unknown rule type",
			rule:    models.ScoringRule{RuleType: "SUPER_BOOST"},
			wantErr: true,
		},
		{
			name: "unknown operator",
			rule: models.ScoringRule{RuleType: models.RuleDisqualify,
				Conditions: models.JSONMap{"op": "between", "field": "x"}},
			wantErr: true,
		},
		{
			name: "empty and",
			rule: models.ScoringRule{RuleType: models.RuleDisqualify,
				Conditions: models.JSONMap{"op": "and"}},
			wantErr: true,
		},
		{
			name: "not with two operands",
			rule: models.ScoringRule{RuleType: models.RuleDisqualify,
				Conditions: models.JSONMap{"op": "not", "conditions": []interface{}{
					map[string]interface{}{"op": "exists", "field": "a"},
					map[string]interface{}{"op": "exists", "field": "b"},
				}}},
			wantErr: true,
		},
		{
			name: "comparison without field",
			rule: models.ScoringRule{RuleType: models.RuleDisqualify,
				Conditions: models.JSONMap{"op": "eq", "value": 1}},
			wantErr: true,
		},
		{
			name: "category boost without category",
			rule: models.ScoringRule{RuleType: models.RuleCategoryBoost,
				Actions: models.JSONMap{"multiplier": 2}},
			wantErr: true,
		},
		{
			name: "weight adjuster without weights",
			rule: models.ScoringRule{RuleType: models.RuleWeightAdjuster,
				Actions: models.JSONMap{}},
			wantErr: true,
		},
		{
			name: "weight adjuster out of range",
			rule: models.ScoringRule{RuleType: models.RuleWeightAdjuster,
				Actions: models.JSONMap{"semantic_weight": 1.5}},
			wantErr: true,
		},
		{
			name: "valid overall modifier",
			rule: models.ScoringRule{RuleType: models.RuleOverallMod,
				Actions: models.JSONMap{"percent": -10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRuleDefinition(&tt.rule)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRuleDefinition)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
