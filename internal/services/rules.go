package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"talentmatch/matching-engine/internal/models"
)

// Condition is one node of a rule's boolean expression tree. Logical ops
// (and/or/not) use Conditions; comparison ops use Field (a dotted path into
// the evaluation context) and Value.
type Condition struct {
	Op         string      `mapstructure:"op"`
	Field      string      `mapstructure:"field"`
	Value      interface{} `mapstructure:"value"`
	Conditions []Condition `mapstructure:"conditions"`
}

type DisqualifyAction struct {
	Reason string `mapstructure:"reason"`
}

type CategoryBoostAction struct {
	Category   string  `mapstructure:"category"`
	Multiplier float64 `mapstructure:"multiplier"`
	Additive   float64 `mapstructure:"additive"`
}

type WeightAdjusterAction struct {
	SemanticWeight *float64 `mapstructure:"semantic_weight"`
	CriteriaWeight *float64 `mapstructure:"criteria_weight"`
}

type OverallModifierAction struct {
	Additive float64 `mapstructure:"additive"`
	Percent  float64 `mapstructure:"percent"`
}

// RuleContext carries everything a rule may read or adjust for one candidate:
// the flattened field map for conditions, the similarity and criteria
// components, the weight mix and the current intermediate score.
type RuleContext struct {
	Fields         map[string]interface{}
	Similarity     float64
	Criteria       CriteriaScoreResult
	SemanticWeight float64
	CriteriaWeight float64
	Score          float64
}

// Recombine recomputes the intermediate score from the current components.
// No renormalization: the configured weights define the scale.
func (c *RuleContext) Recombine() {
	if c.Criteria.MaxPoints > 0 {
		c.Criteria.Percentage = round2(c.Criteria.Points / c.Criteria.MaxPoints * 100)
	} else {
		c.Criteria.Percentage = 100
	}
	c.Score = c.SemanticWeight*c.Similarity*100 + c.CriteriaWeight*c.Criteria.Percentage
}

// RuleEvalResult is the outcome of running the rule set for one candidate.
type RuleEvalResult struct {
	AdjustedScore   float64
	Disqualified    bool
	DisqualifiedBy  string
	PreFilterPassed bool
	Trail           models.RuleTrail
	// SkippedRules names rules whose definitions could not be interpreted;
	// they are skipped without aborting the run.
	SkippedRules []string
}

type RuleEngine interface {
	Apply(rules []models.ScoringRule, ctx *RuleContext) RuleEvalResult
}

type ruleEngine struct{}

func NewRuleEngine() RuleEngine {
	return &ruleEngine{}
}

// Apply implements RuleEngine. PRE_FILTER rules run first and can only
// disqualify. The rest run in priority-descending, execution-order-ascending
// order; DISQUALIFY always halts, stop_on_match halts after any firing.
func (e *ruleEngine) Apply(rules []models.ScoringRule, ctx *RuleContext) RuleEvalResult {
	result := RuleEvalResult{
		PreFilterPassed: true,
		AdjustedScore:   ctx.Score,
	}

	ordered := make([]models.ScoringRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Active {
			ordered = append(ordered, rule)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		// PRE_FILTER ahead of everything, then priority desc, execution asc.
		if (a.RuleType == models.RulePreFilter) != (b.RuleType == models.RulePreFilter) {
			return a.RuleType == models.RulePreFilter
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ExecutionOrder < b.ExecutionOrder
	})

	for i := range ordered {
		rule := &ordered[i]

		fired, err := e.evaluateConditions(rule, ctx)
		if err != nil {
			log.Printf("⚠️  Skipping rule %q: %v\n", rule.Name, err)
			result.SkippedRules = append(result.SkippedRules, rule.Name)
			continue
		}
		if !fired {
			continue
		}

		before := ctx.Score
		halt, err := e.applyAction(rule, ctx, &result)
		if err != nil {
			log.Printf("⚠️  Skipping rule %q action: %v\n", rule.Name, err)
			result.SkippedRules = append(result.SkippedRules, rule.Name)
			continue
		}

		result.Trail = append(result.Trail, models.RuleApplication{
			RuleName:    rule.Name,
			RuleType:    string(rule.RuleType),
			ScoreBefore: before,
			ScoreAfter:  ctx.Score,
			Delta:       round2(ctx.Score - before),
			Note:        e.trailNote(rule, &result),
		})

		if halt {
			break
		}
		if rule.StopOnMatch {
			break
		}
	}

	result.AdjustedScore = ctx.Score
	return result
}

func (e *ruleEngine) trailNote(rule *models.ScoringRule, result *RuleEvalResult) string {
	if result.Disqualified && result.DisqualifiedBy == rule.Name {
		return "disqualified"
	}
	return ""
}

// applyAction mutates the context per the rule type and reports whether
// evaluation must halt unconditionally.
func (e *ruleEngine) applyAction(rule *models.ScoringRule, ctx *RuleContext, result *RuleEvalResult) (bool, error) {
	switch rule.RuleType {
	case models.RulePreFilter, models.RuleDisqualify:
		// PRE_FILTER never boosts: firing means the candidate is out.
		result.Disqualified = true
		result.DisqualifiedBy = rule.Name
		if rule.RuleType == models.RulePreFilter {
			result.PreFilterPassed = false
		}
		return true, nil

	case models.RuleCategoryBoost:
		var action CategoryBoostAction
		if err := decodeAction(rule.Actions, &action); err != nil {
			return false, err
		}
		if action.Category == "" {
			return false, fmt.Errorf("%w: category boost without category", ErrInvalidRuleDefinition)
		}
		current := ctx.Criteria.PointsByType[action.Category]
		boosted := current
		if action.Multiplier != 0 {
			boosted = current * action.Multiplier
		}
		boosted += action.Additive
		ctx.Criteria.PointsByType[action.Category] = boosted
		ctx.Criteria.Points += boosted - current
		ctx.Recombine()
		return false, nil

	case models.RuleWeightAdjuster:
		var action WeightAdjusterAction
		if err := decodeAction(rule.Actions, &action); err != nil {
			return false, err
		}
		if action.SemanticWeight == nil && action.CriteriaWeight == nil {
			return false, fmt.Errorf("%w: weight adjuster without weights", ErrInvalidRuleDefinition)
		}
		if action.SemanticWeight != nil {
			if *action.SemanticWeight < 0 || *action.SemanticWeight > 1 {
				return false, fmt.Errorf("%w: semantic_weight out of range", ErrInvalidRuleDefinition)
			}
			ctx.SemanticWeight = *action.SemanticWeight
		}
		if action.CriteriaWeight != nil {
			if *action.CriteriaWeight < 0 || *action.CriteriaWeight > 1 {
				return false, fmt.Errorf("%w: criteria_weight out of range", ErrInvalidRuleDefinition)
			}
			ctx.CriteriaWeight = *action.CriteriaWeight
		}
		ctx.Recombine()
		return false, nil

	case models.RuleOverallMod:
		var action OverallModifierAction
		if err := decodeAction(rule.Actions, &action); err != nil {
			return false, err
		}
		score := ctx.Score
		if action.Percent != 0 {
			score += score * action.Percent / 100
		}
		score += action.Additive
		ctx.Score = clamp(score, 0, 100)
		return false, nil

	default:
		return false, fmt.Errorf("%w: unknown rule type %q", ErrInvalidRuleDefinition, rule.RuleType)
	}
}

// ValidateRuleDefinition checks a rule's type, condition tree and action
// payload at configuration-write time, so malformed definitions are rejected
// before they can reach a matching run.
func ValidateRuleDefinition(rule *models.ScoringRule) error {
	if !rule.RuleType.Valid() {
		return fmt.Errorf("%w: unknown rule type %q", ErrInvalidRuleDefinition, rule.RuleType)
	}

	if len(rule.Conditions) > 0 {
		var condition Condition
		if err := decodeAction(rule.Conditions, &condition); err != nil {
			return err
		}
		if err := validateCondition(&condition); err != nil {
			return err
		}
	}

	switch rule.RuleType {
	case models.RulePreFilter, models.RuleDisqualify:
		var action DisqualifyAction
		return decodeAction(rule.Actions, &action)
	case models.RuleCategoryBoost:
		var action CategoryBoostAction
		if err := decodeAction(rule.Actions, &action); err != nil {
			return err
		}
		if action.Category == "" {
			return fmt.Errorf("%w: category boost without category", ErrInvalidRuleDefinition)
		}
		return nil
	case models.RuleWeightAdjuster:
		var action WeightAdjusterAction
		if err := decodeAction(rule.Actions, &action); err != nil {
			return err
		}
		if action.SemanticWeight == nil && action.CriteriaWeight == nil {
			return fmt.Errorf("%w: weight adjuster without weights", ErrInvalidRuleDefinition)
		}
		for _, w := range []*float64{action.SemanticWeight, action.CriteriaWeight} {
			if w != nil && (*w < 0 || *w > 1) {
				return fmt.Errorf("%w: weight out of [0,1]", ErrInvalidRuleDefinition)
			}
		}
		return nil
	case models.RuleOverallMod:
		var action OverallModifierAction
		return decodeAction(rule.Actions, &action)
	}
	return nil
}

func validateCondition(c *Condition) error {
	switch strings.ToLower(c.Op) {
	case "and", "or":
		if len(c.Conditions) == 0 {
			return fmt.Errorf("%w: empty %q", ErrInvalidRuleDefinition, c.Op)
		}
		for i := range c.Conditions {
			if err := validateCondition(&c.Conditions[i]); err != nil {
				return err
			}
		}
		return nil
	case "not":
		if len(c.Conditions) != 1 {
			return fmt.Errorf("%w: 'not' needs exactly one operand", ErrInvalidRuleDefinition)
		}
		return validateCondition(&c.Conditions[0])
	case "eq", "neq", "gt", "gte", "lt", "lte", "contains", "in", "exists":
		if c.Field == "" {
			return fmt.Errorf("%w: comparison without field", ErrInvalidRuleDefinition)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidRuleDefinition, c.Op)
	}
}

func decodeAction(raw models.JSONMap, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRuleDefinition, err)
	}
	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRuleDefinition, err)
	}
	return nil
}

func (e *ruleEngine) evaluateConditions(rule *models.ScoringRule, ctx *RuleContext) (bool, error) {
	// A rule without conditions always fires (unconditional modifiers).
	if len(rule.Conditions) == 0 {
		return true, nil
	}

	var condition Condition
	if err := decodeAction(rule.Conditions, &condition); err != nil {
		return false, err
	}

	return evalCondition(&condition, ctx.Fields)
}

// evalCondition walks the expression tree with a pure recursive interpreter
// over the immutable field map.
func evalCondition(c *Condition, fields map[string]interface{}) (bool, error) {
	switch strings.ToLower(c.Op) {
	case "and":
		if len(c.Conditions) == 0 {
			return false, fmt.Errorf("%w: empty 'and'", ErrInvalidRuleDefinition)
		}
		for i := range c.Conditions {
			ok, err := evalCondition(&c.Conditions[i], fields)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case "or":
		if len(c.Conditions) == 0 {
			return false, fmt.Errorf("%w: empty 'or'", ErrInvalidRuleDefinition)
		}
		for i := range c.Conditions {
			ok, err := evalCondition(&c.Conditions[i], fields)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case "not":
		if len(c.Conditions) != 1 {
			return false, fmt.Errorf("%w: 'not' needs exactly one operand", ErrInvalidRuleDefinition)
		}
		ok, err := evalCondition(&c.Conditions[0], fields)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case "eq", "neq", "gt", "gte", "lt", "lte", "contains", "in", "exists":
		return evalComparison(c, fields)

	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidRuleDefinition, c.Op)
	}
}

func evalComparison(c *Condition, fields map[string]interface{}) (bool, error) {
	if c.Field == "" {
		return false, fmt.Errorf("%w: comparison without field", ErrInvalidRuleDefinition)
	}

	value, found := lookupField(fields, c.Field)

	switch strings.ToLower(c.Op) {
	case "exists":
		return found, nil
	case "eq":
		return found && valuesEqual(value, c.Value), nil
	case "neq":
		return !found || !valuesEqual(value, c.Value), nil
	case "contains":
		if !found {
			return false, nil
		}
		return containsValue(value, c.Value), nil
	case "in":
		if !found {
			return false, nil
		}
		options, ok := c.Value.([]interface{})
		if !ok {
			return false, fmt.Errorf("%w: 'in' needs a list value", ErrInvalidRuleDefinition)
		}
		for _, option := range options {
			if valuesEqual(value, option) {
				return true, nil
			}
		}
		return false, nil
	}

	// Numeric ordering operators.
	if !found {
		return false, nil
	}
	left, ok := toFloat(value)
	if !ok {
		return false, fmt.Errorf("%w: field %q is not numeric", ErrInvalidRuleDefinition, c.Field)
	}
	right, ok := toFloat(c.Value)
	if !ok {
		return false, fmt.Errorf("%w: value for %q is not numeric", ErrInvalidRuleDefinition, c.Field)
	}

	switch strings.ToLower(c.Op) {
	case "gt":
		return left > right, nil
	case "gte":
		return left >= right, nil
	case "lt":
		return left < right, nil
	case "lte":
		return left <= right, nil
	}
	return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidRuleDefinition, c.Op)
}

// lookupField resolves a dotted path through nested maps.
func lookupField(fields map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = fields
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func valuesEqual(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return strings.EqualFold(strings.TrimSpace(sa), strings.TrimSpace(sb))
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ba == bb
		}
	}
	return false
}

func containsValue(haystack, needle interface{}) bool {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(h), strings.ToLower(n))
	case []interface{}:
		for _, item := range h {
			if valuesEqual(item, needle) {
				return true
			}
		}
	case []string:
		for _, item := range h {
			if valuesEqual(item, needle) {
				return true
			}
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
