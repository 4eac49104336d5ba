package services

import (
	"fmt"
	"math"
	"strings"

	"talentmatch/matching-engine/internal/models"
)

// CustomEvaluator is the pluggable predicate behind custom-type criteria. It
// reports whether the candidate satisfies the criterion value.
type CustomEvaluator func(candidate *models.Candidate, value string) (bool, error)

// CriteriaScoreResult is the outcome of scoring one candidate against a job's
// criterion list.
type CriteriaScoreResult struct {
	Points         float64
	MaxPoints      float64
	Percentage     float64
	Matched        []string
	Missing        []string
	Disqualified   bool
	DisqualifiedBy string
	// PointsByType holds each criterion type's share of Points, the
	// sub-components CATEGORY_BOOST rules act on.
	PointsByType map[string]float64
	// Errors records per-criterion evaluation problems without failing the
	// candidate (they end up in the score breakdown).
	Errors []string
}

type CriteriaScorer interface {
	Score(candidate *models.Candidate, criteria []models.ScoringCriterion) CriteriaScoreResult
}

type criteriaScorer struct {
	customEval CustomEvaluator
}

// NewCriteriaScorer builds a scorer. customEval may be nil, in which case
// custom criteria evaluate as errors (non-matching, or conservatively
// disqualifying when required).
func NewCriteriaScorer(customEval CustomEvaluator) CriteriaScorer {
	return &criteriaScorer{customEval: customEval}
}

// Score implements CriteriaScorer. A job with no criteria scores 100% by
// convention so candidates are not penalized for unconfigured jobs.
func (s *criteriaScorer) Score(candidate *models.Candidate, criteria []models.ScoringCriterion) CriteriaScoreResult {
	result := CriteriaScoreResult{
		PointsByType: make(map[string]float64),
	}

	if len(criteria) == 0 {
		result.Percentage = 100
		return result
	}

	for i := range criteria {
		criterion := &criteria[i]
		result.MaxPoints += criterion.MaxAchievable()

		if criterion.Type.IsContinuous() {
			s.scoreExperience(candidate, criterion, &result)
			continue
		}

		matched, err := s.matches(candidate, criterion)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s %q: %v", criterion.Type, criterion.Value, err))
			if criterion.IsRequired {
				// A required criterion that cannot be evaluated disqualifies
				// conservatively, with the reason recorded.
				s.disqualify(&result, criterion)
			} else {
				result.Missing = append(result.Missing, criterionLabel(criterion))
			}
			continue
		}

		if matched {
			award := criterion.Points * criterion.Weight
			result.Points += award
			result.PointsByType[string(criterion.Type)] += award
			result.Matched = append(result.Matched, criterionLabel(criterion))
			continue
		}

		if criterion.IsRequired {
			s.disqualify(&result, criterion)
		}
		result.Missing = append(result.Missing, criterionLabel(criterion))
	}

	if result.MaxPoints > 0 {
		result.Percentage = round2(result.Points / result.MaxPoints * 100)
	} else {
		result.Percentage = 100
	}

	return result
}

func (s *criteriaScorer) scoreExperience(candidate *models.Candidate, criterion *models.ScoringCriterion, result *CriteriaScoreResult) {
	years := candidate.RelevantYears(criterion.Value)

	if years < criterion.MinValue {
		if criterion.IsRequired {
			s.disqualify(result, criterion)
		}
		result.Missing = append(result.Missing, criterionLabel(criterion))
		return
	}

	award := math.Min(criterion.MaxPoints, math.Max(0, years-criterion.MinValue)*criterion.PerUnitPoints)
	result.Points += award
	result.PointsByType[string(criterion.Type)] += award
	result.Matched = append(result.Matched, criterionLabel(criterion))
}

func (s *criteriaScorer) matches(candidate *models.Candidate, criterion *models.ScoringCriterion) (bool, error) {
	switch criterion.Type {
	case models.CriterionSkill:
		return matchesExact(candidate.Skills, criterion.Value), nil
	case models.CriterionLanguage:
		return matchesExact(candidate.Languages, criterion.Value), nil
	case models.CriterionCertification:
		return matchesContaining(candidate.Certifications, criterion.Value), nil
	case models.CriterionEducation:
		return matchesContaining(candidate.Education, criterion.Value), nil
	case models.CriterionCustom:
		if s.customEval == nil {
			return false, fmt.Errorf("%w: no custom evaluator configured", ErrCriterionEvaluation)
		}
		ok, err := s.customEval(candidate, criterion.Value)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrCriterionEvaluation, err)
		}
		return ok, nil
	default:
		return false, fmt.Errorf("%w: unknown criterion type %q", ErrCriterionEvaluation, criterion.Type)
	}
}

func (s *criteriaScorer) disqualify(result *CriteriaScoreResult, criterion *models.ScoringCriterion) {
	result.Disqualified = true
	if result.DisqualifiedBy == "" {
		result.DisqualifiedBy = criterionLabel(criterion)
	}
}

func criterionLabel(criterion *models.ScoringCriterion) string {
	return fmt.Sprintf("%s:%s", criterion.Type, criterion.Value)
}

// matchesExact checks for a normalized, case-insensitive equality match of
// value in the collection. Skills and languages are short tokens where
// substring matching produces false positives ("Go" inside "Django").
func matchesExact(collection []string, value string) bool {
	needle := normalize(value)
	if needle == "" {
		return false
	}
	for _, entry := range collection {
		if normalize(entry) == needle {
			return true
		}
	}
	return false
}

// matchesContaining additionally matches value by containment within longer
// entries (degree names, certification titles).
func matchesContaining(collection []string, value string) bool {
	needle := normalize(value)
	if needle == "" {
		return false
	}
	for _, entry := range collection {
		candidate := normalize(entry)
		if candidate == needle || strings.Contains(candidate, needle) {
			return true
		}
	}
	return false
}

// normalize lowercases, trims and collapses inner whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
