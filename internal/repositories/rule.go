package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"talentmatch/matching-engine/internal/models"
)

type RuleRepository interface {
	Create(rule *models.ScoringRule) error
	FindByID(id uuid.UUID) (*models.ScoringRule, error)
	Update(rule *models.ScoringRule) error
	Delete(id uuid.UUID) error
	FindForJob(jobID uuid.UUID) ([]models.ScoringRule, error)
	FindByTemplate(templateID uuid.UUID) ([]models.ScoringRule, error)
	ApplyTemplate(templateID, jobID uuid.UUID) ([]models.ScoringRule, error)
}

type ruleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) Create(rule *models.ScoringRule) error {
	if err := r.db.Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

func (r *ruleRepository) FindByID(id uuid.UUID) (*models.ScoringRule, error) {
	var rule models.ScoringRule
	if err := r.db.Where("id = ?", id).First(&rule).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("rule not found: %w", err)
		}
		return nil, fmt.Errorf("failed to find rule: %w", err)
	}
	return &rule, nil
}

func (r *ruleRepository) Update(rule *models.ScoringRule) error {
	rule.UpdatedAt = time.Now()
	result := r.db.Model(&models.ScoringRule{}).
		Where("id = ?", rule.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(rule)
	if result.Error != nil {
		return fmt.Errorf("failed to update rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("rule not found")
	}
	return nil
}

func (r *ruleRepository) Delete(id uuid.UUID) error {
	result := r.db.Where("id = ?", id).Delete(&models.ScoringRule{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("rule not found")
	}
	return nil
}

// FindForJob returns the active rules that apply to a matching run for the
// job: global rules plus the job's own. Template rules only take effect once
// applied (copied with job scope).
func (r *ruleRepository) FindForJob(jobID uuid.UUID) ([]models.ScoringRule, error) {
	var rules []models.ScoringRule
	err := r.db.
		Where("active = ?", true).
		Where("scope = ? OR (scope = ? AND job_id = ?)", models.ScopeGlobal, models.ScopeJob, jobID).
		Order("priority DESC, execution_order ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find rules for job: %w", err)
	}
	return rules, nil
}

func (r *ruleRepository) FindByTemplate(templateID uuid.UUID) ([]models.ScoringRule, error) {
	var rules []models.ScoringRule
	err := r.db.
		Where("scope = ? AND template_id = ?", models.ScopeTemplate, templateID).
		Order("priority DESC, execution_order ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find template rules: %w", err)
	}
	return rules, nil
}

// ApplyTemplate copies a template's rules onto a job with job scoping. The
// copies are inserted in one transaction and returned.
func (r *ruleRepository) ApplyTemplate(templateID, jobID uuid.UUID) ([]models.ScoringRule, error) {
	source, err := r.FindByTemplate(templateID)
	if err != nil {
		return nil, err
	}
	if len(source) == 0 {
		return nil, fmt.Errorf("template has no rules")
	}

	copies := make([]models.ScoringRule, 0, len(source))
	now := time.Now()
	for _, rule := range source {
		jID := jobID
		copies = append(copies, models.ScoringRule{
			ID:             uuid.New(),
			Name:           rule.Name,
			Scope:          models.ScopeJob,
			JobID:          &jID,
			RuleType:       rule.RuleType,
			Priority:       rule.Priority,
			ExecutionOrder: rule.ExecutionOrder,
			StopOnMatch:    rule.StopOnMatch,
			Active:         rule.Active,
			Conditions:     rule.Conditions,
			Actions:        rule.Actions,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&copies).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply template: %w", err)
	}

	return copies, nil
}
