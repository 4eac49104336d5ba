package repositories

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"talentmatch/matching-engine/internal/models"
)

type CriterionRepository interface {
	FindByJob(jobID uuid.UUID) ([]models.ScoringCriterion, error)
	ReplaceForJob(jobID uuid.UUID, criteria []models.ScoringCriterion) error
}

type criterionRepository struct {
	db *gorm.DB
}

func NewCriterionRepository(db *gorm.DB) CriterionRepository {
	return &criterionRepository{db: db}
}

// FindByJob implements CriterionRepository. Criteria keep their configured
// position so the replace-set round-trips in order.
func (r *criterionRepository) FindByJob(jobID uuid.UUID) ([]models.ScoringCriterion, error) {
	var criteria []models.ScoringCriterion
	err := r.db.
		Where("job_id = ?", jobID).
		Order("position ASC").
		Find(&criteria).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find criteria: %w", err)
	}
	return criteria, nil
}

// ReplaceForJob implements CriterionRepository. The ordered criterion list is
// replaced all-or-nothing: delete-then-insert inside one transaction, so
// readers never observe a partial list.
func (r *criterionRepository) ReplaceForJob(jobID uuid.UUID, criteria []models.ScoringCriterion) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.ScoringCriterion{}).Error; err != nil {
			return fmt.Errorf("failed to delete existing criteria: %w", err)
		}

		if len(criteria) == 0 {
			return nil
		}

		for i := range criteria {
			criteria[i].JobID = jobID
			criteria[i].Position = i
			if criteria[i].ID == uuid.Nil {
				criteria[i].ID = uuid.New()
			}
		}

		if err := tx.Create(&criteria).Error; err != nil {
			return fmt.Errorf("failed to insert criteria: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace criteria: %w", err)
	}
	return nil
}
