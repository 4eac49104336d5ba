package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"talentmatch/matching-engine/internal/models"
)

type MatchRunRepository interface {
	Create(run *models.MatchRun) error
	FindByID(id uuid.UUID) (*models.MatchRun, error)
	UpdateStatus(id uuid.UUID, status models.MatchRunStatus, partial bool) error
	UpdateError(id uuid.UUID, errorMsg string) error
	FindPendingRuns(limit int) ([]models.MatchRun, error)
}

type MatchResultRepository interface {
	ReplaceForJob(jobID uuid.UUID, results []models.MatchResult) error
	UpsertOne(result *models.MatchResult) error
	FindByRun(runID uuid.UUID) ([]models.MatchResult, error)
	FindByJob(jobID uuid.UUID, excludeDisqualified bool) ([]models.MatchResult, error)
	FindByID(id uuid.UUID) (*models.MatchResult, error)
}

type matchRunRepository struct {
	db *gorm.DB
}

func NewMatchRunRepository(db *gorm.DB) MatchRunRepository {
	return &matchRunRepository{db: db}
}

func (r *matchRunRepository) Create(run *models.MatchRun) error {
	if err := r.db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to create match run: %w", err)
	}
	return nil
}

func (r *matchRunRepository) FindByID(id uuid.UUID) (*models.MatchRun, error) {
	var run models.MatchRun
	if err := r.db.Where("id = ?", id).First(&run).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("match run not found")
		}
		return nil, fmt.Errorf("failed to find match run: %w", err)
	}
	return &run, nil
}

func (r *matchRunRepository) UpdateStatus(id uuid.UUID, status models.MatchRunStatus, partial bool) error {
	result := r.db.Model(&models.MatchRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          status,
			"partial_results": partial,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update run status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("match run not found")
	}
	return nil
}

func (r *matchRunRepository) UpdateError(id uuid.UUID, errorMsg string) error {
	result := r.db.Model(&models.MatchRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.RunFailed,
			"error_message": errorMsg,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update run error: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("match run not found")
	}
	return nil
}

func (r *matchRunRepository) FindPendingRuns(limit int) ([]models.MatchRun, error) {
	var runs []models.MatchRun
	err := r.db.
		Where("status = ?", models.RunQueued).
		Order("created_at ASC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find pending runs: %w", err)
	}
	return runs, nil
}

type matchResultRepository struct {
	db *gorm.DB
}

func NewMatchResultRepository(db *gorm.DB) MatchResultRepository {
	return &matchResultRepository{db: db}
}

// ReplaceForJob implements MatchResultRepository. One run produces a complete
// replacement set for the job, written in a single transaction so readers see
// either the full old ranking or the full new one.
func (r *matchResultRepository) ReplaceForJob(jobID uuid.UUID, results []models.MatchResult) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.MatchResult{}).Error; err != nil {
			return fmt.Errorf("failed to delete previous results: %w", err)
		}

		if len(results) == 0 {
			return nil
		}

		for i := range results {
			if results[i].ID == uuid.Nil {
				results[i].ID = uuid.New()
			}
		}

		if err := tx.Create(&results).Error; err != nil {
			return fmt.Errorf("failed to insert results: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace match results: %w", err)
	}
	return nil
}

// UpsertOne implements MatchResultRepository for the single-candidate scoped
// variant: the (candidate_id, job_id) row is overwritten, the rest of the
// job's result set is untouched.
func (r *matchResultRepository) UpsertOne(result *models.MatchResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	result.UpdatedAt = time.Now()

	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "candidate_id"}, {Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"run_id", "cosine_similarity", "criteria_score", "criteria_max_score",
			"criteria_percentage", "combined_score", "rank", "score_breakdown",
			"matched_criteria", "missing_criteria", "rules_applied",
			"pre_filter_passed", "disqualified", "disqualified_by", "updated_at",
		}),
	}).Create(result).Error
	if err != nil {
		return fmt.Errorf("failed to upsert match result: %w", err)
	}
	return nil
}

func (r *matchResultRepository) FindByRun(runID uuid.UUID) ([]models.MatchResult, error) {
	var results []models.MatchResult
	err := r.db.
		Where("run_id = ?", runID).
		Order("rank ASC NULLS LAST, candidate_id ASC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find run results: %w", err)
	}
	return results, nil
}

func (r *matchResultRepository) FindByJob(jobID uuid.UUID, excludeDisqualified bool) ([]models.MatchResult, error) {
	query := r.db.Where("job_id = ?", jobID)
	if excludeDisqualified {
		query = query.Where("disqualified = ?", false)
	}

	var results []models.MatchResult
	err := query.
		Order("rank ASC NULLS LAST, candidate_id ASC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find job results: %w", err)
	}
	return results, nil
}

func (r *matchResultRepository) FindByID(id uuid.UUID) (*models.MatchResult, error) {
	var result models.MatchResult
	if err := r.db.Where("id = ?", id).First(&result).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("match result not found")
		}
		return nil, fmt.Errorf("failed to find match result: %w", err)
	}
	return &result, nil
}
