package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"talentmatch/matching-engine/internal/models"
)

type EmbeddingRepository interface {
	FindByEntity(entityType models.EntityType, entityID uuid.UUID) (*models.EmbeddingRecord, error)
	Upsert(record *models.EmbeddingRecord) error
	DeleteByEntity(entityType models.EntityType, entityID uuid.UUID) error
}

type embeddingRepository struct {
	db *gorm.DB
}

func NewEmbeddingRepository(db *gorm.DB) EmbeddingRepository {
	return &embeddingRepository{db: db}
}

// FindByEntity implements EmbeddingRepository. A missing record is returned as
// (nil, nil) so callers can treat it as a cache miss rather than an error.
func (r *embeddingRepository) FindByEntity(entityType models.EntityType, entityID uuid.UUID) (*models.EmbeddingRecord, error) {
	var record models.EmbeddingRecord
	err := r.db.
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find embedding record: %w", err)
	}
	return &record, nil
}

// Upsert implements EmbeddingRepository. The unique (entity_type, entity_id)
// index plus ON CONFLICT update keeps concurrent writers convergent: the row
// is only rewritten, never duplicated.
func (r *embeddingRepository) Upsert(record *models.EmbeddingRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.UpdatedAt = time.Now()

	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_type"}, {Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"content_hash", "model_id", "dimensions", "vectors", "updated_at",
		}),
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to upsert embedding record: %w", err)
	}
	return nil
}

func (r *embeddingRepository) DeleteByEntity(entityType models.EntityType, entityID uuid.UUID) error {
	err := r.db.
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Delete(&models.EmbeddingRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete embedding record: %w", err)
	}
	return nil
}
