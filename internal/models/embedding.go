package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityCandidate EntityType = "candidate"
	EntityJob       EntityType = "job"
)

// Vector names stored per entity. The combined vector is the one queried for
// similarity search.
const (
	VectorFullText   = "full_text"
	VectorSkills     = "skills"
	VectorExperience = "experience"
	VectorCombined   = "combined"
)

// VectorMap holds the named vectors of one entity as a JSONB column.
type VectorMap map[string][]float32

func (m VectorMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vector map: %w", err)
	}
	return string(b), nil
}

func (m *VectorMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for vector map: %T", value)
	}

	return json.Unmarshal(data, m)
}

// EmbeddingRecord caches the computed vectors for one entity. ContentHash is a
// sha256 over the named source texts; recomputation is skipped while the hash
// is unchanged. At most one record exists per (entity_type, entity_id).
type EmbeddingRecord struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	EntityType  EntityType `gorm:"type:text;not null;uniqueIndex:idx_embeddings_entity" json:"entity_type"`
	EntityID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_embeddings_entity" json:"entity_id"`
	ContentHash string     `gorm:"type:text;not null" json:"content_hash"`
	ModelID     string     `gorm:"type:text;not null" json:"model_id"`
	Dimensions  int        `gorm:"not null" json:"dimensions"`
	Vectors     VectorMap  `gorm:"type:jsonb" json:"vectors"`
	CreatedAt   time.Time  `gorm:"type:timestamp;default:now()" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"type:timestamp;default:now()" json:"updated_at"`
}

func (EmbeddingRecord) TableName() string {
	return "embedding_records"
}

// Combined returns the weighted combined vector, or nil if absent.
func (e *EmbeddingRecord) Combined() []float32 {
	if e == nil || e.Vectors == nil {
		return nil
	}
	return e.Vectors[VectorCombined]
}
