package models

import (
	"time"

	"github.com/google/uuid"
)

type CriterionType string

const (
	CriterionSkill         CriterionType = "skill"
	CriterionLanguage      CriterionType = "language"
	CriterionCertification CriterionType = "certification"
	CriterionExperience    CriterionType = "experience"
	CriterionEducation     CriterionType = "education"
	CriterionCustom        CriterionType = "custom"
)

// IsContinuous reports whether the type is scored on a continuous measure
// (per-unit points with a cap) rather than presence.
func (t CriterionType) IsContinuous() bool {
	return t == CriterionExperience
}

func (t CriterionType) Valid() bool {
	switch t {
	case CriterionSkill, CriterionLanguage, CriterionCertification,
		CriterionExperience, CriterionEducation, CriterionCustom:
		return true
	}
	return false
}

// ScoringCriterion awards points when a candidate attribute matches. For
// continuous types the configured MaxPoints caps both the award and the
// criterion's contribution to the job's maximum achievable score.
type ScoringCriterion struct {
	ID            uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	JobID         uuid.UUID     `gorm:"type:uuid;not null;index" json:"job_id"`
	Type          CriterionType `gorm:"type:text;not null" json:"type"`
	Value         string        `gorm:"type:text;not null" json:"value"`
	Points        float64       `gorm:"type:decimal(8,2);default:0" json:"points"`
	IsRequired    bool          `gorm:"default:false" json:"is_required"`
	Weight        float64       `gorm:"type:decimal(6,3);default:1" json:"weight"`
	MinValue      float64       `gorm:"type:decimal(8,2);default:0" json:"min_value"`
	PerUnitPoints float64       `gorm:"type:decimal(8,2);default:0" json:"per_unit_points"`
	MaxPoints     float64       `gorm:"type:decimal(8,2);default:0" json:"max_points"`
	Position      int           `gorm:"default:0" json:"position"`
	CreatedAt     time.Time     `gorm:"type:timestamp;default:now()" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"type:timestamp;default:now()" json:"updated_at"`
}

func (ScoringCriterion) TableName() string {
	return "scoring_criteria"
}

// MaxAchievable is the criterion's contribution to the job's maximum score.
func (c *ScoringCriterion) MaxAchievable() float64 {
	if c.Type.IsContinuous() {
		return c.MaxPoints
	}
	return c.Points * c.Weight
}
