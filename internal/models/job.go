package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Job is an opening candidates are ranked against. SemanticWeight and
// CriteriaWeight are optional per-job overrides of the service defaults; they
// are never renormalized, a sum other than 1.0 is an explicit choice that
// changes the scale of the combined score.
type Job struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Title          string     `gorm:"type:text" json:"title"`
	Description    string     `gorm:"type:text" json:"description"`
	RequiredSkills StringList `gorm:"type:jsonb" json:"required_skills"`
	Location       string     `gorm:"type:text" json:"location"`
	SemanticWeight *float64   `gorm:"type:decimal(4,3)" json:"semantic_weight,omitempty"`
	CriteriaWeight *float64   `gorm:"type:decimal(4,3)" json:"criteria_weight,omitempty"`
	CreatedAt      time.Time  `gorm:"type:timestamp;default:now()" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"type:timestamp;default:now()" json:"updated_at"`

	// Relations
	Criteria []ScoringCriterion `gorm:"foreignKey:JobID" json:"criteria,omitempty"`
}

func (Job) TableName() string {
	return "jobs"
}

// EmbeddingSources returns the named source texts that feed the embedding
// cache for this job.
func (j *Job) EmbeddingSources() map[string]string {
	return map[string]string{
		"full_text":  strings.TrimSpace(j.Title + "\n\n" + j.Description),
		"skills":     strings.Join(j.RequiredSkills, ", "),
		"experience": j.Description,
	}
}
