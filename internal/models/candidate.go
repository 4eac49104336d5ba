package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Candidate is the structured profile consumed by the criteria scorer and the
// rule engine. The matching engine treats it as read-only input for a run.
type Candidate struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	FullName        string     `gorm:"type:text" json:"full_name"`
	Email           string     `gorm:"type:text" json:"email"`
	Location        string     `gorm:"type:text" json:"location"`
	Summary         string     `gorm:"type:text" json:"summary"`
	Skills          StringList `gorm:"type:jsonb" json:"skills"`
	Languages       StringList `gorm:"type:jsonb" json:"languages"`
	Certifications  StringList `gorm:"type:jsonb" json:"certifications"`
	Education       StringList `gorm:"type:jsonb" json:"education"`
	ExperienceText  string     `gorm:"type:text" json:"experience_text"`
	YearsExperience float64    `gorm:"type:decimal(5,2);default:0" json:"years_experience"`
	ExperienceYears FloatMap   `gorm:"type:jsonb" json:"experience_years"`
	CreatedAt       time.Time  `gorm:"type:timestamp;default:now()" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"type:timestamp;default:now()" json:"updated_at"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// RelevantYears returns the candidate's years of experience for a named area,
// falling back to the overall total when the area is unknown.
func (c *Candidate) RelevantYears(area string) float64 {
	if area != "" && c.ExperienceYears != nil {
		for k, v := range c.ExperienceYears {
			if strings.EqualFold(strings.TrimSpace(k), strings.TrimSpace(area)) {
				return v
			}
		}
	}
	return c.YearsExperience
}

// EmbeddingSources returns the named source texts that feed the embedding
// cache. Keys match the named vectors stored in the similarity store.
func (c *Candidate) EmbeddingSources() map[string]string {
	return map[string]string{
		"full_text":  strings.TrimSpace(c.Summary + "\n\n" + c.ExperienceText),
		"skills":     strings.Join(c.Skills, ", "),
		"experience": c.ExperienceText,
	}
}
