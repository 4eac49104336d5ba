package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MatchRunStatus string

const (
	RunQueued     MatchRunStatus = "queued"
	RunProcessing MatchRunStatus = "processing"
	RunCompleted  MatchRunStatus = "completed"
	// RunDegraded marks a run that completed without a semantic signal for at
	// least one side, so scores are criteria-only where the signal was missing.
	RunDegraded MatchRunStatus = "completed_degraded"
	RunFailed   MatchRunStatus = "failed"
)

// MatchRun is one asynchronous matching invocation for a job. The worker picks
// queued runs and replaces the job's result set atomically on completion.
type MatchRun struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	JobID               uuid.UUID      `gorm:"type:uuid;not null;index" json:"job_id"`
	Status              MatchRunStatus `gorm:"not null;default:'queued'" json:"status"`
	MinScore            *float64       `gorm:"type:decimal(6,2)" json:"min_score,omitempty"`
	Limit               *int           `gorm:"column:result_limit" json:"limit,omitempty"`
	ExcludeDisqualified bool           `gorm:"default:false" json:"exclude_disqualified"`
	PartialResults      bool           `gorm:"default:false" json:"partial_results"`
	ErrorMessage        *string        `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt           time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (MatchRun) TableName() string {
	return "match_runs"
}

// RuleApplication is one entry of a candidate's rule audit trail.
type RuleApplication struct {
	RuleName    string  `json:"rule_name"`
	RuleType    string  `json:"rule_type"`
	ScoreBefore float64 `json:"score_before"`
	ScoreAfter  float64 `json:"score_after"`
	Delta       float64 `json:"delta"`
	Note        string  `json:"note,omitempty"`
}

// RuleTrail is the ordered audit log of rule firings, stored as JSONB.
type RuleTrail []RuleApplication

func (t RuleTrail) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule trail: %w", err)
	}
	return string(b), nil
}

func (t *RuleTrail) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for rule trail: %T", value)
	}

	return json.Unmarshal(data, t)
}

// MatchResult is one candidate's scored outcome for a job, keyed uniquely by
// (candidate_id, job_id). Disqualified candidates keep a persisted row for
// audit with combined score 0 and no rank.
type MatchResult struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CandidateID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_match_candidate_job" json:"candidate_id"`
	JobID              uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_match_candidate_job;index" json:"job_id"`
	RunID              *uuid.UUID `gorm:"type:uuid;index" json:"run_id,omitempty"`
	CosineSimilarity   float64    `gorm:"type:decimal(8,6);default:0" json:"cosine_similarity"`
	CriteriaScore      float64    `gorm:"type:decimal(8,2);default:0" json:"criteria_score"`
	CriteriaMaxScore   float64    `gorm:"type:decimal(8,2);default:0" json:"criteria_max_score"`
	CriteriaPercentage float64    `gorm:"type:decimal(6,2);default:0" json:"criteria_percentage"`
	CombinedScore      float64    `gorm:"type:decimal(6,2);default:0" json:"combined_score"`
	Rank               *int       `json:"rank,omitempty"`
	ScoreBreakdown     JSONMap    `gorm:"type:jsonb" json:"score_breakdown"`
	MatchedCriteria    StringList `gorm:"type:jsonb" json:"matched_criteria"`
	MissingCriteria    StringList `gorm:"type:jsonb" json:"missing_criteria"`
	RulesApplied       RuleTrail  `gorm:"type:jsonb" json:"rules_applied"`
	PreFilterPassed    bool       `gorm:"default:true" json:"pre_filter_passed"`
	Disqualified       bool       `gorm:"default:false" json:"disqualified"`
	DisqualifiedBy     *string    `gorm:"type:text" json:"disqualified_by,omitempty"`
	CreatedAt          time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (MatchResult) TableName() string {
	return "match_results"
}
