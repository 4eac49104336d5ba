package models

import (
	"time"

	"github.com/google/uuid"
)

type RuleType string

const (
	RulePreFilter      RuleType = "PRE_FILTER"
	RuleDisqualify     RuleType = "DISQUALIFY"
	RuleCategoryBoost  RuleType = "CATEGORY_BOOST"
	RuleWeightAdjuster RuleType = "WEIGHT_ADJUSTER"
	RuleOverallMod     RuleType = "OVERALL_MODIFIER"
)

func (t RuleType) Valid() bool {
	switch t {
	case RulePreFilter, RuleDisqualify, RuleCategoryBoost, RuleWeightAdjuster, RuleOverallMod:
		return true
	}
	return false
}

type RuleScope string

const (
	ScopeGlobal   RuleScope = "global"
	ScopeTemplate RuleScope = "template"
	ScopeJob      RuleScope = "job"
)

// ScoringRule is a stored condition/action pair. Conditions hold a boolean
// expression tree over dotted context paths; Actions hold the typed action
// payload for the rule type. Evaluation order is priority descending, then
// execution order ascending.
type ScoringRule struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name           string     `gorm:"type:text;not null" json:"name"`
	Scope          RuleScope  `gorm:"type:text;not null;default:'global'" json:"scope"`
	JobID          *uuid.UUID `gorm:"type:uuid;index" json:"job_id,omitempty"`
	TemplateID     *uuid.UUID `gorm:"type:uuid;index" json:"template_id,omitempty"`
	RuleType       RuleType   `gorm:"type:text;not null" json:"rule_type"`
	Priority       int        `gorm:"default:0" json:"priority"`
	ExecutionOrder int        `gorm:"default:0" json:"execution_order"`
	StopOnMatch    bool       `gorm:"default:false" json:"stop_on_match"`
	Active         bool       `gorm:"default:true" json:"active"`
	Conditions     JSONMap    `gorm:"type:jsonb" json:"conditions"`
	Actions        JSONMap    `gorm:"type:jsonb" json:"actions"`
	CreatedAt      time.Time  `gorm:"type:timestamp;default:now()" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"type:timestamp;default:now()" json:"updated_at"`
}

func (ScoringRule) TableName() string {
	return "scoring_rules"
}

// RuleTemplate groups reusable rules that can be applied to a job, copying
// them with job scope.
type RuleTemplate struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name        string    `gorm:"type:text;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"type:timestamp;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:timestamp;default:now()" json:"updated_at"`
}

func (RuleTemplate) TableName() string {
	return "rule_templates"
}
