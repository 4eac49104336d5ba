package models

type MatchRequest struct {
	JobID               string   `json:"job_id" validate:"required,uuid"`
	MinScore            *float64 `json:"min_score,omitempty"`
	Limit               *int     `json:"limit,omitempty"`
	ExcludeDisqualified bool     `json:"exclude_disqualified,omitempty"`
}

type MatchSingleRequest struct {
	CandidateID string `json:"candidate_id" validate:"required,uuid"`
	JobID       string `json:"job_id" validate:"required,uuid"`
}

type MatchRunResponse struct {
	ID     string `json:"id"`
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type MatchRunStatusResponse struct {
	ID             string  `json:"id"`
	JobID          string  `json:"job_id"`
	Status         string  `json:"status"`
	PartialResults bool    `json:"partial_results"`
	ErrorMessage   *string `json:"error_message,omitempty"`
}

type CriterionInput struct {
	Type          string  `json:"type" validate:"required"`
	Value         string  `json:"value" validate:"required"`
	Points        float64 `json:"points"`
	IsRequired    bool    `json:"is_required"`
	Weight        float64 `json:"weight"`
	MinValue      float64 `json:"min_value"`
	PerUnitPoints float64 `json:"per_unit_points"`
	MaxPoints     float64 `json:"max_points"`
}

type ReplaceCriteriaRequest struct {
	Criteria []CriterionInput `json:"criteria" validate:"required"`
}

type RuleInput struct {
	Name           string                 `json:"name" validate:"required"`
	Scope          string                 `json:"scope"`
	JobID          *string                `json:"job_id,omitempty"`
	TemplateID     *string                `json:"template_id,omitempty"`
	RuleType       string                 `json:"rule_type" validate:"required"`
	Priority       int                    `json:"priority"`
	ExecutionOrder int                    `json:"execution_order"`
	StopOnMatch    bool                   `json:"stop_on_match"`
	Active         *bool                  `json:"active,omitempty"`
	Conditions     map[string]interface{} `json:"conditions"`
	Actions        map[string]interface{} `json:"actions"`
}

type ExplanationResponse struct {
	ResultID    string `json:"result_id"`
	Explanation string `json:"explanation"`
}
