package services

import "errors"

// Matching error taxonomy. Per-candidate failures are isolated into that
// candidate's breakdown/trail; only store/connectivity failures abort a run.
var (
	// ErrEmbeddingUnavailable means the embedding generator could not be
	// reached. Callers degrade to criteria-only scoring, never abort.
	ErrEmbeddingUnavailable = errors.New("embedding generator unavailable")

	// ErrInvalidRuleDefinition marks a malformed condition/action payload. The
	// offending rule is skipped and evaluation continues.
	ErrInvalidRuleDefinition = errors.New("invalid rule definition")

	// ErrCriterionEvaluation marks a criterion value that could not be
	// interpreted against the candidate profile.
	ErrCriterionEvaluation = errors.New("criterion evaluation failed")

	// ErrConfiguration marks weights or definitions outside their valid
	// ranges, rejected at configuration-write time.
	ErrConfiguration = errors.New("invalid configuration")
)
