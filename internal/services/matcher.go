package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"talentmatch/matching-engine/internal/config"
	"talentmatch/matching-engine/internal/models"
	"talentmatch/matching-engine/internal/repositories"
)

type MatcherService interface {
	// ProcessRun executes one queued matching run end to end and persists the
	// job's replacement result set.
	ProcessRun(ctx context.Context, runID uuid.UUID) error
	// MatchSingle scores one candidate against one job synchronously and
	// upserts that single result without renumbering the job's ranking.
	MatchSingle(ctx context.Context, candidateID, jobID uuid.UUID) (*models.MatchResult, error)
}

type matcherService struct {
	runRepo        repositories.MatchRunRepository
	resultRepo     repositories.MatchResultRepository
	jobRepo        repositories.JobRepository
	candidateRepo  repositories.CandidateRepository
	criterionRepo  repositories.CriterionRepository
	ruleRepo       repositories.RuleRepository
	embeddingCache EmbeddingCacheService
	similarity     SimilarityService
	criteriaScorer CriteriaScorer
	ruleEngine     RuleEngine
	cfg            config.MatchingConfig
	fanout         int
}

func NewMatcherService(
	runRepo repositories.MatchRunRepository,
	resultRepo repositories.MatchResultRepository,
	jobRepo repositories.JobRepository,
	candidateRepo repositories.CandidateRepository,
	criterionRepo repositories.CriterionRepository,
	ruleRepo repositories.RuleRepository,
	embeddingCache EmbeddingCacheService,
	similarity SimilarityService,
	criteriaScorer CriteriaScorer,
	ruleEngine RuleEngine,
	cfg config.MatchingConfig,
	fanout int,
) MatcherService {
	if fanout <= 0 {
		fanout = 1
	}
	return &matcherService{
		runRepo:        runRepo,
		resultRepo:     resultRepo,
		jobRepo:        jobRepo,
		candidateRepo:  candidateRepo,
		criterionRepo:  criterionRepo,
		ruleRepo:       ruleRepo,
		embeddingCache: embeddingCache,
		similarity:     similarity,
		criteriaScorer: criteriaScorer,
		ruleEngine:     ruleEngine,
		cfg:            cfg,
		fanout:         fanout,
	}
}

// ProcessRun implements MatcherService.
func (s *matcherService) ProcessRun(ctx context.Context, runID uuid.UUID) error {
	if err := s.runRepo.UpdateStatus(runID, models.RunProcessing, false); err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	log.Printf("🔄 Starting matching run %s\n", runID)

	run, err := s.runRepo.FindByID(runID)
	if err != nil {
		s.runRepo.UpdateError(runID, err.Error())
		return fmt.Errorf("failed to get run: %w", err)
	}

	results, degraded, partial, err := s.matchJob(ctx, run)
	if err != nil {
		s.runRepo.UpdateError(runID, err.Error())
		return fmt.Errorf("failed to match job %s: %w", run.JobID, err)
	}

	for i := range results {
		rID := runID
		results[i].RunID = &rID
	}

	if err := s.resultRepo.ReplaceForJob(run.JobID, results); err != nil {
		s.runRepo.UpdateError(runID, err.Error())
		return fmt.Errorf("failed to persist results: %w", err)
	}

	status := models.RunCompleted
	if degraded {
		status = models.RunDegraded
	}
	if err := s.runRepo.UpdateStatus(runID, status, partial); err != nil {
		return fmt.Errorf("failed to finalize run: %w", err)
	}

	log.Printf("✅ Matching run %s completed with %d results (degraded=%v, partial=%v)\n",
		runID, len(results), degraded, partial)
	return nil
}

// matchJob runs the full pipeline for one job: shortlist via similarity,
// per-candidate scoring fan-out, ranking, and run-level filters.
func (s *matcherService) matchJob(ctx context.Context, run *models.MatchRun) ([]models.MatchResult, bool, bool, error) {
	job, err := s.jobRepo.FindByID(run.JobID)
	if err != nil {
		return nil, false, false, err
	}

	criteria, err := s.criterionRepo.FindByJob(job.ID)
	if err != nil {
		return nil, false, false, err
	}

	rules, err := s.ruleRepo.FindForJob(job.ID)
	if err != nil {
		return nil, false, false, err
	}

	semanticWeight, criteriaWeight := s.resolveWeights(job)

	candidates, similarities, degraded, err := s.shortlist(ctx, job)
	if err != nil {
		return nil, false, false, err
	}
	if len(candidates) == 0 {
		// No candidates is an empty result set, never an error.
		return nil, degraded, false, nil
	}

	rows, sawMissingEmbedding, partial := s.evaluateAll(ctx, job, candidates, similarities, criteria, rules, semanticWeight, criteriaWeight)
	degraded = degraded || sawMissingEmbedding

	rows = rankResults(rows)
	rows = applyRunFilters(rows, run)

	return rows, degraded, partial, nil
}

// shortlist returns the candidates to score with their similarity. A job with
// no computable embedding degrades to the criteria-only candidate pool when
// the fallback is enabled.
func (s *matcherService) shortlist(ctx context.Context, job *models.Job) ([]models.Candidate, map[uuid.UUID]float64, bool, error) {
	jobRecord, err := s.embeddingCache.GetOrCompute(ctx, models.EntityJob, job.ID, job.EmbeddingSources())
	if err != nil && !errors.Is(err, ErrEmbeddingUnavailable) {
		return nil, nil, false, err
	}

	if err == nil && jobRecord.Combined() != nil {
		hits, err := s.similarity.FindCandidates(ctx, jobRecord.Combined(), s.cfg.ShortlistLimit, s.cfg.MinSimilarity)
		if err != nil {
			return nil, nil, false, fmt.Errorf("similarity search failed: %w", err)
		}
		if len(hits) == 0 {
			return nil, nil, false, nil
		}

		ids := make([]uuid.UUID, 0, len(hits))
		similarities := make(map[uuid.UUID]float64, len(hits))
		for _, hit := range hits {
			ids = append(ids, hit.CandidateID)
			similarities[hit.CandidateID] = hit.Similarity
		}

		candidates, err := s.candidateRepo.FindByIDs(ids)
		if err != nil {
			return nil, nil, false, err
		}
		return candidates, similarities, false, nil
	}

	// No semantic signal for the job side.
	log.Printf("⚠️  No embedding for job %s, degrading to criteria-only scoring\n", job.ID)
	if !s.cfg.CriteriaFallback {
		return nil, nil, true, nil
	}

	candidates, err := s.candidateRepo.FindAll(s.cfg.PoolLimit)
	if err != nil {
		return nil, nil, true, err
	}
	return candidates, map[uuid.UUID]float64{}, true, nil
}

// evaluateAll fans candidate evaluation out over the configured number of
// workers. Scoring one candidate shares no state with another; only the
// gather and the later ranking are sequential. A cancelled context abandons
// unstarted candidates and reports partial results.
func (s *matcherService) evaluateAll(
	ctx context.Context,
	job *models.Job,
	candidates []models.Candidate,
	similarities map[uuid.UUID]float64,
	criteria []models.ScoringCriterion,
	rules []models.ScoringRule,
	semanticWeight, criteriaWeight float64,
) ([]models.MatchResult, bool, bool) {
	var (
		mu       sync.Mutex
		rows     []models.MatchResult
		degraded bool
		wg       sync.WaitGroup
		tasks    = make(chan int)
	)

	for w := 0; w < s.fanout; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range tasks {
				candidate := &candidates[idx]
				similarity, hasSimilarity := similarities[candidate.ID]

				// In the criteria-only path the candidate has no similarity;
				// warm its cache anyway so the next full run has vectors. A
				// failure here is "no semantic signal", never fatal.
				if !hasSimilarity {
					if _, err := s.embeddingCache.GetOrCompute(ctx, models.EntityCandidate, candidate.ID, candidate.EmbeddingSources()); err != nil {
						mu.Lock()
						degraded = true
						mu.Unlock()
					}
				}

				row := s.evaluateCandidate(job, candidate, criteria, rules, similarity, semanticWeight, criteriaWeight)

				mu.Lock()
				rows = append(rows, row)
				mu.Unlock()
			}
		}()
	}

	partial := false
feed:
	for i := range candidates {
		select {
		case <-ctx.Done():
			partial = true
			break feed
		case tasks <- i:
		}
	}
	close(tasks)
	wg.Wait()

	if !partial && len(rows) < len(candidates) {
		partial = true
	}

	return rows, degraded, partial
}

// evaluateCandidate runs criteria scoring, combination and the rule engine
// for one candidate and assembles the immutable result row.
func (s *matcherService) evaluateCandidate(
	job *models.Job,
	candidate *models.Candidate,
	criteria []models.ScoringCriterion,
	rules []models.ScoringRule,
	similarity float64,
	semanticWeight, criteriaWeight float64,
) models.MatchResult {
	criteriaResult := s.criteriaScorer.Score(candidate, criteria)

	combined := semanticWeight*similarity*100 + criteriaWeight*criteriaResult.Percentage

	ruleCtx := &RuleContext{
		Fields:         buildRuleFields(candidate, job, similarity, &criteriaResult, combined),
		Similarity:     similarity,
		Criteria:       criteriaResult,
		SemanticWeight: semanticWeight,
		CriteriaWeight: criteriaWeight,
		Score:          combined,
	}
	ruleResult := s.ruleEngine.Apply(rules, ruleCtx)

	disqualified := criteriaResult.Disqualified || ruleResult.Disqualified
	disqualifiedBy := criteriaResult.DisqualifiedBy
	if disqualifiedBy == "" {
		disqualifiedBy = ruleResult.DisqualifiedBy
	}

	finalScore := round2(clamp(ruleResult.AdjustedScore, 0, math.MaxFloat64))
	if disqualified {
		finalScore = 0
	}

	breakdown := models.JSONMap{
		"semantic_weight":          ruleCtx.SemanticWeight,
		"criteria_weight":          ruleCtx.CriteriaWeight,
		"semantic_component":       round2(ruleCtx.SemanticWeight * similarity * 100),
		"criteria_component":       round2(ruleCtx.CriteriaWeight * ruleCtx.Criteria.Percentage),
		"criteria_points_by_type":  map[string]float64(ruleCtx.Criteria.PointsByType),
		"pre_rule_score":           round2(combined),
	}
	if len(criteriaResult.Errors) > 0 {
		breakdown["criterion_errors"] = criteriaResult.Errors
	}
	if len(ruleResult.SkippedRules) > 0 {
		breakdown["skipped_rules"] = ruleResult.SkippedRules
	}

	var disqualifiedByPtr *string
	if disqualifiedBy != "" {
		disqualifiedByPtr = &disqualifiedBy
	}

	return models.MatchResult{
		ID:                 uuid.New(),
		CandidateID:        candidate.ID,
		JobID:              job.ID,
		CosineSimilarity:   similarity,
		CriteriaScore:      round2(criteriaResult.Points),
		CriteriaMaxScore:   round2(criteriaResult.MaxPoints),
		CriteriaPercentage: criteriaResult.Percentage,
		CombinedScore:      finalScore,
		ScoreBreakdown:     breakdown,
		MatchedCriteria:    criteriaResult.Matched,
		MissingCriteria:    criteriaResult.Missing,
		RulesApplied:       ruleResult.Trail,
		PreFilterPassed:    ruleResult.PreFilterPassed,
		Disqualified:       disqualified,
		DisqualifiedBy:     disqualifiedByPtr,
	}
}

// MatchSingle implements MatcherService. Both embeddings are read through the
// cache and the similarity is computed directly between the combined vectors.
func (s *matcherService) MatchSingle(ctx context.Context, candidateID, jobID uuid.UUID) (*models.MatchResult, error) {
	job, err := s.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, err
	}
	candidate, err := s.candidateRepo.FindByID(candidateID)
	if err != nil {
		return nil, err
	}
	criteria, err := s.criterionRepo.FindByJob(jobID)
	if err != nil {
		return nil, err
	}
	rules, err := s.ruleRepo.FindForJob(jobID)
	if err != nil {
		return nil, err
	}

	similarity := 0.0
	degraded := false

	jobRecord, jobErr := s.embeddingCache.GetOrCompute(ctx, models.EntityJob, jobID, job.EmbeddingSources())
	candRecord, candErr := s.embeddingCache.GetOrCompute(ctx, models.EntityCandidate, candidateID, candidate.EmbeddingSources())
	if jobErr != nil || candErr != nil {
		if (jobErr != nil && !errors.Is(jobErr, ErrEmbeddingUnavailable)) ||
			(candErr != nil && !errors.Is(candErr, ErrEmbeddingUnavailable)) {
			if jobErr != nil {
				return nil, jobErr
			}
			return nil, candErr
		}
		degraded = true
	} else {
		similarity = cosineSimilarity(jobRecord.Combined(), candRecord.Combined())
	}

	semanticWeight, criteriaWeight := s.resolveWeights(job)
	row := s.evaluateCandidate(job, candidate, criteria, rules, similarity, semanticWeight, criteriaWeight)
	if degraded {
		row.ScoreBreakdown["degraded_semantic_signal"] = true
	}

	if err := s.resultRepo.UpsertOne(&row); err != nil {
		return nil, err
	}
	return &row, nil
}

// resolveWeights returns the effective blend. The job-level override wins over
// the service default; neither is renormalized.
func (s *matcherService) resolveWeights(job *models.Job) (float64, float64) {
	semanticWeight := s.cfg.SemanticWeight
	criteriaWeight := s.cfg.CriteriaWeight
	if job.SemanticWeight != nil {
		semanticWeight = *job.SemanticWeight
	}
	if job.CriteriaWeight != nil {
		criteriaWeight = *job.CriteriaWeight
	}
	return semanticWeight, criteriaWeight
}

// rankResults sorts and assigns dense 1-based ranks to qualifying results.
// Order: combined score desc, cosine similarity desc, candidate id asc — the
// documented deterministic tie-break. Disqualified rows keep a nil rank and
// sort after all qualifying rows.
func rankResults(rows []models.MatchResult) []models.MatchResult {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if a.Disqualified != b.Disqualified {
			return !a.Disqualified
		}
		if a.CombinedScore != b.CombinedScore {
			return a.CombinedScore > b.CombinedScore
		}
		if a.CosineSimilarity != b.CosineSimilarity {
			return a.CosineSimilarity > b.CosineSimilarity
		}
		return bytes.Compare(a.CandidateID[:], b.CandidateID[:]) < 0
	})

	rank := 0
	for i := range rows {
		if rows[i].Disqualified {
			rows[i].Rank = nil
			continue
		}
		if rank == 0 {
			rank = 1
		} else {
			prev := &rows[i-1]
			if rows[i].CombinedScore != prev.CombinedScore || rows[i].CosineSimilarity != prev.CosineSimilarity {
				rank++
			}
		}
		r := rank
		rows[i].Rank = &r
	}

	return rows
}

// applyRunFilters trims the ranked set per the run parameters. Disqualified
// rows stay for audit unless the run excludes them; min_score and limit act
// on qualifying rows only.
func applyRunFilters(rows []models.MatchResult, run *models.MatchRun) []models.MatchResult {
	filtered := make([]models.MatchResult, 0, len(rows))
	kept := 0
	for _, row := range rows {
		if row.Disqualified {
			if !run.ExcludeDisqualified {
				filtered = append(filtered, row)
			}
			continue
		}
		if run.MinScore != nil && row.CombinedScore < *run.MinScore {
			continue
		}
		if run.Limit != nil && kept >= *run.Limit {
			continue
		}
		kept++
		filtered = append(filtered, row)
	}
	return filtered
}

func buildRuleFields(candidate *models.Candidate, job *models.Job, similarity float64, criteriaResult *CriteriaScoreResult, combined float64) map[string]interface{} {
	return map[string]interface{}{
		"candidate": map[string]interface{}{
			"id":               candidate.ID.String(),
			"full_name":        candidate.FullName,
			"location":         candidate.Location,
			"skills":           []string(candidate.Skills),
			"languages":        []string(candidate.Languages),
			"certifications":   []string(candidate.Certifications),
			"education":        []string(candidate.Education),
			"years_experience": candidate.YearsExperience,
		},
		"job": map[string]interface{}{
			"id":              job.ID.String(),
			"title":           job.Title,
			"location":        job.Location,
			"required_skills": []string(job.RequiredSkills),
		},
		"score": map[string]interface{}{
			"similarity":          similarity,
			"criteria_points":     criteriaResult.Points,
			"criteria_percentage": criteriaResult.Percentage,
			"combined":            combined,
			"disqualified":        criteriaResult.Disqualified,
		},
	}
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
