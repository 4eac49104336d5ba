package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"talentmatch/matching-engine/internal/models"
	"talentmatch/matching-engine/internal/repositories"
	"talentmatch/matching-engine/internal/services"
)

type MatchHandler struct {
	runRepo       repositories.MatchRunRepository
	resultRepo    repositories.MatchResultRepository
	jobRepo       repositories.JobRepository
	candidateRepo repositories.CandidateRepository
	matcher       services.MatcherService
	explainer     services.Explainer
	worker        services.Worker
}

func NewMatchHandler(
	runRepo repositories.MatchRunRepository,
	resultRepo repositories.MatchResultRepository,
	jobRepo repositories.JobRepository,
	candidateRepo repositories.CandidateRepository,
	matcher services.MatcherService,
	explainer services.Explainer,
	worker services.Worker,
) *MatchHandler {
	return &MatchHandler{
		runRepo:       runRepo,
		resultRepo:    resultRepo,
		jobRepo:       jobRepo,
		candidateRepo: candidateRepo,
		matcher:       matcher,
		explainer:     explainer,
		worker:        worker,
	}
}

// HandleMatch handles POST /match: queues a matching run for a job and
// returns the run id immediately.
func (h *MatchHandler) HandleMatch(c *fiber.Ctx) error {
	var req models.MatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if req.JobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "job_id is required",
		})
	}

	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job_id format",
		})
	}

	if _, err := h.jobRepo.FindByID(jobID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	if req.MinScore != nil && (*req.MinScore < 0 || *req.MinScore > 100) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "min_score must be in [0,100]",
		})
	}
	if req.Limit != nil && *req.Limit <= 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "limit must be positive",
		})
	}

	run := &models.MatchRun{
		ID:                  uuid.New(),
		JobID:               jobID,
		Status:              models.RunQueued,
		MinScore:            req.MinScore,
		Limit:               req.Limit,
		ExcludeDisqualified: req.ExcludeDisqualified,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}

	if err := h.runRepo.Create(run); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create matching run",
		})
	}

	h.worker.EnqueueRun(run.ID)

	return c.Status(fiber.StatusAccepted).JSON(models.MatchRunResponse{
		ID:     run.ID.String(),
		JobID:  run.JobID.String(),
		Status: string(run.Status),
	})
}

// HandleMatchSingle handles POST /match/single: synchronous scoped match of
// one candidate against one job.
func (h *MatchHandler) HandleMatchSingle(c *fiber.Ctx) error {
	var req models.MatchSingleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	candidateID, err := uuid.Parse(req.CandidateID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid candidate_id format",
		})
	}
	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job_id format",
		})
	}

	result, err := h.matcher.MatchSingle(c.Context(), candidateID, jobID)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(result)
}

// HandleGetRun handles GET /match/runs/:id
func (h *MatchHandler) HandleGetRun(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid run ID format",
		})
	}

	run, err := h.runRepo.FindByID(runID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Match run not found",
		})
	}

	response := models.MatchRunStatusResponse{
		ID:             run.ID.String(),
		JobID:          run.JobID.String(),
		Status:         string(run.Status),
		PartialResults: run.PartialResults,
	}
	if run.Status == models.RunFailed {
		response.ErrorMessage = run.ErrorMessage
	}

	return c.JSON(response)
}

// HandleGetRunResults handles GET /match/runs/:id/results
func (h *MatchHandler) HandleGetRunResults(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid run ID format",
		})
	}

	run, err := h.runRepo.FindByID(runID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Match run not found",
		})
	}

	results, err := h.resultRepo.FindByRun(runID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load results",
		})
	}

	return c.JSON(fiber.Map{
		"run_id":          run.ID.String(),
		"job_id":          run.JobID.String(),
		"status":          string(run.Status),
		"partial_results": run.PartialResults,
		"results":         results,
	})
}

// HandleGetJobResults handles GET /jobs/:id/results
func (h *MatchHandler) HandleGetJobResults(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job ID format",
		})
	}

	excludeDisqualified := c.QueryBool("exclude_disqualified", false)

	results, err := h.resultRepo.FindByJob(jobID, excludeDisqualified)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load results",
		})
	}

	return c.JSON(fiber.Map{
		"job_id":  jobID.String(),
		"results": results,
	})
}

// HandleExplainResult handles GET /match/results/:id/explanation
func (h *MatchHandler) HandleExplainResult(c *fiber.Ctx) error {
	resultID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid result ID format",
		})
	}

	result, err := h.resultRepo.FindByID(resultID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Match result not found",
		})
	}

	job, err := h.jobRepo.FindByID(result.JobID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}
	candidate, err := h.candidateRepo.FindByID(result.CandidateID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Candidate not found",
		})
	}

	explanation, err := h.explainer.Explain(c.Context(), job, candidate, result)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to generate explanation",
		})
	}

	return c.JSON(models.ExplanationResponse{
		ResultID:    result.ID.String(),
		Explanation: explanation,
	})
}
