package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"talentmatch/matching-engine/internal/models"
	"talentmatch/matching-engine/internal/repositories"
)

type CriteriaHandler struct {
	criterionRepo repositories.CriterionRepository
	jobRepo       repositories.JobRepository
}

func NewCriteriaHandler(
	criterionRepo repositories.CriterionRepository,
	jobRepo repositories.JobRepository,
) *CriteriaHandler {
	return &CriteriaHandler{
		criterionRepo: criterionRepo,
		jobRepo:       jobRepo,
	}
}

// HandleGetCriteria handles GET /jobs/:id/criteria
func (h *CriteriaHandler) HandleGetCriteria(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job ID format",
		})
	}

	criteria, err := h.criterionRepo.FindByJob(jobID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load criteria",
		})
	}

	return c.JSON(fiber.Map{
		"job_id":   jobID.String(),
		"criteria": criteria,
	})
}

// HandleReplaceCriteria handles PUT /jobs/:id/criteria. The job's criterion
// list is replaced all-or-nothing; validation errors reject the whole request
// so a half-written list can never exist.
func (h *CriteriaHandler) HandleReplaceCriteria(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job ID format",
		})
	}

	if _, err := h.jobRepo.FindByID(jobID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	var req models.ReplaceCriteriaRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	criteria := make([]models.ScoringCriterion, 0, len(req.Criteria))
	for i, input := range req.Criteria {
		criterion, err := buildCriterion(jobID, i, input)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": fmt.Sprintf("criteria[%d]: %v", i, err),
			})
		}
		criteria = append(criteria, *criterion)
	}

	if err := h.criterionRepo.ReplaceForJob(jobID, criteria); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to replace criteria",
		})
	}

	return c.JSON(fiber.Map{
		"job_id":   jobID.String(),
		"criteria": criteria,
	})
}

func buildCriterion(jobID uuid.UUID, position int, input models.CriterionInput) (*models.ScoringCriterion, error) {
	criterionType := models.CriterionType(input.Type)
	if !criterionType.Valid() {
		return nil, fmt.Errorf("unknown criterion type %q", input.Type)
	}
	if input.Value == "" && !criterionType.IsContinuous() {
		return nil, fmt.Errorf("value is required")
	}

	weight := input.Weight
	if weight == 0 {
		weight = 1
	}
	if weight < 0 || weight > 10 {
		return nil, fmt.Errorf("weight must be in [0,10], got %v", weight)
	}
	if input.Points < 0 {
		return nil, fmt.Errorf("points must not be negative")
	}

	if criterionType.IsContinuous() {
		if input.MinValue < 0 || input.PerUnitPoints < 0 || input.MaxPoints < 0 {
			return nil, fmt.Errorf("experience thresholds must not be negative")
		}
		if input.MaxPoints == 0 && input.PerUnitPoints > 0 {
			return nil, fmt.Errorf("max_points is required when per_unit_points is set")
		}
	}

	return &models.ScoringCriterion{
		ID:            uuid.New(),
		JobID:         jobID,
		Type:          criterionType,
		Value:         input.Value,
		Points:        input.Points,
		IsRequired:    input.IsRequired,
		Weight:        weight,
		MinValue:      input.MinValue,
		PerUnitPoints: input.PerUnitPoints,
		MaxPoints:     input.MaxPoints,
		Position:      position,
	}, nil
}
