package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"talentmatch/matching-engine/internal/models"
	"talentmatch/matching-engine/internal/repositories"
	"talentmatch/matching-engine/internal/services"
)

type RuleHandler struct {
	ruleRepo repositories.RuleRepository
	jobRepo  repositories.JobRepository
}

func NewRuleHandler(
	ruleRepo repositories.RuleRepository,
	jobRepo repositories.JobRepository,
) *RuleHandler {
	return &RuleHandler{
		ruleRepo: ruleRepo,
		jobRepo:  jobRepo,
	}
}

// HandleCreateRule handles POST /rules
func (h *RuleHandler) HandleCreateRule(c *fiber.Ctx) error {
	var req models.RuleInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	rule, err := h.buildRule(&req)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.ruleRepo.Create(rule); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create rule",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}

// HandleGetRule handles GET /rules/:id
func (h *RuleHandler) HandleGetRule(c *fiber.Ctx) error {
	ruleID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid rule ID format",
		})
	}

	rule, err := h.ruleRepo.FindByID(ruleID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Rule not found",
		})
	}

	return c.JSON(rule)
}

// HandleUpdateRule handles PUT /rules/:id
func (h *RuleHandler) HandleUpdateRule(c *fiber.Ctx) error {
	ruleID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid rule ID format",
		})
	}

	existing, err := h.ruleRepo.FindByID(ruleID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Rule not found",
		})
	}

	var req models.RuleInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	rule, err := h.buildRule(&req)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt

	if err := h.ruleRepo.Update(rule); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update rule",
		})
	}

	return c.JSON(rule)
}

// HandleDeleteRule handles DELETE /rules/:id
func (h *RuleHandler) HandleDeleteRule(c *fiber.Ctx) error {
	ruleID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid rule ID format",
		})
	}

	if err := h.ruleRepo.Delete(ruleID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Rule not found",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// HandleApplyTemplate handles POST /rules/templates/:templateID/apply/:jobID,
// copying the template's rules onto the job with job scoping.
func (h *RuleHandler) HandleApplyTemplate(c *fiber.Ctx) error {
	templateID, err := uuid.Parse(c.Params("templateID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template ID format",
		})
	}

	jobID, err := uuid.Parse(c.Params("jobID"))
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

	copied, err := h.ruleRepo.ApplyTemplate(templateID, jobID)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"job_id": jobID.String(),
		"rules":  copied,
	})
}

// buildRule validates scope consistency and the rule definition itself.
// Malformed conditions/actions are rejected here, at write time.
func (h *RuleHandler) buildRule(req *models.RuleInput) (*models.ScoringRule, error) {
	scope := models.RuleScope(req.Scope)
	if scope == "" {
		scope = models.ScopeGlobal
	}

	rule := &models.ScoringRule{
		ID:             uuid.New(),
		Name:           req.Name,
		Scope:          scope,
		RuleType:       models.RuleType(req.RuleType),
		Priority:       req.Priority,
		ExecutionOrder: req.ExecutionOrder,
		StopOnMatch:    req.StopOnMatch,
		Active:         true,
		Conditions:     models.JSONMap(req.Conditions),
		Actions:        models.JSONMap(req.Actions),
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if rule.Name == "" {
		return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "name is required")
	}

	// A rule has at most one owner: a job, a template, or neither (global).
	switch scope {
	case models.ScopeGlobal:
		if req.JobID != nil || req.TemplateID != nil {
			return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "global rules cannot reference a job or template")
		}
	case models.ScopeJob:
		if req.JobID == nil || req.TemplateID != nil {
			return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "job-scoped rules need exactly a job_id")
		}
		jobID, err := uuid.Parse(*req.JobID)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "invalid job_id format")
		}
		if _, err := h.jobRepo.FindByID(jobID); err != nil {
			return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "job not found")
		}
		rule.JobID = &jobID
	case models.ScopeTemplate:
		if req.TemplateID == nil || req.JobID != nil {
			return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "template-scoped rules need exactly a template_id")
		}
		templateID, err := uuid.Parse(*req.TemplateID)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "invalid template_id format")
		}
		rule.TemplateID = &templateID
	default:
		return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "unknown scope")
	}

	if err := services.ValidateRuleDefinition(rule); err != nil {
		return nil, err
	}

	return rule, nil
}
