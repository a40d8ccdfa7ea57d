package server

import (
	"ctfarena/internal/models"
	"ctfarena/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// CreateSubmission handles POST /api/submissions
// @Summary Propose a challenge
// @Description Files a pending community challenge for staff review.
// @Tags submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body validation.ChallengeFields true "Proposed challenge"
// @Success 201 {object} models.Submission
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /submissions [post]
func (s *Server) CreateSubmission(c *fiber.Ctx) error {
	var fields validation.ChallengeFields
	if err := c.BodyParser(&fields); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	sub, err := s.reviewService.Submit(c.UserContext(), actor, fields)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// GetMySubmissions handles GET /api/submissions/me
// @Summary My proposals
// @Tags submissions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Submission
// @Router /submissions/me [get]
func (s *Server) GetMySubmissions(c *fiber.Ctx) error {
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	subs, err := s.reviewService.MySubmissions(c.UserContext(), actor)
	if err != nil {
		return respondError(c, err)
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	return c.JSON(subs)
}
