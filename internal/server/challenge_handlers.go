package server

import (
	"ctfarena/internal/models"
	"ctfarena/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListChallenges handles GET /api/challenges
// @Summary Browse challenges
// @Description Live challenges, newest first. A signed-in caller sees which ones they solved.
// @Tags challenges
// @Produce json
// @Param category query string false "Category filter"
// @Param difficulty query string false "Difficulty filter"
// @Param provenance query string false "official or community"
// @Param q query string false "Title or description search"
// @Param page query int false "1-based page"
// @Param per_page query int false "Page size"
// @Success 200 {object} service.ChallengePage
// @Failure 400 {object} models.ErrorResponse
// @Router /challenges [get]
func (s *Server) ListChallenges(c *fiber.Ctx) error {
	page, perPage := pageQuery(c, s.config.ChallengesPerPage)
	result, err := s.challengeService.List(c.UserContext(), service.ListChallengesInput{
		Category:   c.Query("category"),
		Difficulty: c.Query("difficulty"),
		Provenance: c.Query("provenance"),
		Query:      c.Query("q"),
		Page:       page,
		PerPage:    perPage,
		ViewerID:   viewerID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetChallenge handles GET /api/challenges/:id
// @Summary Challenge detail
// @Tags challenges
// @Produce json
// @Param id path int true "Challenge ID"
// @Success 200 {object} models.Challenge
// @Failure 404 {object} models.ErrorResponse
// @Router /challenges/{id} [get]
func (s *Server) GetChallenge(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	challenge, err := s.challengeService.Get(c.UserContext(), id, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(challenge)
}

// SubmitFlag handles POST /api/challenges/:id/submit
// @Summary Submit a flag
// @Description A correct flag credits the challenge once; resubmitting reports already_solved.
// @Tags challenges
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Challenge ID"
// @Param request body object{flag=string} true "Flag attempt"
// @Success 200 {object} service.SubmitFlagResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 429 {object} object{error=string}
// @Router /challenges/{id}/submit [post]
func (s *Server) SubmitFlag(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Flag string `json:"flag"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	_, user, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	result, err := s.flagService.Submit(c.UserContext(), service.SubmitFlagInput{
		UserID:      user.ID,
		Username:    user.Username,
		ChallengeID: id,
		Flag:        req.Flag,
		IPAddress:   c.IP(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
