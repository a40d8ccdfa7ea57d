package server

import (
	"ctfarena/internal/featureflags"

	"github.com/gofiber/fiber/v2"
)

// GetLeaderboard handles GET /api/scoreboard
// @Summary Leaderboard
// @Description Users with at least one counted solve, best first. Ties go to whoever reached the score first.
// @Tags scoreboard
// @Produce json
// @Param limit query int false "Maximum entries (0 for all)"
// @Success 200 {array} models.LeaderboardEntry
// @Router /scoreboard [get]
func (s *Server) GetLeaderboard(c *fiber.Ctx) error {
	entries, err := s.scoreboardService.Leaderboard(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entries)
}

// GetFeed handles GET /api/scoreboard/feed
// @Summary Recent solves
// @Tags scoreboard
// @Produce json
// @Param limit query int false "Maximum entries"
// @Success 200 {array} models.FeedItem
// @Router /scoreboard/feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	showFirstBlood := s.featureFlags.Enabled(featureflags.FirstBlood, viewerID(c))
	items, err := s.scoreboardService.Feed(c.UserContext(), c.QueryInt("limit", 0), showFirstBlood)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(items)
}

// GetUserScore handles GET /api/users/:id/score
// @Summary User score
// @Tags scoreboard
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} service.UserScore
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/score [get]
func (s *Server) GetUserScore(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	score, err := s.scoreboardService.UserScore(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(score)
}
