package server

import (
	"ctfarena/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns the evaluated flags for the caller. Staff routes
// also see the raw rollout configuration.
// @Summary Evaluated feature flags
// @Tags feature-flags
// @Produce json
// @Success 200 {object} object{evaluated=map[string]bool,raw=map[string]string}
// @Router /feature-flags [get]
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := viewerID(c)

	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"evaluated": map[string]bool{},
		})
	}

	out := fiber.Map{"evaluated": s.featureFlags.Snapshot(userID)}
	if actor, ok := c.Locals("actor").(models.Actor); ok && actor.Role == models.RoleAdmin {
		out["raw"] = s.featureFlags.Raw()
	}
	return c.JSON(out)
}
