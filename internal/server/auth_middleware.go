package server

import (
	"context"
	"strings"

	"ctfarena/internal/middleware"
	"ctfarena/internal/models"
	"ctfarena/internal/service"

	"github.com/gofiber/fiber/v2"
)

// tokenFromRequest reads the bearer token. Browsers cannot set headers on a
// websocket handshake, so the feed endpoint also accepts ?token=.
func tokenFromRequest(c *fiber.Ctx) string {
	if token := middleware.BearerToken(c); token != "" {
		return token
	}
	if strings.HasPrefix(c.Path(), "/api/ws") {
		return c.Query("token")
	}
	return ""
}

// authenticate verifies the token and stores the caller in locals.
func (s *Server) authenticate(c *fiber.Ctx, tokenString string) error {
	claims, err := middleware.ParseToken(s.config.JWTSecret, tokenString)
	if err != nil {
		return models.NewUnauthorizedError("Invalid or expired token")
	}

	revoked, err := s.userService.IsRevoked(c.UserContext(), claims.JTI)
	if err != nil {
		// the blacklist is best effort; an unreachable Redis must not lock everyone out
		middleware.Logger.WarnContext(c.UserContext(), "token revocation check failed", "error", err)
	} else if revoked {
		return models.NewUnauthorizedError("Token has been revoked")
	}

	c.Locals("userID", claims.UserID)
	c.Locals("claims", claims)
	// Sync to UserContext for logging and downstream services
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, claims.UserID)
	c.SetUserContext(ctx)
	return nil
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if err := s.authenticate(c, tokenString); err != nil {
			return respondError(c, err)
		}
		return c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and
// otherwise lets the request through anonymously.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals("userID").(uint); ok {
			return c.Next()
		}
		if tokenString := tokenFromRequest(c); tokenString != "" {
			_ = s.authenticate(c, tokenString)
		}
		return c.Next()
	}
}

// AdminRequired returns middleware that lets a request through only when the
// moderation gate allows the caller to perform action. Denials are audited and
// counted by the gate. Must be placed after AuthRequired so that userID is
// available in locals.
func (s *Server) AdminRequired(action service.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, _, err := s.actor(c)
		if err != nil {
			return respondError(c, err)
		}
		if err := s.gate.Authorize(c.UserContext(), actor, action); err != nil {
			return respondError(c, err)
		}
		return c.Next()
	}
}
