package server

import (
	"errors"
	"strings"
	"unicode"

	"ctfarena/internal/middleware"
	"ctfarena/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// statusForError maps an AppError code to its HTTP status. Anything that is
// not an AppError is an internal failure.
func statusForError(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeAuthorizationDenied:
		return fiber.StatusForbidden
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeNotAvailable, models.CodeInvalidTransition, models.CodeConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err with the status its code maps to. Internal errors
// are logged and never leak their cause.
func respondError(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"path", c.Path(), "method", c.Method(), "error", err)
		if !models.HasCode(err, models.CodeInternal) {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err)
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "submissionId" -> "submission ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// pageQuery reads the 1-based "page" and "per_page" query parameters.
// Clamping happens in the service layer.
func pageQuery(c *fiber.Ctx, defaultPerPage int) (int, int) {
	page := c.QueryInt("page", 1)
	perPage := c.QueryInt("per_page", defaultPerPage)
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	return page, perPage
}

// viewerID returns the authenticated user, or 0 for anonymous requests.
func viewerID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// actor loads the caller's current role. Roles are read fresh on every request
// so a demotion applies immediately.
func (s *Server) actor(c *fiber.Ctx) (models.Actor, *models.User, error) {
	if a, ok := c.Locals("actor").(models.Actor); ok {
		if u, ok := c.Locals("actorUser").(*models.User); ok {
			return a, u, nil
		}
	}
	userID := viewerID(c)
	if userID == 0 {
		return models.Actor{}, nil, models.NewUnauthorizedError("Authorization required")
	}
	a, user, err := s.userService.Actor(c.UserContext(), userID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			// the account was deleted after the token was issued
			return models.Actor{}, nil, models.NewUnauthorizedError("Account no longer exists")
		}
		return models.Actor{}, nil, err
	}
	c.Locals("actor", a)
	c.Locals("actorUser", user)
	return a, user, nil
}
