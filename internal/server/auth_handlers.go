package server

import (
	"ctfarena/internal/middleware"
	"ctfarena/internal/models"
	"ctfarena/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new participant account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string} true "Signup request"
// @Success 201 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.userService.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Exchange an email or username and password for an access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{identifier=string,password=string} true "Login request"
// @Success 200 {object} service.AuthResult
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Identifier string `json:"identifier"`
		Email      string `json:"email"`
		Username   string `json:"username"`
		Password   string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		identifier = req.Username
	}

	result, err := s.userService.Login(c.UserContext(), service.LoginInput{
		Identifier: identifier,
		Password:   req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the presented access token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, _ := c.Locals("claims").(*middleware.TokenClaims)
	if err := s.userService.Logout(c.UserContext(), claims); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// GetMyProfile handles GET /api/users/me
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	_, user, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update current user
// @Description Change username, email or password. A password change requires the current password.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{username=string,email=string,current_password=string,new_password=string} true "Profile changes"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Username        string `json:"username"`
		Email           string `json:"email"`
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:          viewerID(c),
		Username:        req.Username,
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetUserProfile handles GET /api/users/:id
// @Summary Public profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID"
// @Success 200 {object} object{id=int,username=string,role=string,created_at=string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetUser(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"id":         user.ID,
		"username":   user.Username,
		"role":       user.Role,
		"created_at": user.CreatedAt,
	})
}
