package server

import (
	"errors"

	"ctfarena/internal/models"
	"ctfarena/internal/service"
	"ctfarena/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type reviewRequest struct {
	Notes string `json:"notes"`
}

type challengeRequest struct {
	validation.ChallengeFields
	Hidden bool `json:"hidden"`
}

// GetAdminDashboard handles GET /api/admin/dashboard
// @Summary Admin dashboard
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.DashboardStats
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/dashboard [get]
func (s *Server) GetAdminDashboard(c *fiber.Ctx) error {
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	stats, err := s.moderationService.Dashboard(c.UserContext(), actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetReviewQueue handles GET /api/admin/submissions
// @Summary Review queue
// @Description Submissions by status, oldest first. Pending items list challenges that look like duplicates.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending (default), approved or rejected"
// @Param page query int false "1-based page"
// @Param per_page query int false "Page size"
// @Success 200 {array} models.ReviewQueueItem
// @Router /admin/submissions [get]
func (s *Server) GetReviewQueue(c *fiber.Ctx) error {
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	status := models.SubmissionStatus(c.Query("status", string(models.SubmissionStatusPending)))
	window, _, _ := service.Pagination(pageQuery(c, service.DefaultPageSize))

	items, err := s.reviewService.Queue(c.UserContext(), actor, status, window)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []models.ReviewQueueItem{}
	}
	return c.JSON(items)
}

// ApproveSubmission handles POST /api/admin/submissions/:id/approve
// @Summary Approve a submission
// @Description Publishes the proposal as a live community challenge. Only pending submissions can be approved.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Submission ID"
// @Param request body object{notes=string} false "Review notes"
// @Success 200 {object} object{submission=models.Submission,challenge=models.Challenge}
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/submissions/{id}/approve [post]
func (s *Server) ApproveSubmission(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req reviewRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	sub, challenge, err := s.reviewService.Approve(c.UserContext(), actor, id, req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"submission": sub, "challenge": challenge})
}

// RejectSubmission handles POST /api/admin/submissions/:id/reject
// @Summary Reject a submission
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Submission ID"
// @Param request body object{notes=string} false "Review notes"
// @Success 200 {object} models.Submission
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/submissions/{id}/reject [post]
func (s *Server) RejectSubmission(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req reviewRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	sub, err := s.reviewService.Reject(c.UserContext(), actor, id, req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

// AdminListChallenges handles GET /api/admin/challenges
// @Summary All challenges with flags
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{challenges=[]models.AdminChallenge,total=int}
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/challenges [get]
func (s *Server) AdminListChallenges(c *fiber.Ctx) error {
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	page, perPage := pageQuery(c, s.config.ChallengesPerPage)
	items, total, err := s.challengeService.AdminList(c.UserContext(), actor, service.ListChallengesInput{
		Category:   c.Query("category"),
		Difficulty: c.Query("difficulty"),
		Provenance: c.Query("provenance"),
		Query:      c.Query("q"),
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"challenges": items, "total": total})
}

// AdminGetChallenge handles GET /api/admin/challenges/:id
// @Summary Challenge with flag
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID"
// @Success 200 {object} models.AdminChallenge
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/challenges/{id} [get]
func (s *Server) AdminGetChallenge(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	challenge, err := s.challengeService.AdminGet(c.UserContext(), actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(challenge)
}

// AdminCreateChallenge handles POST /api/admin/challenges
// @Summary Create an official challenge
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body validation.ChallengeFields true "Challenge"
// @Success 201 {object} models.AdminChallenge
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/challenges [post]
func (s *Server) AdminCreateChallenge(c *fiber.Ctx) error {
	var req challengeRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	challenge, err := s.challengeService.Create(c.UserContext(), actor, req.ChallengeFields, req.Hidden)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(challenge.ToAdminView())
}

// AdminImportChallenges handles POST /api/admin/challenges/import
// @Summary Import a challenge pack
// @Description Accepts a YAML or JSON pack. Nothing is written unless every entry validates.
// @Tags admin
// @Accept json
// @Accept x-yaml
// @Produce json
// @Security BearerAuth
// @Success 201 {object} object{imported=int}
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/challenges/import [post]
func (s *Server) AdminImportChallenges(c *fiber.Ctx) error {
	pack, err := validation.ParseChallengePack(c.Body())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	created, err := s.challengeService.Import(c.UserContext(), actor, pack.Challenges, pack.Hidden)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeValidation {
			// keep the entry position in the message
			return models.RespondWithError(c, fiber.StatusBadRequest, &models.AppError{
				Code:    appErr.Code,
				Message: err.Error(),
				Fields:  appErr.Fields,
			})
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"imported": len(created)})
}

// AdminUpdateChallenge handles PUT /api/admin/challenges/:id
// @Summary Edit a challenge
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID"
// @Param request body validation.ChallengeFields true "Request body"
// @Success 200 {object} models.AdminChallenge
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/challenges/{id} [put]
func (s *Server) AdminUpdateChallenge(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var fields validation.ChallengeFields
	if err := c.BodyParser(&fields); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	challenge, err := s.challengeService.Update(c.UserContext(), actor, id, fields)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(challenge.ToAdminView())
}

// AdminHideChallenge handles POST /api/admin/challenges/:id/hide
// @Summary Withdraw a challenge
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID"
// @Success 200 {object} object{id=int,hidden=bool}
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/challenges/{id}/hide [post]
func (s *Server) AdminHideChallenge(c *fiber.Ctx) error {
	return s.setChallengeHidden(c, true)
}

// AdminUnhideChallenge handles POST /api/admin/challenges/:id/unhide
// @Summary Release a challenge
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID"
// @Success 200 {object} object{id=int,hidden=bool}
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/challenges/{id}/unhide [post]
func (s *Server) AdminUnhideChallenge(c *fiber.Ctx) error {
	return s.setChallengeHidden(c, false)
}

func (s *Server) setChallengeHidden(c *fiber.Ctx, hidden bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.challengeService.SetHidden(c.UserContext(), actor, id, hidden); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"id": id, "hidden": hidden})
}

// AdminDeleteChallenge handles DELETE /api/admin/challenges/:id
// @Summary Delete a challenge
// @Description Its solves stop counting toward scores.
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Challenge ID"
// @Success 204
// @Router /admin/challenges/{id} [delete]
func (s *Server) AdminDeleteChallenge(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.challengeService.Delete(c.UserContext(), actor, id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AdminListUsers handles GET /api/admin/users
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "1-based page"
// @Param per_page query int false "Page size"
// @Success 200 {object} object{users=[]models.User,total=int}
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/users [get]
func (s *Server) AdminListUsers(c *fiber.Ctx) error {
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	page, perPage := pageQuery(c, service.DefaultPageSize)
	users, total, err := s.userService.ListUsers(c.UserContext(), actor, page, perPage)
	if err != nil {
		return respondError(c, err)
	}
	if users == nil {
		users = []models.User{}
	}
	return c.JSON(fiber.Map{"users": users, "total": total})
}

// AdminListAdmins handles GET /api/admin/users/admins
// @Summary List staff
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.User
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/users/admins [get]
func (s *Server) AdminListAdmins(c *fiber.Ctx) error {
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	admins, err := s.userService.ListAdmins(c.UserContext(), actor)
	if err != nil {
		return respondError(c, err)
	}
	if admins == nil {
		admins = []models.User{}
	}
	return c.JSON(admins)
}

// PromoteToAdmin handles POST /api/admin/users/:id/promote
// @Summary Grant the admin role
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID"
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/users/{id}/promote [post]
func (s *Server) PromoteToAdmin(c *fiber.Ctx) error {
	return s.setRole(c, models.RoleAdmin)
}

// DemoteFromAdmin handles POST /api/admin/users/:id/demote
// @Summary Revoke the admin role
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID"
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/users/{id}/demote [post]
func (s *Server) DemoteFromAdmin(c *fiber.Ctx) error {
	return s.setRole(c, models.RoleMember)
}

func (s *Server) setRole(c *fiber.Ctx, role models.Role) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	user, err := s.userService.SetRole(c.UserContext(), actor, id, role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// AdminDeleteUser handles DELETE /api/admin/users/:id
// @Summary Delete a user
// @Description Refused for your own account and for users who own solves.
// @Tags admin
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/users/{id} [delete]
func (s *Server) AdminDeleteUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.userService.DeleteUser(c.UserContext(), actor, id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ResetSolves handles POST /api/admin/reset-solves
// @Summary Reset the competition
// @Description Deletes every solve. All scores drop to zero.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{deleted=int}
// @Router /admin/reset-solves [post]
func (s *Server) ResetSolves(c *fiber.Ctx) error {
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	n, err := s.scoreboardService.ResetSolves(c.UserContext(), actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": n})
}
