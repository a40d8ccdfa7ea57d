package server

import (
	"ctfarena/internal/models"
	"ctfarena/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/posts/:id/comments
// @Summary Comments on a post
// @Tags community
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	comments, err := s.commentService.ListComments(c.UserContext(), postID)
	if err != nil {
		return respondError(c, err)
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Tags community
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body object{content=string} true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), actor, service.CreateCommentInput{
		PostID:  postID,
		Content: req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// AdminDeleteComment handles DELETE /api/admin/comments/:id
// @Summary Delete a comment
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID"
// @Success 204 "No Content"
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/comments/{id} [delete]
func (s *Server) AdminDeleteComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.commentService.DeleteComment(c.UserContext(), actor, id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
