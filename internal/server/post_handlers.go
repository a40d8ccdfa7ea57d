package server

import (
	"ctfarena/internal/models"
	"ctfarena/internal/service"

	"github.com/gofiber/fiber/v2"
)

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// GetPosts handles GET /api/posts
// @Summary Community posts
// @Tags community
// @Produce json
// @Param page query int false "1-based page"
// @Param per_page query int false "Page size"
// @Success 200 {object} service.PostPage
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, perPage := pageQuery(c, s.config.PostsPerPage)
	result, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Page:          page,
		PerPage:       perPage,
		CurrentUserID: viewerID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetPost handles GET /api/posts/:id
// @Summary Post detail with comments
// @Tags community
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	comments, err := s.commentService.ListComments(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	post.Comments = comments
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags community
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{title=string,content=string} true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), actor, service.CreatePostInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpvotePost handles POST /api/posts/:id/upvote
// @Summary Upvote a post
// @Description One vote per user; repeating it is a no-op.
// @Tags community
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} service.UpvoteResult
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/upvote [post]
func (s *Server) UpvotePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	result, err := s.postService.Upvote(c.UserContext(), actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// AdminUpdatePost handles PUT /api/admin/posts/:id
// @Summary Edit a post
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID"
// @Param request body server.postRequest true "Request body"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/posts/{id} [put]
func (s *Server) AdminUpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), actor, id, service.CreatePostInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// AdminDeletePost handles DELETE /api/admin/posts/:id
// @Summary Delete a post
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID"
// @Success 204 "No Content"
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/posts/{id} [delete]
func (s *Server) AdminDeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	actor, _, err := s.actor(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.postService.DeletePost(c.UserContext(), actor, id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
