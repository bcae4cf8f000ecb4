package server

import (
	"errors"

	"pulse/internal/models"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case "VALIDATION_ERROR":
		return fiber.StatusBadRequest
	case "UNAUTHORIZED":
		return fiber.StatusUnauthorized
	case "FORBIDDEN":
		return fiber.StatusForbidden
	case "NOT_FOUND":
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func respondWithServiceError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	var appErr *models.AppError
	if status == fiber.StatusInternalServerError && !errors.As(err, &appErr) {
		err = models.NewInternalError(err)
	}
	return models.RespondWithError(c, status, err)
}

// GetHotPosts handles GET /api/posts/hot?limit=&offset=
func (s *Server) GetHotPosts(c *fiber.Ctx) error {
	posts, err := s.feed.HotPosts(c.UserContext(), c.QueryInt("limit", defaultPageSize), c.QueryInt("offset", 0))
	if err != nil {
		return respondWithServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetLeaderboard handles GET /api/users/leaderboard?limit=&offset=
func (s *Server) GetLeaderboard(c *fiber.Ctx) error {
	entries, err := s.feed.Leaderboard(c.UserContext(), c.QueryInt("limit", defaultPageSize), c.QueryInt("offset", 0))
	if err != nil {
		return respondWithServiceError(c, err)
	}
	return c.JSON(entries)
}

// TriggerHourly runs the hot-score pass now and returns its report.
func (s *Server) TriggerHourly(c *fiber.Ctx) error {
	report, err := s.jobs.RunHourly(c.UserContext())
	if err != nil {
		return respondWithServiceError(c, err)
	}
	return c.JSON(report)
}

// TriggerDaily runs the streak pass now and returns its report.
func (s *Server) TriggerDaily(c *fiber.Ctx) error {
	report, err := s.jobs.RunDaily(c.UserContext())
	if err != nil {
		return respondWithServiceError(c, err)
	}
	return c.JSON(report)
}
