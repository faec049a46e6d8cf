package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pocketwise/server/internal/agent/graph"
	"github.com/pocketwise/server/internal/agent/model"
	errx "github.com/pocketwise/server/internal/core/error"
	logx "github.com/pocketwise/server/pkg/logger"
)

// Server exposes the conversation engine over HTTP.
type Server struct {
	app    *fiber.App
	runner graph.Runner
	store  model.StateStore
}

type chatRequest struct {
	UserID   string `json:"user_id"`
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

type chatResponse struct {
	ThreadID string `json:"thread_id"`
	Reply    string `json:"reply"`
}

func New(runner graph.Runner, store model.StateStore) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "pocketwise",
			DisableStartupMessage: true,
		}),
		runner: runner,
		store:  store,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Post("/chat", s.handleChat)
	s.app.Get("/threads/:thread_id/tools", s.handleToolHistory)
}

// Listen blocks serving HTTP on addr.
func (s *Server) Listen(addr string) error {
	logx.Info().Str("addr", addr).Msg("HTTP server listening")
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message is required"})
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}

	reply, err := s.runner.Run(c.Context(), req.ThreadID, req.UserID, req.Message)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", req.ThreadID).Msg("Chat turn failed")
		status := fiber.StatusInternalServerError
		var appErr *errx.AppError
		if errors.As(err, &appErr) && appErr.Status > 0 {
			status = appErr.Status
		}
		return c.Status(status).JSON(fiber.Map{"error": "conversation unavailable"})
	}

	return c.JSON(chatResponse{ThreadID: req.ThreadID, Reply: reply})
}

func (s *Server) handleToolHistory(c *fiber.Ctx) error {
	threadID := c.Params("thread_id")

	state, err := s.store.Load(c.Context(), threadID)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("Failed to load thread state")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "state unavailable"})
	}
	if state == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown thread"})
	}

	history := state.ToolCallHistory
	if history == nil {
		history = []model.ToolCallRecord{}
	}
	return c.JSON(fiber.Map{
		"thread_id": threadID,
		"tools":     history,
	})
}
