package controller

import (
	"github.com/gofiber/fiber/v2"

	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/internal/pkg/serverutils"
	"wealthadvisor-ai/internal/service"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Query(ctx *fiber.Ctx) error
	SessionInfo(ctx *fiber.Ctx) error
	ClearSession(ctx *fiber.Ctx) error
	Feedback(ctx *fiber.Ctx) error
}

type chatController struct {
	advisorService service.IAdvisorService
	limiter        fiber.Handler
}

// NewChatController serves the advisor. limiter, when non-nil, guards the
// query route only.
func NewChatController(advisorService service.IAdvisorService, limiter fiber.Handler) IChatController {
	return &chatController{advisorService: advisorService, limiter: limiter}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	if c.limiter != nil {
		h.Post("", c.limiter, c.Query)
	} else {
		h.Post("", c.Query)
	}
	h.Post("feedback", c.Feedback)
	h.Get("session/:id", c.SessionInfo)
	h.Delete("session/:id", c.ClearSession)
}

func (c *chatController) Query(ctx *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.advisorService.Query(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success answer question", res))
}

func (c *chatController) SessionInfo(ctx *fiber.Ctx) error {
	res, err := c.advisorService.SessionInfo(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session info", res))
}

func (c *chatController) ClearSession(ctx *fiber.Ctx) error {
	res, err := c.advisorService.ClearSession(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session cleared", res))
}

func (c *chatController) Feedback(ctx *fiber.Ctx) error {
	var req dto.ChatFeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.advisorService.Feedback(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Feedback recorded", res))
}
