package controller

import (
	"github.com/gofiber/fiber/v2"

	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/internal/pkg/serverutils"
	"wealthadvisor-ai/internal/service"
)

type IRLHFController interface {
	RegisterRoutes(r fiber.Router)
	Feedback(ctx *fiber.Ctx) error
	Run(ctx *fiber.Ctx) error
	Preference(ctx *fiber.Ctx) error
}

type rlhfController struct {
	rlhfService service.IRLHFService
	auth        fiber.Handler
}

// NewRLHFController exposes the feedback pipeline. auth, when non-nil,
// protects the manual run trigger.
func NewRLHFController(rlhfService service.IRLHFService, auth fiber.Handler) IRLHFController {
	return &rlhfController{rlhfService: rlhfService, auth: auth}
}

func (c *rlhfController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/rlhf/v1")
	h.Post("feedback", c.Feedback)
	h.Get("preference", c.Preference)
	if c.auth != nil {
		h.Post("run", c.auth, c.Run)
	} else {
		h.Post("run", c.Run)
	}
}

func (c *rlhfController) Feedback(ctx *fiber.Ctx) error {
	var req dto.RLHFFeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.rlhfService.Feedback(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Feedback processed", res))
}

func (c *rlhfController) Run(ctx *fiber.Ctx) error {
	var req dto.RLHFRunRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	res, err := c.rlhfService.Run(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("RLHF run finished", res))
}

func (c *rlhfController) Preference(ctx *fiber.Ctx) error {
	res, err := c.rlhfService.Preference(ctx.UserContext(), ctx.Query("query"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Retrieval preference", res))
}
