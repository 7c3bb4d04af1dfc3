package controller

import (
	"github.com/gofiber/fiber/v2"

	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/internal/pkg/serverutils"
	"wealthadvisor-ai/internal/service"
)

type IStrategyController interface {
	RegisterRoutes(r fiber.Router)
	Select(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type strategyController struct {
	strategyService service.IStrategyService
}

func NewStrategyController(strategyService service.IStrategyService) IStrategyController {
	return &strategyController{strategyService: strategyService}
}

func (c *strategyController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/strategy/v1")
	h.Post("select", c.Select)
	h.Get("stats", c.Stats)
}

func (c *strategyController) Select(ctx *fiber.Ctx) error {
	var req dto.SelectStrategyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.strategyService.Select(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Strategy selected", res))
}

func (c *strategyController) Stats(ctx *fiber.Ctx) error {
	res, err := c.strategyService.Stats(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Strategy stats", res))
}
