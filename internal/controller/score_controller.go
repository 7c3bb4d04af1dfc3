package controller

import (
	"github.com/gofiber/fiber/v2"

	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/internal/pkg/serverutils"
	"wealthadvisor-ai/internal/service"
)

type IScoreController interface {
	RegisterRoutes(r fiber.Router)
	ScoreAnswer(ctx *fiber.Ctx) error
	CheckHallucination(ctx *fiber.Ctx) error
}

type scoreController struct {
	scoringService service.IScoringService
}

func NewScoreController(scoringService service.IScoringService) IScoreController {
	return &scoreController{scoringService: scoringService}
}

func (c *scoreController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/score/v1")
	h.Post("", c.ScoreAnswer)
	h.Post("hallucination", c.CheckHallucination)
}

func (c *scoreController) ScoreAnswer(ctx *fiber.Ctx) error {
	var req dto.ScoreAnswerRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.scoringService.ScoreAnswer(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Answer scored", res))
}

func (c *scoreController) CheckHallucination(ctx *fiber.Ctx) error {
	var req dto.HallucinationCheckRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.scoringService.CheckHallucination(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Hallucination check", res))
}
