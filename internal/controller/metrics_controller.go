package controller

import (
	"github.com/gofiber/fiber/v2"

	"wealthadvisor-ai/internal/pkg/serverutils"
	"wealthadvisor-ai/internal/service"
)

type IMetricsController interface {
	RegisterRoutes(r fiber.Router)
	Summary(ctx *fiber.Ctx) error
}

type metricsController struct {
	advisorService service.IAdvisorService
}

func NewMetricsController(advisorService service.IAdvisorService) IMetricsController {
	return &metricsController{advisorService: advisorService}
}

func (c *metricsController) RegisterRoutes(r fiber.Router) {
	r.Get("/metrics/v1", c.Summary)
}

func (c *metricsController) Summary(ctx *fiber.Ctx) error {
	res, err := c.advisorService.Metrics(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Evaluation metrics", res))
}
