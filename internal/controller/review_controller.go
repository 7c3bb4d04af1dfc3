package controller

import (
	"github.com/gofiber/fiber/v2"

	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/internal/handler"
	"wealthadvisor-ai/internal/pkg/serverutils"
	"wealthadvisor-ai/internal/service"
)

type IReviewController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Decide(ctx *fiber.Ctx) error
}

type reviewController struct {
	reviewService service.IReviewService
	feed          *handler.ReviewFeedHandler
	auth          fiber.Handler
}

// NewReviewController serves the CA queue. Every route requires auth; feed
// may be nil when the live feed is disabled.
func NewReviewController(reviewService service.IReviewService, feed *handler.ReviewFeedHandler, auth fiber.Handler) IReviewController {
	return &reviewController{reviewService: reviewService, feed: feed, auth: auth}
}

func (c *reviewController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/review/v1")
	h.Use(c.auth)
	if c.feed != nil {
		h.Get("ws", c.feed.Upgrade, c.feed.ServeWs())
	}
	h.Get("", c.List)
	h.Patch(":id", c.Decide)
}

func (c *reviewController) List(ctx *fiber.Ctx) error {
	var req dto.ListReviewsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.reviewService.List(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Review queue", res))
}

func (c *reviewController) Decide(ctx *fiber.Ctx) error {
	var req dto.ReviewDecisionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Id = ctx.Params("id")
	req.ReviewerId = serverutils.ReviewerID(ctx)
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.reviewService.Decide(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Review decided", res))
}
