package serverutils

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JwtMiddleware authenticates CA reviewers. The token comes from the
// Authorization header or, for websocket upgrades, the token query parameter.
func JwtMiddleware(secret string) fiber.Handler {
	key := []byte(secret)
	return func(ctx *fiber.Ctx) error {
		tokenStr := ""
		if auth := ctx.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
			tokenStr = auth[len("Bearer "):]
		} else {
			tokenStr = ctx.Query("token")
		}
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
		if err != nil || !token.Valid {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims"))
		}
		reviewer, _ := claims["reviewer_id"].(string)
		if reviewer == "" {
			reviewer, _ = claims.GetSubject()
		}
		if reviewer == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims"))
		}

		ctx.Locals("reviewer_id", reviewer)
		return ctx.Next()
	}
}

// ReviewerID reads the id JwtMiddleware stored.
func ReviewerID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals("reviewer_id").(string)
	return id
}
