package serverutils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthadvisor-ai/internal/constant"
	"wealthadvisor-ai/internal/pkg/logger"
)

type sampleRequest struct {
	Question string `json:"question" validate:"required,max=10"`
	Rating   string `json:"rating" validate:"oneof=up down"`
}

func decode(t *testing.T, body io.Reader) ErrorBody {
	t.Helper()
	var out ErrorBody
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func newApp(handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware(logger.NewNopLogger()))
	app.Get("/", handler)
	return app
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sampleRequest{Question: "hi", Rating: "up"}))

	err := ValidateRequest(sampleRequest{Question: "far too long a question", Rating: "sideways"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be at most 10 characters", verr.Fields["question"])
	assert.Equal(t, "must be one of: up down", verr.Fields["rating"])
}

func TestErrorHandler(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"client error keeps message", fiber.NewError(fiber.StatusConflict, "already decided"), 409, "already decided"},
		{"validation", ValidateRequest(sampleRequest{Rating: "up"}), 400, "validation failed"},
		{"internal error is hidden", errors.New("pq: connection refused"), 500, constant.InternalErrorMessage},
		{"unavailable keeps message", fiber.NewError(fiber.StatusServiceUnavailable, "knowledge base is not ready"), 503, "knowledge base is not ready"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newApp(func(c *fiber.Ctx) error { return tc.err })
			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.code, resp.StatusCode)
			body := decode(t, resp.Body)
			assert.Equal(t, tc.message, body.Message)
			assert.False(t, body.Success)
		})
	}
}

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJwtMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(JwtMiddleware("s3cret"))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(ReviewerID(c)) })

	valid := signed(t, "s3cret", jwt.MapClaims{"reviewer_id": "ca-42", "exp": time.Now().Add(time.Hour).Unix()})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ca-42", string(body))

	resp, err = app.Test(httptest.NewRequest("GET", "/?token="+signed(t, "s3cret", jwt.MapClaims{"sub": "ca-7"}), nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "ca-7", string(body))

	for _, token := range []string{
		"",
		signed(t, "other", jwt.MapClaims{"reviewer_id": "ca-42"}),
		signed(t, "s3cret", jwt.MapClaims{"reviewer_id": "ca-42", "exp": time.Now().Add(-time.Hour).Unix()}),
		signed(t, "s3cret", jwt.MapClaims{"role": "ca"}),
	} {
		req := httptest.NewRequest("GET", "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
	}
}

func TestRateLimiter(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware(logger.NewNopLogger()))
	app.Use(NewRateLimiter(0.001, 2).Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(204) })

	codes := make([]int, 3)
	for i := range codes {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		codes[i] = resp.StatusCode
	}
	assert.Equal(t, []int{204, 204, 429}, codes)
}

func TestSuccessResponse(t *testing.T) {
	res := SuccessResponse("ok", map[string]int{"n": 1})
	assert.True(t, res.Success)
	assert.Equal(t, 200, res.Code)
	assert.Equal(t, 1, res.Data["n"])
}
