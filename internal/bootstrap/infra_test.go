package bootstrap

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthadvisor-ai/internal/config"
	"wealthadvisor-ai/internal/model"
	"wealthadvisor-ai/internal/pkg/logger"
	"wealthadvisor-ai/pkg/database"
)

func TestMigrate_ReviewAuditOnly(t *testing.T) {
	db, err := database.Open(sqlite.Open(filepath.Join(t.TempDir(), "app.db")), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, Migrate(db, false))
	assert.True(t, db.Migrator().HasTable(&model.ReviewAudit{}))
	assert.False(t, db.Migrator().HasTable(&model.KnowledgeChunk{}))
}

func TestOpenDatabase_NoConnectionString(t *testing.T) {
	db, err := OpenDatabase(&config.Config{}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestOpenRedis(t *testing.T) {
	log := logger.NewNopLogger()

	assert.Nil(t, OpenRedis(&config.Config{}, log))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	cfg := &config.Config{App: config.AppConfig{RedisURL: "redis://" + mr.Addr()}}
	rdb := OpenRedis(cfg, log)
	require.NotNil(t, rdb)
	t.Cleanup(func() { rdb.Close() })

	mr.Close()
	assert.Nil(t, OpenRedis(cfg, log))
}

func TestReviewerAuth_WithoutSecret(t *testing.T) {
	app := fiber.New()
	app.Get("/review", reviewerAuth(&config.Config{}, logger.NewNopLogger()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/review", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
