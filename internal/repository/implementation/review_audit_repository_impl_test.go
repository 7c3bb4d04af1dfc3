package implementation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"wealthadvisor-ai/internal/entity"
	"wealthadvisor-ai/internal/model"
	"wealthadvisor-ai/pkg/database"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuditRepo(t *testing.T) *ReviewAuditRepositoryImpl {
	db, err := database.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.ReviewAudit{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewReviewAuditRepository(db).(*ReviewAuditRepositoryImpl)
}

func TestReviewAuditRepository(t *testing.T) {
	ctx := context.Background()
	repo := newAuditRepo(t)
	base := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"rev_a", "rev_b", "rev_c"} {
		require.NoError(t, repo.Create(ctx, &entity.ReviewAudit{
			Id:            id,
			SessionId:     "s1",
			Query:         "What is the STCG rate?",
			Answer:        "15%",
			Reason:        "Hallucination detected",
			Confidence:    0.2,
			Action:        "full_pipeline",
			Intent:        "tax",
			Status:        "pending",
			Hallucination: true,
			Components:    map[string]float64{"retrieval": 0.5, "hallucination_penalty": -0.4},
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := repo.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"rev_c", "rev_b", "rev_a"}, []string{all[0].Id, all[1].Id, all[2].Id})
	assert.Equal(t, -0.4, all[0].Components["hallucination_penalty"])
	assert.Empty(t, all[0].ReviewerId)

	decided := base.Add(time.Hour)
	ok, err := repo.RecordDecision(ctx, "rev_a", "edited", "ca-7", "STCG under 111A is 20%.", decided)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindById(ctx, "rev_a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "edited", got.Status)
	assert.Equal(t, "ca-7", got.ReviewerId)
	assert.Equal(t, "STCG under 111A is 20%.", got.Correction)
	require.NotNil(t, got.DecidedAt)
	assert.WithinDuration(t, decided, *got.DecidedAt, time.Second)

	pending, err := repo.List(ctx, "pending", 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	limited, err := repo.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestReviewAuditRepository_Missing(t *testing.T) {
	ctx := context.Background()
	repo := newAuditRepo(t)

	got, err := repo.FindById(ctx, "rev_nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err := repo.RecordDecision(ctx, "rev_nope", "approved", "ca-1", "", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}
