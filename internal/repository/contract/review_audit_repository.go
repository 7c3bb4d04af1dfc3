package contract

import (
	"context"
	"time"

	"wealthadvisor-ai/internal/entity"
)

type ReviewAuditRepository interface {
	Create(ctx context.Context, audit *entity.ReviewAudit) error
	// RecordDecision returns false when no audit row has that id.
	RecordDecision(ctx context.Context, id, status, reviewerId, correction string, decidedAt time.Time) (bool, error)
	FindById(ctx context.Context, id string) (*entity.ReviewAudit, error)
	// List returns newest first; an empty status matches every row.
	List(ctx context.Context, status string, limit int) ([]*entity.ReviewAudit, error)
}
