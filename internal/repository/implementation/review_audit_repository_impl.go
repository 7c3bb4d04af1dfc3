package implementation

import (
	"context"
	"errors"
	"time"

	"wealthadvisor-ai/internal/entity"
	"wealthadvisor-ai/internal/mapper"
	"wealthadvisor-ai/internal/model"
	"wealthadvisor-ai/internal/repository/contract"
	"wealthadvisor-ai/internal/repository/scope"
	"wealthadvisor-ai/internal/repository/specification"

	"gorm.io/gorm"
)

type ReviewAuditRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ReviewAuditMapper
}

func NewReviewAuditRepository(db *gorm.DB) contract.ReviewAuditRepository {
	return &ReviewAuditRepositoryImpl{
		db:     db,
		mapper: mapper.NewReviewAuditMapper(),
	}
}

func (r *ReviewAuditRepositoryImpl) Create(ctx context.Context, audit *entity.ReviewAudit) error {
	m := r.mapper.ToModel(audit)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*audit = *r.mapper.ToEntity(m)
	return nil
}

func (r *ReviewAuditRepositoryImpl) RecordDecision(ctx context.Context, id, status, reviewerId, correction string, decidedAt time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":      status,
		"reviewer_id": reviewerId,
		"decided_at":  decidedAt,
	}
	if correction != "" {
		updates["correction"] = correction
	}
	res := specification.Apply(r.db.WithContext(ctx).Model(&model.ReviewAudit{}), specification.ByID{ID: id}).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ReviewAuditRepositoryImpl) FindById(ctx context.Context, id string) (*entity.ReviewAudit, error) {
	var m model.ReviewAudit
	if err := (specification.ByID{ID: id}).Apply(r.db.WithContext(ctx)).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ReviewAuditRepositoryImpl) List(ctx context.Context, status string, limit int) ([]*entity.ReviewAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	query := specification.Apply(
		r.db.WithContext(ctx).Scopes(scope.OrderByCreatedDesc),
		specification.ByStatus{Status: status},
		specification.Pagination{Limit: limit},
	)
	var models []*model.ReviewAudit
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ReviewAudit, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}
