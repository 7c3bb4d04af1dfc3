package service

import (
	"context"
	"fmt"

	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/pkg/bandit"
	"wealthadvisor-ai/pkg/rlhf"
)

type IStrategyService interface {
	Select(ctx context.Context, req *dto.SelectStrategyRequest) (*dto.SelectStrategyResponse, error)
	Stats(ctx context.Context) (*dto.StrategyStatsResponse, error)
}

type strategyService struct {
	selector *bandit.StrategySelector
	armStats *rlhf.ArmStatsStore
}

// NewStrategyService exposes the bandit directly. armStats may be nil.
func NewStrategyService(selector *bandit.StrategySelector, armStats *rlhf.ArmStatsStore) IStrategyService {
	return &strategyService{selector: selector, armStats: armStats}
}

func (s *strategyService) Select(ctx context.Context, req *dto.SelectStrategyRequest) (*dto.SelectStrategyResponse, error) {
	res, err := s.selector.SelectStrategy(req.SessionId, bandit.Labels{
		Intent:     req.Intent,
		Anxiety:    req.Anxiety,
		Urgency:    req.Urgency,
		Confidence: req.Confidence,
		Polarity:   req.Polarity,
	})
	if err != nil {
		return nil, fmt.Errorf("select strategy: %w", err)
	}
	return &dto.SelectStrategyResponse{
		SessionId:     req.SessionId,
		Action:        res.Action,
		ActionIdx:     res.ActionIdx,
		UCBScores:     res.UCBScores,
		ContextVector: res.ContextVector,
	}, nil
}

func (s *strategyService) Stats(ctx context.Context) (*dto.StrategyStatsResponse, error) {
	st := s.selector.Bandit().Stats()
	arms := make([]dto.ArmStatsDTO, len(st.Actions))
	for i, a := range st.Actions {
		arms[i] = dto.ArmStatsDTO{Action: a, Selections: st.TotalSelections[i]}
		if s.armStats == nil {
			continue
		}
		if as, ok := s.armStats.Get(a); ok {
			arms[i].AvgReward = as.AvgReward
			arms[i].NSamples = as.NSamples
		}
	}
	return &dto.StrategyStatsResponse{Alpha: st.Alpha, ContextDim: st.ContextDim, Arms: arms}, nil
}
