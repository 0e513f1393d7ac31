package resources

import (
	"context"
	"encoding/json"
	"math"

	"github.com/mbd888/fingate/internal/protocol"
)

func (c *Catalog) handleInvestments(ctx context.Context, userID, action string, params json.RawMessage) (any, *protocol.Error) {
	switch action {
	case "list", "aggregate":
		return c.listInvestments(ctx, userID)
	default:
		return nil, unknownAction(action)
	}
}

func (c *Catalog) listInvestments(ctx context.Context, userID string) (any, *protocol.Error) {
	investments, err := c.repo.InvestmentsByUser(ctx, userID)
	if err != nil {
		return nil, c.internalError("investments.list", err)
	}

	var invested, current float64
	for _, i := range investments {
		invested += i.InvestedAmount
		current += i.CurrentValue
	}
	returns := current - invested
	var returnsPct float64
	if invested > 0 {
		returnsPct = math.Round(returns/invested*10000) / 100
	}

	return map[string]any{
		"investments": investments,
		"summary": map[string]any{
			"total_invested":     invested,
			"current_value":      current,
			"total_returns":      returns,
			"returns_percentage": returnsPct,
		},
	}, nil
}

func (c *Catalog) handleGoals(ctx context.Context, userID, action string, params json.RawMessage) (any, *protocol.Error) {
	switch action {
	case "list":
		return c.listGoals(ctx, userID)
	default:
		return nil, unknownAction(action)
	}
}

func (c *Catalog) listGoals(ctx context.Context, userID string) (any, *protocol.Error) {
	goals, err := c.repo.GoalsByUser(ctx, userID)
	if err != nil {
		return nil, c.internalError("goals.list", err)
	}

	var progress float64
	onTrack, behind := 0, 0
	for _, g := range goals {
		progress += g.ProgressPercent
		switch g.Status {
		case "ON_TRACK":
			onTrack++
		case "BEHIND":
			behind++
		}
	}
	var avg float64
	if len(goals) > 0 {
		avg = math.Round(progress/float64(len(goals))*10) / 10
	}

	return map[string]any{
		"goals": goals,
		"summary": map[string]any{
			"total_goals":      len(goals),
			"average_progress": avg,
			"on_track":         onTrack,
			"behind":           behind,
		},
	}, nil
}
