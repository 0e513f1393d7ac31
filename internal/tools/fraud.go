package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mbd888/fingate/internal/risk"
	"github.com/mbd888/fingate/internal/store"
)

// AlertPublisher pushes fraud alerts to connected clients. Satisfied by
// events.Hub.
type AlertPublisher interface {
	PublishFraudAlert(assessment *risk.Assessment)
}

// FraudTool scores a candidate transaction against the user's recent
// history and broadcasts an alert when the verdict is BLOCK.
type FraudTool struct {
	scorer    *risk.Scorer
	repo      store.Repository
	publisher AlertPublisher
}

// NewFraudTool creates the fraud scoring tool. publisher may be nil
// (no alert broadcast).
func NewFraudTool(scorer *risk.Scorer, repo store.Repository, publisher AlertPublisher) *FraudTool {
	return &FraudTool{scorer: scorer, repo: repo, publisher: publisher}
}

func (t *FraudTool) Name() string { return "fraud_risk_scorer" }

func (t *FraudTool) Description() string {
	return "Real-time fraud risk scoring for transactions"
}

func (t *FraudTool) Parameters() map[string]any {
	return map[string]any{
		"transaction": map[string]any{"type": "object", "required": true, "description": "Candidate transaction (amount, merchant, category, date, mode)"},
		"user_id":     map[string]any{"type": "string", "required": false, "description": "User whose history to score against"},
		"real_time":   map[string]any{"type": "boolean", "required": false, "description": "Broadcast an alert when blocked (default true)"},
	}
}

func (t *FraudTool) Execute(ctx context.Context, userID string, params json.RawMessage) (any, error) {
	p := struct {
		Transaction struct {
			ID       string  `json:"id"`
			Amount   float64 `json:"amount"`
			Merchant string  `json:"merchant"`
			Category string  `json:"category"`
			Date     string  `json:"date"`
			Mode     string  `json:"mode"`
		} `json:"transaction"`
		UserID   string `json:"user_id"`
		RealTime *bool  `json:"real_time"`
	}{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid parameters: %w", err)
		}
	}
	if userID == "" {
		userID = p.UserID
	}

	tx := &risk.Transaction{
		ID:       p.Transaction.ID,
		Amount:   p.Transaction.Amount,
		Merchant: p.Transaction.Merchant,
		Category: p.Transaction.Category,
		Mode:     p.Transaction.Mode,
	}
	if p.Transaction.Date != "" {
		date, err := time.Parse(time.RFC3339, p.Transaction.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction date: %w", err)
		}
		tx.Date = date
	}

	history, err := t.loadHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	assessment, err := t.scorer.Score(ctx, userID, tx, history)
	if err != nil {
		return nil, err
	}

	realTime := p.RealTime == nil || *p.RealTime
	if realTime && assessment.Action == risk.ActionBlock && t.publisher != nil {
		t.publisher.PublishFraudAlert(assessment)
	}

	return assessment, nil
}

func (t *FraudTool) loadHistory(ctx context.Context, userID string) ([]*risk.Transaction, error) {
	txns, err := t.repo.TransactionsByUser(ctx, userID, nil, 100)
	if err != nil {
		return nil, err
	}
	history := make([]*risk.Transaction, 0, len(txns))
	for _, txn := range txns {
		history = append(history, &risk.Transaction{
			ID:       txn.ID,
			Amount:   txn.Amount,
			Merchant: txn.Merchant,
			Category: txn.Category,
			Date:     txn.Date,
		})
	}
	return history, nil
}
