// Package risk implements real-time fraud risk scoring for transactions.
//
// Every candidate transaction is evaluated against weighted factors:
// amount deviation, time of day, merchant reputation, velocity, and
// channel. Scores range from 0.0 (safe) to 1.0 (high risk); every
// triggered factor carries a human-readable reason so the verdict can
// be explained to the customer.
package risk

import (
	"context"
	"errors"
	"time"
)

// Action is the scorer's verdict on a transaction.
type Action string

const (
	ActionAllow  Action = "ALLOW"
	ActionReview Action = "REVIEW"
	ActionBlock  Action = "BLOCK"
)

// Decision thresholds.
const (
	BlockThreshold  = 0.7
	ReviewThreshold = 0.4
)

// ErrInvalidTransaction is returned when the candidate transaction is
// missing required fields (amount, merchant).
var ErrInvalidTransaction = errors.New("transaction missing amount or merchant")

// Transaction is a candidate transaction to score. History entries use
// the same shape with only Amount and Date consulted.
type Transaction struct {
	ID       string    `json:"id"`
	Amount   float64   `json:"amount"`
	Merchant string    `json:"merchant"`
	Category string    `json:"category"`
	Date     time.Time `json:"date"`
	Mode     string    `json:"mode"` // e.g. UPI, CARD, INTERNATIONAL_CARD
}

// Factor is one triggered risk signal with its contribution and reason.
type Factor struct {
	Name   string  `json:"factor"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// PatternAnalysis summarizes the user's spending baseline used for the
// amount-deviation factor.
type PatternAnalysis struct {
	AvgTransaction float64 `json:"user_avg_transaction"`
	MaxTransaction float64 `json:"user_max_transaction"`
	DeviationScore float64 `json:"deviation_score"`
}

// Assessment is the result of scoring a single transaction.
type Assessment struct {
	ID             string          `json:"id"`
	TransactionID  string          `json:"transaction_id"`
	UserID         string          `json:"user_id"`
	Score          float64         `json:"risk_score"`
	Severity       string          `json:"severity"`
	Action         Action          `json:"action"`
	Factors        []Factor        `json:"risk_factors"`
	Recommendation string          `json:"recommendation"`
	Confidence     float64         `json:"ml_confidence"`
	Pattern        PatternAnalysis `json:"pattern_analysis"`
	AlertTriggered bool            `json:"alert_triggered,omitempty"`
	EvaluatedAt    time.Time       `json:"evaluated_at"`
}

// Store persists assessments for the audit trail.
type Store interface {
	Record(ctx context.Context, assessment *Assessment) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error)
}
