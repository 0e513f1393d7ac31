package risk

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists assessments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, assessment *Assessment) error {
	factorsJSON, err := json.Marshal(assessment.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_assessments
			(id, user_id, transaction_id, score, severity, action, factors, recommendation, confidence, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		assessment.ID,
		assessment.UserID,
		assessment.TransactionID,
		assessment.Score,
		assessment.Severity,
		string(assessment.Action),
		factorsJSON,
		assessment.Recommendation,
		assessment.Confidence,
		assessment.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("record risk assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, transaction_id, score, severity, action, factors, recommendation, confidence, evaluated_at
		FROM risk_assessments
		WHERE user_id = $1
		ORDER BY evaluated_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list risk assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Assessment
	for rows.Next() {
		var a Assessment
		var factorsJSON []byte
		err := rows.Scan(&a.ID, &a.UserID, &a.TransactionID, &a.Score, &a.Severity,
			&a.Action, &factorsJSON, &a.Recommendation, &a.Confidence, &a.EvaluatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan risk assessment: %w", err)
		}
		_ = json.Unmarshal(factorsJSON, &a.Factors)
		result = append(result, &a)
	}
	return result, rows.Err()
}
