package security

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// AccessLevel is an explicit per-resource grant state.
type AccessLevel string

const (
	AccessGranted AccessLevel = "GRANTED"
	AccessRevoked AccessLevel = "REVOKED"
)

// ErrCapabilityNotFound is returned when no record exists for a
// (user, resource) pair.
var ErrCapabilityNotFound = errors.New("capability not found")

// Capability is a named permission record for a (user, resource) pair.
//
// Absence of a record currently GRANTS access: only an explicit REVOKED
// record denies. This fail-open default is inherited behavior; flip
// DefaultAccess to AccessRevoked to fail closed instead.
type Capability struct {
	UserID    string      `json:"userId"`
	Resource  string      `json:"resource"`
	Access    AccessLevel `json:"accessLevel"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// DefaultAccess is the access level assumed when no record exists.
var DefaultAccess = AccessGranted

// CapabilityStore persists capability records.
type CapabilityStore interface {
	Get(ctx context.Context, userID, resource string) (*Capability, error)
	Set(ctx context.Context, cap *Capability) error
	ListByUser(ctx context.Context, userID string) ([]*Capability, error)
}

// MemoryCapabilityStore is a mutex-guarded in-memory capability table.
type MemoryCapabilityStore struct {
	mu   sync.RWMutex
	caps map[string]*Capability // userID + "\x00" + resource
}

// NewMemoryCapabilityStore creates an empty capability store.
func NewMemoryCapabilityStore() *MemoryCapabilityStore {
	return &MemoryCapabilityStore{caps: make(map[string]*Capability)}
}

func capKey(userID, resource string) string {
	return userID + "\x00" + resource
}

func (s *MemoryCapabilityStore) Get(ctx context.Context, userID, resource string) (*Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.caps[capKey(userID, resource)]
	if !ok {
		return nil, ErrCapabilityNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *MemoryCapabilityStore) Set(ctx context.Context, cap *Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *cap
	copied.UpdatedAt = time.Now()
	s.caps[capKey(cap.UserID, cap.Resource)] = &copied
	return nil
}

func (s *MemoryCapabilityStore) ListByUser(ctx context.Context, userID string) ([]*Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*Capability
	for _, c := range s.caps {
		if c.UserID == userID {
			copied := *c
			result = append(result, &copied)
		}
	}
	return result, nil
}

// PostgresCapabilityStore persists capabilities in PostgreSQL.
type PostgresCapabilityStore struct {
	db *sql.DB
}

// NewPostgresCapabilityStore creates a PostgreSQL-backed capability store.
func NewPostgresCapabilityStore(db *sql.DB) *PostgresCapabilityStore {
	return &PostgresCapabilityStore{db: db}
}

func (s *PostgresCapabilityStore) Get(ctx context.Context, userID, resource string) (*Capability, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, resource, access_level, updated_at
		FROM capabilities
		WHERE user_id = $1 AND resource = $2
	`, userID, resource)

	var c Capability
	if err := row.Scan(&c.UserID, &c.Resource, &c.Access, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCapabilityNotFound
		}
		return nil, fmt.Errorf("get capability: %w", err)
	}
	return &c, nil
}

func (s *PostgresCapabilityStore) Set(ctx context.Context, cap *Capability) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO capabilities (user_id, resource, access_level, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, resource)
		DO UPDATE SET access_level = EXCLUDED.access_level, updated_at = NOW()
	`, cap.UserID, cap.Resource, string(cap.Access))
	if err != nil {
		return fmt.Errorf("set capability: %w", err)
	}
	return nil
}

func (s *PostgresCapabilityStore) ListByUser(ctx context.Context, userID string) ([]*Capability, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, resource, access_level, updated_at
		FROM capabilities
		WHERE user_id = $1
		ORDER BY resource
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	defer rows.Close()

	var result []*Capability
	for rows.Next() {
		var c Capability
		if err := rows.Scan(&c.UserID, &c.Resource, &c.Access, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan capability: %w", err)
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}
