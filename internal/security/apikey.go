package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mbd888/fingate/internal/idgen"
)

// API key errors.
var (
	ErrInvalidAPIKey = errors.New("invalid or revoked API key")
	ErrKeyNotFound   = errors.New("API key not found")
)

// APIKey is a long-lived machine credential. Only the SHA-256 hash of
// the raw key is stored; the raw key is shown once at creation.
type APIKey struct {
	ID        string     `json:"id"`
	Hash      string     `json:"-"`
	UserID    string     `json:"userId"`
	Role      string     `json:"role"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	LastUsed  time.Time  `json:"lastUsed,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Revoked   bool       `json:"revoked"`
}

// APIKeyStore persists API keys.
type APIKeyStore interface {
	Create(key *APIKey) error
	GetByHash(hash string) (*APIKey, error)
	GetByUser(userID string) ([]*APIKey, error)
	Update(key *APIKey) error
}

// APIKeyManager issues and validates API keys.
type APIKeyManager struct {
	store APIKeyStore
}

// NewAPIKeyManager creates a manager over the given store.
func NewAPIKeyManager(store APIKeyStore) *APIKeyManager {
	return &APIKeyManager{store: store}
}

// Generate creates a new API key for a user. Returns the raw key (shown
// once) and the stored metadata.
func (m *APIKeyManager) Generate(userID, role, name string) (rawKey string, key *APIKey, err error) {
	rawKey = "fk_" + idgen.Hex(32)

	key = &APIKey{
		ID:        idgen.WithPrefix("ak_"),
		Hash:      hashKey(rawKey),
		UserID:    userID,
		Role:      role,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := m.store.Create(key); err != nil {
		return "", nil, err
	}
	return rawKey, key, nil
}

// Validate checks a raw API key and returns its metadata.
func (m *APIKeyManager) Validate(rawKey string) (*APIKey, error) {
	rawKey = strings.TrimSpace(rawKey)
	if !strings.HasPrefix(rawKey, "fk_") {
		return nil, ErrInvalidAPIKey
	}

	key, err := m.store.GetByHash(hashKey(rawKey))
	if err != nil {
		return nil, ErrInvalidAPIKey
	}
	if key.Revoked {
		return nil, ErrInvalidAPIKey
	}
	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return nil, ErrInvalidAPIKey
	}

	key.LastUsed = time.Now()
	_ = m.store.Update(key)
	return key, nil
}

// Revoke marks a key revoked. The owning user must match.
func (m *APIKeyManager) Revoke(keyID, userID string) error {
	keys, err := m.store.GetByUser(userID)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k.ID == keyID {
			k.Revoked = true
			return m.store.Update(k)
		}
	}
	return ErrKeyNotFound
}

func hashKey(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// MemoryAPIKeyStore is an in-memory APIKeyStore.
type MemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKey // by ID
}

// NewMemoryAPIKeyStore creates an empty in-memory key store.
func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{keys: make(map[string]*APIKey)}
}

func (s *MemoryAPIKeyStore) Create(key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = key
	return nil
}

func (s *MemoryAPIKeyStore) GetByHash(hash string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if k.Hash == hash {
			return k, nil
		}
	}
	return nil, ErrKeyNotFound
}

func (s *MemoryAPIKeyStore) GetByUser(userID string) ([]*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*APIKey
	for _, k := range s.keys {
		if k.UserID == userID {
			result = append(result, k)
		}
	}
	return result, nil
}

func (s *MemoryAPIKeyStore) Update(key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = key
	return nil
}
