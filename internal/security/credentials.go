package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sync"
)

// User is a login credential record.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         string
	PasswordHash string
}

// CredentialStore resolves login credentials.
type CredentialStore interface {
	ByEmail(email string) (*User, bool)
}

// MemoryCredentialStore holds users in memory.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	users map[string]*User // by email
}

// NewMemoryCredentialStore creates an empty credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{users: make(map[string]*User)}
}

// SeedDemoUsers installs the demo accounts used in open/demo deployments.
func (s *MemoryCredentialStore) SeedDemoUsers() {
	s.Add(&User{
		ID: "USR001", Email: "demo@fingate.dev", Name: "Demo User",
		Role: "user", PasswordHash: HashPassword("Demo@123"),
	})
	s.Add(&User{
		ID: "ADMIN001", Email: "admin@fingate.dev", Name: "Admin User",
		Role: "admin", PasswordHash: HashPassword("Admin@123"),
	})
}

// Add inserts or replaces a user.
func (s *MemoryCredentialStore) Add(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Email] = u
}

func (s *MemoryCredentialStore) ByEmail(email string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	return u, ok
}

// HashPassword hashes a password for storage and comparison.
func HashPassword(password string) string {
	h := sha256.Sum256([]byte(password))
	return hex.EncodeToString(h[:])
}

// CheckPassword compares a candidate password against a stored hash in
// constant time.
func CheckPassword(password, hash string) bool {
	candidate := HashPassword(password)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(hash)) == 1
}
