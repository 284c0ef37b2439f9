package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryAccountStore keeps accounts in process memory. A single lock makes
// the uniqueness check and insert of Create atomic.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*Account
	now      func() time.Time
}

var _ AccountStore = (*MemoryAccountStore)(nil)

// NewMemoryAccountStore returns an empty store
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts: make(map[uuid.UUID]*Account),
		now:      time.Now,
	}
}

func (s *MemoryAccountStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	email = NormalizeEmail(email)
	return s.findFirst(ctx, FieldEmail, email, func(a *Account) bool {
		return a.Email == email
	})
}

func (s *MemoryAccountStore) FindByUsername(ctx context.Context, username string) (*Account, error) {
	username = NormalizeUsername(username)
	return s.findFirst(ctx, FieldUsername, username, func(a *Account) bool {
		return a.Username == username
	})
}

func (s *MemoryAccountStore) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[id]; ok {
		return a.Clone(), nil
	}
	return nil, accountNotFound("id", id.String())
}

func (s *MemoryAccountStore) FindByVerificationToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	return s.findFirst(ctx, "verification_token", token, func(a *Account) bool {
		return a.VerificationToken != nil &&
			*a.VerificationToken == token &&
			!IsExpired(a.VerificationTokenExpiresAt, now)
	})
}

func (s *MemoryAccountStore) FindByResetToken(ctx context.Context, token string) (*Account, error) {
	return s.findFirst(ctx, "reset_password_token", token, func(a *Account) bool {
		return a.ResetPasswordToken != nil && *a.ResetPasswordToken == token
	})
}

func (s *MemoryAccountStore) Create(ctx context.Context, account *Account) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record := account.Clone()
	record.Email = NormalizeEmail(record.Email)
	record.Username = NormalizeUsername(record.Username)

	s.mu.Lock()
	defer s.mu.Unlock()

	// email collisions are reported before username collisions
	for _, existing := range s.accounts {
		if existing.Email == record.Email {
			return nil, ConflictOn(FieldEmail)
		}
	}
	for _, existing := range s.accounts {
		if existing.Username == record.Username {
			return nil, ConflictOn(FieldUsername)
		}
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	s.accounts[record.ID] = record

	return record.Clone(), nil
}

func (s *MemoryAccountStore) Update(ctx context.Context, account *Account) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return nil, accountNotFound("id", account.ID.String())
	}

	record := account.Clone()
	record.UpdatedAt = s.now()
	s.accounts[record.ID] = record

	return record.Clone(), nil
}

func (s *MemoryAccountStore) findFirst(ctx context.Context, key string, value any, match func(*Account) bool) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if match(a) {
			return a.Clone(), nil
		}
	}
	return nil, accountNotFound(key, value)
}
