package auth

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"

	"gitea.jw6.us/james/caldavgw/internal/store"
)

// ErrInvalidCredentials is returned for unknown logins and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid user name or password")

// Service verifies DAV Basic credentials against stored app passwords.
type Service struct {
	users     store.UserRepository
	passwords store.AppPasswordRepository
}

func NewService(st *store.Store) *Service {
	return &Service{users: st.Users, passwords: st.AppPasswords}
}

// Authenticate resolves login (username or email) and checks password
// against the user's non-revoked, unexpired app passwords.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*store.User, error) {
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByLogin(ctx, login)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	tokens, err := s.passwords.FindValidByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load app passwords: %w", err)
	}
	for _, token := range tokens {
		if bcrypt.CompareHashAndPassword([]byte(token.TokenHash), []byte(password)) != nil {
			continue
		}
		if err := s.passwords.TouchLastUsed(ctx, token.ID); err != nil {
			log.Printf("[WARN] failed to record app password use for %s: %v", user.Username, err)
		}
		return user, nil
	}
	return nil, ErrInvalidCredentials
}

// HashPassword produces the bcrypt hash stored for a new app password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
