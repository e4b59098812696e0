package services

import (
	"fmt"

	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
)

type IAuthService interface {
	Register(email, password string) (Token, error)
	Login(email, password string) (Token, error)
	Authenticate(token string) (domain.UserID, error)
	Profile(id domain.UserID) (repositories.User, error)
}

type Token string

type AuthService struct {
	users  repositories.IUserRepository
	issuer auth.TokenIssuer
}

func NewAuthService(users repositories.IUserRepository, issuer auth.TokenIssuer) *AuthService {
	return &AuthService{users: users, issuer: issuer}
}

// Register validates credentials, hashes the password and persists the
// user, returning an initial session token.
func (s *AuthService) Register(email, password string) (Token, error) {
	req := auth.RegisterRequest{Email: email, Password: password}

	// Business rules first, before any expensive cryptographic work.
	if err := auth.ValidateRegister(req); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashing happens here so the repository never sees plain passwords.
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.Create(email, hashed)
	if err != nil {
		return "", err // propagates ErrUserAlreadyExists when the email is taken
	}

	token, err := s.issuer.Generate(user.ID)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		// An unknown email and a bad password are indistinguishable to
		// the caller.
		return "", errors.ErrInvalidCredentials
	}

	if err := auth.MustMatch(password, user.PasswordHash); err != nil {
		return "", err
	}

	token, err := s.issuer.Generate(user.ID)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

// Authenticate resolves a bearer token to an existing principal.
func (s *AuthService) Authenticate(token string) (domain.UserID, error) {
	id, err := s.issuer.Validate(token)
	if err != nil {
		return 0, errors.ErrInvalidCredentials
	}
	if _, err := s.users.GetByID(id); err != nil {
		return 0, errors.ErrInvalidCredentials
	}
	return id, nil
}

func (s *AuthService) Profile(id domain.UserID) (repositories.User, error) {
	return s.users.GetByID(id)
}
