package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/errors"
)

func TestHashPassword_Roundtrip(t *testing.T) {
	req := require.New(t)

	encoded, err := HashPassword("Sup3r$ecretPass")
	req.NoError(err)
	req.Contains(encoded, "$argon2id$")

	ok, err := ComparePassword("Sup3r$ecretPass", encoded)
	req.NoError(err)
	req.True(ok)

	ok, err = ComparePassword("wrong password", encoded)
	req.NoError(err)
	req.False(ok)
}

func TestHashPassword_Salts_Are_Unique(t *testing.T) {
	req := require.New(t)

	first, err := HashPassword("Sup3r$ecretPass")
	req.NoError(err)
	second, err := HashPassword("Sup3r$ecretPass")
	req.NoError(err)

	req.NotEqual(first, second)
}

func TestMustMatch_Collapses_To_Invalid_Credentials(t *testing.T) {
	req := require.New(t)

	encoded, err := HashPassword("Sup3r$ecretPass")
	req.NoError(err)

	req.NoError(MustMatch("Sup3r$ecretPass", encoded))
	req.ErrorIs(MustMatch("wrong", encoded), errors.ErrInvalidCredentials)
	req.ErrorIs(MustMatch("anything", "not-a-hash"), errors.ErrInvalidCredentials)
}

func TestTokenIssuer_Roundtrip(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Generate(domain.UserID(42))
	req.NoError(err)

	userID, err := issuer.Validate(token)
	req.NoError(err)
	req.Equal(domain.UserID(42), userID)
}

func TestTokenIssuer_Rejects_Expired_Token(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test-secret", -time.Minute)

	token, err := issuer.Generate(domain.UserID(42))
	req.NoError(err)

	_, err = issuer.Validate(token)
	req.Error(err)
}

func TestTokenIssuer_Rejects_Foreign_Secret(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test-secret", time.Hour)
	forged := NewTokenIssuer("other-secret", time.Hour)

	token, err := forged.Generate(domain.UserID(42))
	req.NoError(err)

	_, err = issuer.Validate(token)
	req.Error(err)
}

func TestValidateRegister(t *testing.T) {
	req := require.New(t)

	// A well-formed registration passes
	req.NoError(ValidateRegister(RegisterRequest{
		Email:    "alice@example.com",
		Password: "Sup3r$ecretPass",
	}))

	// Malformed email
	req.Error(ValidateRegister(RegisterRequest{
		Email:    "not-an-email",
		Password: "Sup3r$ecretPass",
	}))

	// Too short
	req.Error(ValidateRegister(RegisterRequest{
		Email:    "alice@example.com",
		Password: "Sh0rt$",
	}))

	// Long enough but no complexity
	req.ErrorIs(ValidateRegister(RegisterRequest{
		Email:    "alice@example.com",
		Password: "alllowercasepassword",
	}), errors.ErrInvalidPassword)
}
