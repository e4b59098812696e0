//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
	"chat-relay/errors"
)

type IUserRepository interface {
	Create(email, passwordHash string) (User, error)
	GetByEmail(email string) (User, error)
	GetByID(id domain.UserID) (User, error)
	Close() error
}

// User is the repository-level representation of a principal. The
// password hash never leaves the repository and auth layers.
type User struct {
	ID           domain.UserID `json:"id"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"password_hash"`
	CreatedAt    time.Time     `json:"created_at"`
}

type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), 16)
	if err != nil {
		return nil, fmt.Errorf("user sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

func userEmailKey(email string) []byte {
	return []byte("user:" + email)
}

func userIDKey(id domain.UserID) []byte {
	return []byte(fmt.Sprintf("userid:%020d", id))
}

// Create persists a new user. The email key is the uniqueness guard; the
// id key is a secondary index for token-based lookups.
func (u *UserRepository) Create(email, passwordHash string) (User, error) {
	n, err := u.seq.Next()
	if err != nil {
		return User{}, fmt.Errorf("next user id: %w", err)
	}

	user := User{
		ID:           domain.UserID(n) + 1,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	value, err := json.Marshal(user)
	if err != nil {
		return User{}, err
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userEmailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(userEmailKey(email), value); err != nil {
			return err
		}
		return txn.Set(userIDKey(user.ID), []byte(email))
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (u *UserRepository) GetByEmail(email string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userEmailKey(email))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &user)
		})
	})
	if err == badger.ErrKeyNotFound {
		return User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (u *UserRepository) GetByID(id domain.UserID) (User, error) {
	var email string
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userIDKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			email = string(value)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u.GetByEmail(email)
}

func (u *UserRepository) Close() error {
	return u.seq.Release()
}
