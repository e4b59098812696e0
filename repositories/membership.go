//go:generate go run go.uber.org/mock/mockgen -source=membership.go -destination=../mocks/mock_membership_repository.go -package=mocks
package repositories

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
)

type IMembershipRepository interface {
	IsMember(room domain.RoomID, user domain.UserID) (bool, error)
	// AddMember is idempotent: adding an existing membership is a no-op.
	AddMember(room domain.RoomID, user domain.UserID) error
	RemoveMember(room domain.RoomID, user domain.UserID) error
}

type MembershipRepository struct {
	db *badger.DB
}

func NewMembershipRepository(db *badger.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func membershipKey(room domain.RoomID, user domain.UserID) []byte {
	return []byte(fmt.Sprintf("member:%d:%d", room, user))
}

func (m *MembershipRepository) IsMember(room domain.RoomID, user domain.UserID) (bool, error) {
	err := m.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(membershipKey(room, user))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *MembershipRepository) AddMember(room domain.RoomID, user domain.UserID) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(membershipKey(room, user), []byte{1})
	})
}

func (m *MembershipRepository) RemoveMember(room domain.RoomID, user domain.UserID) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(membershipKey(room, user))
	})
}
