package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
)

type IRoomService interface {
	Create(name string, creator domain.UserID) (repositories.Room, error)
	List() ([]repositories.Room, error)
	Get(id domain.RoomID) (repositories.Room, error)
	// EnsureMember verifies that a user may attach to a room. When the
	// auto-join policy is on, a missing membership is created instead of
	// rejected, mirroring an "open rooms" deployment.
	EnsureMember(room domain.RoomID, user domain.UserID) error
}

type RoomService struct {
	rooms            repositories.IRoomRepository
	members          repositories.IMembershipRepository
	autoJoinOnAttach bool
}

func NewRoomService(rooms repositories.IRoomRepository,
	members repositories.IMembershipRepository, autoJoinOnAttach bool) *RoomService {
	return &RoomService{rooms: rooms, members: members, autoJoinOnAttach: autoJoinOnAttach}
}

// Create persists a room and makes its creator the first member.
func (s *RoomService) Create(name string, creator domain.UserID) (repositories.Room, error) {
	room, err := s.rooms.Create(name)
	if err != nil {
		return repositories.Room{}, err
	}
	if err := s.members.AddMember(room.ID, creator); err != nil {
		return repositories.Room{}, err
	}
	return room, nil
}

func (s *RoomService) List() ([]repositories.Room, error) {
	return s.rooms.List()
}

func (s *RoomService) Get(id domain.RoomID) (repositories.Room, error) {
	return s.rooms.Get(id)
}

func (s *RoomService) EnsureMember(room domain.RoomID, user domain.UserID) error {
	if _, err := s.rooms.Get(room); err != nil {
		return err
	}

	member, err := s.members.IsMember(room, user)
	if err != nil {
		return err
	}
	if member {
		return nil
	}
	if !s.autoJoinOnAttach {
		return errors.ErrNotAMember
	}
	return s.members.AddMember(room, user)
}
