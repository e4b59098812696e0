package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
)

type fakeRoomRepository struct {
	rooms  map[domain.RoomID]repositories.Room
	nextID domain.RoomID
}

func newFakeRoomRepository() *fakeRoomRepository {
	return &fakeRoomRepository{rooms: make(map[domain.RoomID]repositories.Room)}
}

func (f *fakeRoomRepository) Create(name string) (repositories.Room, error) {
	for _, room := range f.rooms {
		if room.Name == name {
			return repositories.Room{}, errors.ErrRoomAlreadyExists
		}
	}
	f.nextID++
	room := repositories.Room{ID: f.nextID, Name: name, CreatedAt: time.Now()}
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeRoomRepository) Get(id domain.RoomID) (repositories.Room, error) {
	room, ok := f.rooms[id]
	if !ok {
		return repositories.Room{}, errors.ErrRoomNotFound
	}
	return room, nil
}

func (f *fakeRoomRepository) List() ([]repositories.Room, error) {
	var out []repositories.Room
	for _, room := range f.rooms {
		out = append(out, room)
	}
	return out, nil
}

func (f *fakeRoomRepository) Close() error { return nil }

type fakeMembershipRepository struct {
	members map[[2]int64]bool
}

func newFakeMembershipRepository() *fakeMembershipRepository {
	return &fakeMembershipRepository{members: make(map[[2]int64]bool)}
}

func (f *fakeMembershipRepository) IsMember(room domain.RoomID, user domain.UserID) (bool, error) {
	return f.members[[2]int64{int64(room), int64(user)}], nil
}

func (f *fakeMembershipRepository) AddMember(room domain.RoomID, user domain.UserID) error {
	f.members[[2]int64{int64(room), int64(user)}] = true
	return nil
}

func (f *fakeMembershipRepository) RemoveMember(room domain.RoomID, user domain.UserID) error {
	delete(f.members, [2]int64{int64(room), int64(user)})
	return nil
}

func TestRoomService_Create_Makes_Creator_A_Member(t *testing.T) {
	req := require.New(t)
	members := newFakeMembershipRepository()
	service := NewRoomService(newFakeRoomRepository(), members, false)

	room, err := service.Create("general", domain.UserID(1))
	req.NoError(err)

	isMember, err := members.IsMember(room.ID, domain.UserID(1))
	req.NoError(err)
	req.True(isMember)
}

func TestRoomService_EnsureMember_Unknown_Room(t *testing.T) {
	req := require.New(t)
	service := NewRoomService(newFakeRoomRepository(), newFakeMembershipRepository(), true)

	err := service.EnsureMember(domain.RoomID(404), domain.UserID(1))
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestRoomService_EnsureMember_AutoJoin_On(t *testing.T) {
	req := require.New(t)
	members := newFakeMembershipRepository()
	service := NewRoomService(newFakeRoomRepository(), members, true)
	room, err := service.Create("general", domain.UserID(1))
	req.NoError(err)

	// A stranger attaching gets joined on the fly
	req.NoError(service.EnsureMember(room.ID, domain.UserID(2)))

	isMember, err := members.IsMember(room.ID, domain.UserID(2))
	req.NoError(err)
	req.True(isMember)
}

func TestRoomService_EnsureMember_AutoJoin_Off(t *testing.T) {
	req := require.New(t)
	service := NewRoomService(newFakeRoomRepository(), newFakeMembershipRepository(), false)
	room, err := service.Create("general", domain.UserID(1))
	req.NoError(err)

	// The creator may attach, a stranger may not
	req.NoError(service.EnsureMember(room.ID, domain.UserID(1)))
	req.ErrorIs(service.EnsureMember(room.ID, domain.UserID(2)), errors.ErrNotAMember)
}
