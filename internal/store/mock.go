package store

import (
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepository) UpsertUser(params UpsertUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockRepository) GetUser(userId string) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockRepository) GetUsers(userIds []string) ([]User, error) {
	args := m.Called(userIds)
	return args.Get(0).([]User), args.Error(1)
}

func (m *MockRepository) CreateRoom(roomId string, participants []string) (Room, error) {
	args := m.Called(roomId, participants)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRepository) FindOrCreateRoomByParticipants(roomId string, participants []string) (Room, bool, error) {
	args := m.Called(roomId, participants)
	return args.Get(0).(Room), args.Bool(1), args.Error(2)
}

func (m *MockRepository) GetRoom(roomId string) (Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRepository) ListRoomsForUser(userId string) ([]Room, error) {
	args := m.Called(userId)
	return args.Get(0).([]Room), args.Error(1)
}

func (m *MockRepository) CreateMessage(msg Message) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockRepository) GetMessages(roomId string, page, pageSize int) ([]Message, error) {
	args := m.Called(roomId, page, pageSize)
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockRepository) ListRoomMessages(roomId string) ([]Message, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockRepository) MarkMessages(messageIds []string, received, read bool) (MarkResult, error) {
	args := m.Called(messageIds, received, read)
	return args.Get(0).(MarkResult), args.Error(1)
}

func (m *MockRepository) LatestMessages(roomIds []string) (map[string]Message, error) {
	args := m.Called(roomIds)
	return args.Get(0).(map[string]Message), args.Error(1)
}

func (m *MockRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
