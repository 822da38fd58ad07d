package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockChatRepository) GetUserById(userId int64) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockChatRepository) GetRoomById(roomId string) (Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockChatRepository) IsRoomMember(userId int64, roomId string) (bool, error) {
	args := m.Called(userId, roomId)
	return args.Bool(0), args.Error(1)
}

func (m *MockChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockChatRepository) GetMessages(roomId string, offset, limit int) ([]Message, int, error) {
	args := m.Called(roomId, offset, limit)
	return args.Get(0).([]Message), args.Int(1), args.Error(2)
}

func (m *MockChatRepository) GetAllMessages(roomId string, offset, limit int) ([]Message, int, error) {
	args := m.Called(roomId, offset, limit)
	return args.Get(0).([]Message), args.Int(1), args.Error(2)
}

func (m *MockChatRepository) GetMessageById(messageId int64) (Message, error) {
	args := m.Called(messageId)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockChatRepository) MarkMessageDeleted(messageId int64) error {
	args := m.Called(messageId)
	return args.Error(0)
}

func (m *MockChatRepository) PurgeMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChatRepository) PurgeInactiveRoomMessages(ctx context.Context, ageCutoff time.Time) (int64, error) {
	args := m.Called(ctx, ageCutoff)
	return args.Get(0).(int64), args.Error(1)
}
