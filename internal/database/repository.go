package database

import (
	"context"
	"time"
)

// ChatRepository is the storage surface the chat core depends on. The
// users, rooms and room_members tables are owned by the group-management
// subsystem and are only ever read here; messages is the only table the
// core writes.
type ChatRepository interface {
	Ping() error

	GetUserById(userId int64) (User, error)
	GetRoomById(roomId string) (Room, error)
	IsRoomMember(userId int64, roomId string) (bool, error)

	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessages(roomId string, offset, limit int) ([]Message, int, error)
	GetAllMessages(roomId string, offset, limit int) ([]Message, int, error)
	GetMessageById(messageId int64) (Message, error)
	MarkMessageDeleted(messageId int64) error

	PurgeMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeInactiveRoomMessages(ctx context.Context, ageCutoff time.Time) (int64, error)
}
