package database

import "time"

type User struct {
	Id        int64
	Username  string
	AvatarUrl string
	IsAdmin   bool
	CreatedAt time.Time
}

type Room struct {
	Id        string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	Id        int64
	RoomId    string
	SenderId  int64
	Content   string
	IsDeleted bool
	CreatedAt time.Time

	// sender columns joined in by the history queries
	SenderUsername  string
	SenderAvatarUrl string
}

type CreateMessageParams struct {
	RoomId   string
	SenderId int64
	Content  string
}
