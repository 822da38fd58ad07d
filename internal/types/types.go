package types

import (
	"time"
)

type User struct {
	Id        int64     `json:"id"`
	Username  string    `json:"username"`
	AvatarUrl string    `json:"avatar_url,omitempty"`
	IsAdmin   bool      `json:"-"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Room struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	Id        int64     `json:"id"`
	RoomId    string    `json:"room_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Sender    User      `json:"sender"`
}
