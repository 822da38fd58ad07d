package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/teamup-app/chat-service/internal/types"
)

// Inbound event names. Each one maps to a handler in the client's
// dispatch table.
const (
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
)

// ClientMessage is the envelope for every inbound frame: an optional
// client-chosen id echoed back on the response, the event name, and the
// event payload.
type ClientMessage struct {
	Id    int             `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`

	// decoded payloads, populated by the session's event handlers
	join   *JoinRoom
	send   *SendMessage
	typing *Typing
	client *Client
}

type JoinRoom struct {
	RoomId string `json:"room_id"`
}

type LeaveRoom struct {
	RoomId string `json:"room_id"`
}

type SendMessage struct {
	RoomId  string `json:"room_id"`
	Content string `json:"content"`
}

type Typing struct {
	RoomId   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

// ServerMessage is the envelope for every outbound frame. Exactly one of
// Response, NewMessage or UserTyping is set.
type ServerMessage struct {
	Id         int           `json:"id,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	Response   *Response     `json:"response,omitempty"`
	NewMessage *types.Message `json:"newMessage,omitempty"`
	UserTyping *UserTyping   `json:"userTyping,omitempty"`
	SkipClient *Client       `json:"-"`
}

type Response struct {
	Success      bool           `json:"success"`
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Message      *types.Message `json:"message,omitempty"`
}

type UserTyping struct {
	RoomId   string `json:"room_id"`
	UserId   int64  `json:"user_id"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

func NoErrOK(id int, msg *types.Message) *ServerMessage {
	return &ServerMessage{
		Id:        id,
		Timestamp: Now(),
		Response: &Response{
			Success:      true,
			ResponseCode: http.StatusOK,
			Message:      msg,
		},
	}
}

func errResponse(id, code int, text string) *ServerMessage {
	return &ServerMessage{
		Id:        id,
		Timestamp: Now(),
		Response: &Response{
			ResponseCode: code,
			Error:        text,
		},
	}
}

func ErrNotAMember(id int) *ServerMessage {
	return errResponse(id, http.StatusForbidden, "not a member of this room")
}

func ErrNotInRoom(id int) *ServerMessage {
	return errResponse(id, http.StatusConflict, "not in room")
}

func ErrInvalidContent(id int) *ServerMessage {
	return errResponse(id, http.StatusBadRequest, "message content is empty or too long")
}

func ErrPersistence(id int) *ServerMessage {
	return errResponse(id, http.StatusInternalServerError, "failed to store message")
}

func ErrRoomNotFound(id int) *ServerMessage {
	return errResponse(id, http.StatusNotFound, "room not found")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errResponse(id, http.StatusServiceUnavailable, "service unavailable")
}

func ErrInvalidMessage(id int) *ServerMessage {
	return errResponse(id, http.StatusBadRequest, "invalid message format")
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
