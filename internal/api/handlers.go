package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/teamup-app/chat-service/internal/database"
	"github.com/teamup-app/chat-service/internal/server"
	"github.com/teamup-app/chat-service/internal/types"
	"github.com/teris-io/shortid"
)

type MessagesPage struct {
	Messages []types.Message `json:"messages"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

func (s *ChatAPI) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// parsePagination reads page and page_size, applying the configured
// default and clamping to the configured maximum regardless of what the
// client asked for.
func (s *ChatAPI) parsePagination(r *http.Request) (page, pageSize int, err error) {
	page = 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return 0, 0, errors.New("invalid page")
		}
	}

	pageSize = s.cfg.DefaultPageSize
	if sizeStr := r.URL.Query().Get("page_size"); sizeStr != "" {
		pageSize, err = strconv.Atoi(sizeStr)
		if err != nil || pageSize < 1 {
			return 0, 0, errors.New("invalid page_size")
		}
	}
	pageSize = min(pageSize, s.cfg.MaxPageSize)

	return page, pageSize, nil
}

func messageView(msg database.Message) types.Message {
	return types.Message{
		Id:        msg.Id,
		RoomId:    msg.RoomId,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		Sender: types.User{
			Id:        msg.SenderId,
			Username:  msg.SenderUsername,
			AvatarUrl: msg.SenderAvatarUrl,
		},
	}
}

func (s *ChatAPI) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	roomId := r.URL.Query().Get("room_id")
	if uuid.Validate(roomId) != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.db.GetRoomById(roomId); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	isMember, err := s.db.IsRoomMember(userId, roomId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if !isMember {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	page, pageSize, err := s.parsePagination(r)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, total, err := s.db.GetMessages(roomId, (page-1)*pageSize, pageSize)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, MessagesPage{
		Messages: lo.Map(messages, func(msg database.Message, _ int) types.Message {
			return messageView(msg)
		}),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// deleteMessage soft-deletes the caller's own message. A message that does
// not exist and one that is already deleted are indistinguishable to the
// caller: both are a 404.
func (s *ChatAPI) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.softDelete(w, r, func(msg database.Message) bool {
		return msg.SenderId == userId
	})
}

func (s *ChatAPI) softDelete(w http.ResponseWriter, r *http.Request, allowed func(database.Message) bool) {
	messageId, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.GetMessageById(messageId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if msg.IsDeleted {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !allowed(msg) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.MarkMessageDeleted(messageId); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

// adminGetMessages lists any room's history, soft-deleted rows included,
// bypassing the membership check.
func (s *ChatAPI) adminGetMessages(w http.ResponseWriter, r *http.Request) {
	roomId := r.URL.Query().Get("room_id")
	if uuid.Validate(roomId) != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	page, pageSize, err := s.parsePagination(r)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, total, err := s.db.GetAllMessages(roomId, (page-1)*pageSize, pageSize)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, MessagesPage{
		Messages: lo.Map(messages, func(msg database.Message, _ int) types.Message {
			return messageView(msg)
		}),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// adminDeleteMessage soft-deletes any message regardless of sender.
func (s *ChatAPI) adminDeleteMessage(w http.ResponseWriter, r *http.Request) {
	s.softDelete(w, r, func(database.Message) bool {
		return true
	})
}

// serveWs is the gateway handshake: the bearer credential was already
// verified by the auth middleware, so a failure past this point is either
// an unknown user or a transport problem.
func (s *ChatAPI) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserById(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewUnauthorizedError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sessionId, err := shortid.Generate()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(sessionId, types.User{
		Id:        user.Id,
		Username:  user.Username,
		AvatarUrl: user.AvatarUrl,
		IsAdmin:   user.IsAdmin,
	}, conn, s.cs, s.log, s.stats)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
