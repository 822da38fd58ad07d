package server

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/teamup-app/chat-service/internal/stats"
	"github.com/teamup-app/chat-service/internal/types"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

// eventHandlers is the explicit dispatch table for inbound events. Frames
// carrying an unknown event name are answered with a bad-request response.
var eventHandlers = map[string]func(*Client, *ClientMessage){
	EventJoinRoom:    (*Client).handleJoinRoom,
	EventLeaveRoom:   (*Client).handleLeaveRoom,
	EventSendMessage: (*Client).handleSendMessage,
	EventTyping:      (*Client).handleTyping,
}

// Client is the live session for one websocket connection. Its fields are
// owned by the session's own goroutines; rooms is the only map touched
// from room goroutines and is guarded by roomsLock.
type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	stats      stats.StatsProvider
	user       types.User
	send       chan *ServerMessage
	rooms      map[string]*Room
	roomsLock  sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(id string, user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger, sp stats.StatsProvider) *Client {
	return &Client{
		id:         id,
		conn:       conn,
		chatServer: cs,
		log:        l,
		stats:      sp,
		user:       user,
		send:       make(chan *ServerMessage, cs.cfg.OutboundBufferLimit),
		rooms:      make(map[string]*Room),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.writeFrame(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// Read drains inbound frames until the connection dies. The deferred
// cleanup is the session's single mandatory teardown path: it runs on
// clean closes, protocol errors and abnormal transport failures alike.
func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(int64(4*c.chatServer.cfg.MaxMessageLength + 1024))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(0))
			continue
		}

		msg.client = c

		handler, ok := eventHandlers[msg.Event]
		if !ok {
			c.log.Printf("unknown event %q from session %s", msg.Event, c.id)
			c.queueMessage(ErrInvalidMessage(msg.Id))
			continue
		}

		handler(c, &msg)
	}
}

func (c *Client) handleJoinRoom(msg *ClientMessage) {
	var join JoinRoom
	if err := json.Unmarshal(msg.Data, &join); err != nil || uuid.Validate(join.RoomId) != nil {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}
	msg.join = &join

	select {
	case c.chatServer.joinChan <- msg:
	default:
		c.log.Printf("joinChan full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

// handleLeaveRoom is idempotent: leaving a room this session never joined
// is acknowledged as a success with no side effect.
func (c *Client) handleLeaveRoom(msg *ClientMessage) {
	var leave LeaveRoom
	if err := json.Unmarshal(msg.Data, &leave); err != nil {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	r := c.getRoom(leave.RoomId)
	if r == nil {
		c.queueMessage(NoErrOK(msg.Id, nil))
		return
	}

	select {
	case r.leaveChan <- msg:
	default:
		c.log.Printf("leaveChan full for room %q", r.id)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) handleSendMessage(msg *ClientMessage) {
	var send SendMessage
	if err := json.Unmarshal(msg.Data, &send); err != nil {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	send.Content = strings.TrimSpace(send.Content)
	if send.Content == "" || utf8.RuneCountInString(send.Content) > c.chatServer.cfg.MaxMessageLength {
		c.queueMessage(ErrInvalidContent(msg.Id))
		return
	}
	msg.send = &send

	r := c.getRoom(send.RoomId)
	if r == nil {
		c.queueMessage(ErrNotInRoom(msg.Id))
		return
	}

	select {
	case r.clientMsgChan <- msg:
	default:
		c.log.Printf("clientMsgChan full for room %q", r.id)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

// handleTyping is fire and forget: a dropped typing signal is never
// reported back and never fails the connection.
func (c *Client) handleTyping(msg *ClientMessage) {
	var typing Typing
	if err := json.Unmarshal(msg.Data, &typing); err != nil {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	msg.typing = &typing

	r := c.getRoom(typing.RoomId)
	if r == nil {
		c.queueMessage(ErrNotInRoom(msg.Id))
		return
	}

	select {
	case r.clientMsgChan <- msg:
	default:
	}
}

// queueMessage enqueues a must-deliver frame. A session whose outbound
// backlog is full is forcibly disconnected so it cannot stall the room.
func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	case <-c.stop:
		return false
	default:
		c.log.Printf("outbound buffer full for session %s, disconnecting", c.id)
		c.stats.Incr(stats.DroppedSessions)
		c.stopClient()
		return false
	}

	return true
}

// tryQueueMessage enqueues a best-effort frame, dropping it if the buffer
// is full.
func (c *Client) tryQueueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) writeFrame(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.chatServer.DeregisterClient(c)
	c.leaveAllRooms()
	c.stopClient()
}

func (c *Client) leaveAllRooms() {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	for _, room := range c.rooms {
		// an empty event marks this as internal cleanup, not a client request
		room.leaveChan <- &ClientMessage{client: c}
	}
}

func (c *Client) delRoom(id string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	delete(c.rooms, id)
}

func (c *Client) addRoom(r *Room) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	c.rooms[r.id] = r
}

func (c *Client) getRoom(id string) *Room {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	if room, ok := c.rooms[id]; ok {
		return room
	}

	return nil
}
