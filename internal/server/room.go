package server

import (
	"log"
	"time"

	"github.com/teamup-app/chat-service/internal/database"
	"github.com/teamup-app/chat-service/internal/stats"
	"github.com/teamup-app/chat-service/internal/types"
)

const idleRoomTimeout = 30 * time.Second

type exitReq struct {
	done chan string
}

// Room is the live fan-out set for one persisted group. A single goroutine
// drains its channels, so join, leave, send and typing are serialized per
// room: that serialization is the broadcast-ordering guarantee. A room
// object only exists while sessions are (or were recently) connected; the
// group itself lives in the database.
type Room struct {
	id            string
	name          string
	cs            *ChatServer
	joinChan      chan *ClientMessage
	leaveChan     chan *ClientMessage
	clientMsgChan chan *ClientMessage
	clients       map[*Client]struct{}
	log           *log.Logger
	// killTimer unloads the room once no session remains
	killTimer *time.Timer
	exit      chan exitReq
	done      chan struct{}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.id)
	r.killTimer = time.NewTimer(idleRoomTimeout)

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leaveMsg := <-r.leaveChan:
			r.handleLeave(leaveMsg)
		case msg := <-r.clientMsgChan:
			if msg.send != nil {
				r.saveAndBroadcast(msg)
			} else if msg.typing != nil {
				r.broadcastTyping(msg)
			}
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

// handleJoin re-checks group membership on every attempt. A rejected join
// answers only the requesting session and leaves the room untouched.
func (r *Room) handleJoin(join *ClientMessage) {
	c := join.client

	isMember, err := r.cs.db.IsRoomMember(c.user.Id, r.id)
	if err != nil {
		r.log.Println("IsRoomMember:", err)
		c.queueMessage(ErrPersistence(join.Id))
		return
	}

	if !isMember {
		r.log.Printf("user %q denied join to room %q", c.user.Username, r.id)
		c.queueMessage(ErrNotAMember(join.Id))
		return
	}

	r.killTimer.Stop()
	r.addClient(c)

	c.queueMessage(NoErrOK(join.Id, nil))
}

func (r *Room) handleLeave(leaveMsg *ClientMessage) {
	client := leaveMsg.client
	r.removeClient(client)

	if leaveMsg.Event == EventLeaveRoom {
		client.queueMessage(NoErrOK(leaveMsg.Id, nil))
	}
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q idle, unloading", r.id)
	select {
	case r.cs.unloadRoomChan <- r.id:
	default:
		// registry busy, try again on the next timeout
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.id)

	for c := range r.clients {
		c.delRoom(r.id)
	}

	if e.done != nil {
		e.done <- r.id
	}
	close(r.done)
}

func (r *Room) addClient(c *Client) {
	r.clients[c] = struct{}{}
	c.addRoom(r)
}

func (r *Room) removeClient(c *Client) {
	if _, ok := r.clients[c]; !ok {
		return
	}

	r.log.Printf("removing session %s from room %q", c.id, r.id)
	delete(r.clients, c)
	c.delRoom(r.id)

	if len(r.clients) == 0 {
		r.log.Printf("no sessions in %q, starting kill timer", r.id)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

// saveAndBroadcast is the two-phase send path: the message is persisted
// first, and a failed persist answers only the sender with no broadcast
// to anyone.
func (r *Room) saveAndBroadcast(msg *ClientMessage) {
	saved, err := r.cs.db.CreateMessage(database.CreateMessageParams{
		RoomId:   r.id,
		SenderId: msg.client.user.Id,
		Content:  msg.send.Content,
	})
	if err != nil {
		r.log.Println("error saving message:", err)
		msg.client.queueMessage(ErrPersistence(msg.Id))
		return
	}

	outMsg := &types.Message{
		Id:        saved.Id,
		RoomId:    saved.RoomId,
		Content:   saved.Content,
		CreatedAt: saved.CreatedAt,
		Sender:    msg.client.user,
	}

	msg.client.queueMessage(NoErrOK(msg.Id, outMsg))
	r.cs.stats.Incr(stats.MessagesSent)

	// every registered session receives the broadcast, the sender included,
	// so all clients reconcile through the same event path
	r.broadcast(&ServerMessage{
		Timestamp:  saved.CreatedAt,
		NewMessage: outMsg,
	})
}

// broadcastTyping notifies every session but the sender. Delivery is best
// effort: a full recipient buffer drops the signal instead of disconnecting.
func (r *Room) broadcastTyping(msg *ClientMessage) {
	typing := &ServerMessage{
		Timestamp: Now(),
		UserTyping: &UserTyping{
			RoomId:   r.id,
			UserId:   msg.client.user.Id,
			Username: msg.client.user.Username,
			IsTyping: msg.typing.IsTyping,
		},
	}

	for client := range r.clients {
		if client == msg.client {
			continue
		}

		client.tryQueueMessage(typing)
	}
}

func (r *Room) broadcast(msg *ServerMessage) {
	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}
