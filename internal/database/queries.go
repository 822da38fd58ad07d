package database

import (
	"context"
	"time"
)

func (db *PgChatRepository) GetUserById(userId int64) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, avatar_url, is_admin, created_at FROM users "+
			"WHERE id = $1 LIMIT 1",
		userId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.AvatarUrl,
		&user.IsAdmin,
		&user.CreatedAt,
	)

	return user, err
}

func (db *PgChatRepository) GetRoomById(roomId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, is_active, created_at, updated_at FROM rooms "+
			"WHERE id = $1 LIMIT 1",
		roomId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.Name,
		&room.IsActive,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

// IsRoomMember answers the membership question against the room_members
// table owned by group management. It is consulted on every join attempt,
// never cached.
func (db *PgChatRepository) IsRoomMember(userId int64, roomId string) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM room_members WHERE user_id = $1 AND room_id = $2)",
		userId,
		roomId,
	)

	var isMember bool
	err := row.Scan(&isMember)

	return isMember, err
}

func (db *PgChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	row := db.conn.QueryRow(
		"INSERT INTO messages (room_id, sender_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, room_id, sender_id, content, is_deleted, created_at",
		params.RoomId,
		params.SenderId,
		params.Content,
		time.Now().UTC(),
	)

	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.SenderId,
		&msg.Content,
		&msg.IsDeleted,
		&msg.CreatedAt,
	)

	return msg, err
}

// GetMessages returns a page of non-deleted messages for a room in ascending
// created_at order, along with the total non-deleted count.
func (db *PgChatRepository) GetMessages(roomId string, offset, limit int) ([]Message, int, error) {
	return db.getMessages(roomId, offset, limit, false)
}

// GetAllMessages is the privileged variant which includes soft-deleted rows.
func (db *PgChatRepository) GetAllMessages(roomId string, offset, limit int) ([]Message, int, error) {
	return db.getMessages(roomId, offset, limit, true)
}

func (db *PgChatRepository) getMessages(roomId string, offset, limit int, includeDeleted bool) ([]Message, int, error) {
	var total int
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE room_id = $1 AND (is_deleted = false OR $2)",
		roomId,
		includeDeleted,
	)
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.conn.Query(
		"SELECT m.id, m.room_id, m.sender_id, u.username, u.avatar_url, m.content, m.is_deleted, m.created_at "+
			"FROM messages m JOIN users u ON m.sender_id = u.id "+
			"WHERE m.room_id = $1 AND (m.is_deleted = false OR $2) "+
			"ORDER BY m.created_at ASC, m.id ASC OFFSET $3 LIMIT $4",
		roomId,
		includeDeleted,
		offset,
		limit,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.RoomId, &msg.SenderId, &msg.SenderUsername, &msg.SenderAvatarUrl,
			&msg.Content, &msg.IsDeleted, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, total, err
}

func (db *PgChatRepository) GetMessageById(messageId int64) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT id, room_id, sender_id, content, is_deleted, created_at FROM messages "+
			"WHERE id = $1 LIMIT 1",
		messageId,
	)

	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.SenderId,
		&msg.Content,
		&msg.IsDeleted,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgChatRepository) MarkMessageDeleted(messageId int64) error {
	_, err := db.conn.Exec(
		"UPDATE messages SET is_deleted = true WHERE id = $1",
		messageId,
	)

	return err
}

// PurgeMessagesBefore hard-deletes every message older than cutoff,
// soft-deleted or not. Used only by the retention scheduler.
func (db *PgChatRepository) PurgeMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(
		ctx,
		"DELETE FROM messages WHERE created_at < $1",
		cutoff,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// PurgeInactiveRoomMessages hard-deletes messages belonging to rooms marked
// inactive by group management, once the messages are older than ageCutoff.
func (db *PgChatRepository) PurgeInactiveRoomMessages(ctx context.Context, ageCutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(
		ctx,
		"DELETE FROM messages m USING rooms r "+
			"WHERE m.room_id = r.id AND r.is_active = false AND m.created_at < $1",
		ageCutoff,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
