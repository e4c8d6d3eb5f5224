package store

import (
	"time"

	"convosync/internal/model"
)

// OutboxEntry is the durable mirror of one placeholder message, so
// pending and failed sends survive an agent restart.
type OutboxEntry struct {
	ID             int64
	MessageID      string
	ConversationID string
	Content        string
	MessageType    string
	MediaURL       string
	Status         model.DeliveryStatus
	ErrorMessage   string
	CreatedAt      int64
	UpdatedAt      int64
}

// Queue inserts a new outbox entry with status PENDING.
func (db *DB) Queue(messageID, conversationID, content, messageType, mediaURL string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (message_id, conversation_id, content, message_type, media_url, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'PENDING', ?, ?)`,
		messageID, conversationID, content, messageType, mediaURL, now, now)
	return err
}

// SetStatus updates an entry's delivery status and error message.
func (db *DB) SetStatus(messageID string, status model.DeliveryStatus, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = ?, error_message = ?, updated_at = ? WHERE message_id = ?`,
		status, errMsg, now, messageID)
	return err
}

// Remove deletes the entry for messageID. Removing a sent or unknown
// entry is not an error.
func (db *DB) Remove(messageID string) error {
	_, err := db.Exec(`DELETE FROM outbox WHERE message_id = ?`, messageID)
	return err
}

// Unsettled returns entries still PENDING or FAILED, oldest first.
// Used at startup to restore placeholders into the send pipeline.
func (db *DB) Unsettled() ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, message_id, conversation_id, content, message_type, media_url, status, error_message, created_at, updated_at
		FROM outbox WHERE status IN ('PENDING', 'FAILED') ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.MessageID, &e.ConversationID, &e.Content, &e.MessageType, &e.MediaURL, &e.Status, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
