package chat

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one entry in a chat room transcript.
type Message struct {
	ID         uuid.UUID
	ChatRoomID string
	Role       string
	Content    string
	CreatedAt  time.Time
}

// Transport posts a message into a chat room. The notification fan-out
// uses it to drop status notices into the conversation.
type Transport interface {
	PostMessage(ctx context.Context, chatRoomID, role, content string) error
}

// MessageStore persists chat rooms and messages to PostgreSQL for
// long-term history. A nil store is a valid no-op, so callers can run
// without a database in development.
type MessageStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewMessageStore creates a message store. Returns nil when db is nil.
func NewMessageStore(db *sql.DB) *MessageStore {
	if db == nil {
		return nil
	}
	return &MessageStore{
		db:     db,
		tracer: otel.Tracer("bookline.internal.chat"),
	}
}

// EnsureRoom creates the chat room row if it does not exist and touches
// its activity timestamp when it does.
func (s *MessageStore) EnsureRoom(ctx context.Context, chatRoomID, businessID string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if strings.TrimSpace(chatRoomID) == "" {
		return fmt.Errorf("chat: chat room id required")
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_rooms (chat_room_id, business_id, message_count, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $3)
		ON CONFLICT (chat_room_id) DO UPDATE SET updated_at = $3
	`, chatRoomID, businessID, now)
	if err != nil {
		return fmt.Errorf("chat: ensure room: %w", err)
	}
	return nil
}

// AppendMessage persists one message and bumps the room counter. Replayed
// message ids are ignored so redelivered events stay idempotent.
func (s *MessageStore) AppendMessage(ctx context.Context, msg Message) error {
	if s == nil || s.db == nil {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "chat.append_message")
	defer span.End()

	if err := s.EnsureRoom(ctx, msg.ChatRoomID, ""); err != nil {
		span.RecordError(err)
		return err
	}

	id := msg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, chat_room_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, id, msg.ChatRoomID, msg.Role, msg.Content, createdAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: insert message: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("chat: read insert result: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE chat_rooms SET
			message_count = message_count + 1,
			last_message_at = $1,
			updated_at = $1
		WHERE chat_room_id = $2
	`, createdAt, msg.ChatRoomID)
	if err != nil {
		return fmt.Errorf("chat: update room counters: %w", err)
	}
	return nil
}

// PostMessage implements Transport.
func (s *MessageStore) PostMessage(ctx context.Context, chatRoomID, role, content string) error {
	return s.AppendMessage(ctx, Message{ChatRoomID: chatRoomID, Role: role, Content: content})
}

// RecentMessages returns up to limit messages in chronological order, for
// building the extraction transcript.
func (s *MessageStore) RecentMessages(ctx context.Context, chatRoomID string, limit int) ([]Message, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	ctx, span := s.tracer.Start(ctx, "chat.recent_messages")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_room_id, role, content, created_at
		FROM chat_messages
		WHERE chat_room_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, chatRoomID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chat: query messages: %w", err)
	}
	defer rows.Close()

	var newestFirst []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ChatRoomID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		newestFirst = append(newestFirst, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: iterate messages: %w", err)
	}

	messages := make([]Message, len(newestFirst))
	for i, msg := range newestFirst {
		messages[len(newestFirst)-1-i] = msg
	}
	return messages, nil
}
