package chat

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func TestAppendMessageInsertsAndBumpsCounters(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO chat_rooms").
		WithArgs("room-1", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO chat_messages").
		WithArgs(sqlmock.AnyArg(), "room-1", RoleAssistant, "What day works for you?", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE chat_rooms SET").
		WithArgs(sqlmock.AnyArg(), "room-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewMessageStore(db)
	err = s.AppendMessage(context.Background(), Message{
		ChatRoomID: "room-1",
		Role:       RoleAssistant,
		Content:    "What day works for you?",
	})
	if err != nil {
		t.Fatalf("AppendMessage returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendMessageSkipsCountersOnReplay(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO chat_rooms").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// ON CONFLICT DO NOTHING: zero rows means the id was seen before.
	mock.ExpectExec("INSERT INTO chat_messages").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewMessageStore(db)
	err = s.AppendMessage(context.Background(), Message{
		ID:         uuid.New(),
		ChatRoomID: "room-1",
		Role:       RoleUser,
		Content:    "tomorrow",
	})
	if err != nil {
		t.Fatalf("AppendMessage returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecentMessagesChronologicalOrder(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "chat_room_id", "role", "content", "created_at"}).
		AddRow(uuid.New(), "room-1", RoleUser, "2pm works", now).
		AddRow(uuid.New(), "room-1", RoleAssistant, "What time works for you?", now.Add(-time.Minute)).
		AddRow(uuid.New(), "room-1", RoleUser, "tomorrow", now.Add(-2*time.Minute))

	mock.ExpectQuery("SELECT id, chat_room_id, role, content, created_at").
		WithArgs("room-1", 3).
		WillReturnRows(rows)

	s := NewMessageStore(db)
	messages, err := s.RecentMessages(context.Background(), "room-1", 3)
	if err != nil {
		t.Fatalf("RecentMessages returned error: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Content != "tomorrow" || messages[2].Content != "2pm works" {
		t.Fatalf("expected chronological order, got %q .. %q", messages[0].Content, messages[2].Content)
	}
}

func TestNilStoreIsNoOp(t *testing.T) {
	var s *MessageStore

	if err := s.AppendMessage(context.Background(), Message{ChatRoomID: "room-1"}); err != nil {
		t.Fatalf("nil store AppendMessage: %v", err)
	}
	if err := s.PostMessage(context.Background(), "room-1", RoleSystem, "notice"); err != nil {
		t.Fatalf("nil store PostMessage: %v", err)
	}
	messages, err := s.RecentMessages(context.Background(), "room-1", 10)
	if err != nil || messages != nil {
		t.Fatalf("nil store RecentMessages = %v, %v", messages, err)
	}
}
