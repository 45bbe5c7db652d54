package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tOgg1/pitchline/internal/models"
)

// ErrInvalidMessage wraps validation failures on insert.
var ErrInvalidMessage = errors.New("invalid message")

// MessageRepository handles message persistence.
type MessageRepository struct {
	db  *DB
	now func() time.Time
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db, now: time.Now}
}

// Create stores msg, assigning ID and CreatedAt when they are empty.
// Returns an error wrapping ErrInvalidMessage if validation fails.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	msg.Sender = strings.TrimSpace(msg.Sender)
	msg.Receiver = strings.TrimSpace(msg.Receiver)
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	msg.Origin = models.OriginConfirmed

	err := r.db.ExecWithRetry(ctx, `
		INSERT INTO messages (id, sender, receiver, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.Sender, msg.Receiver, msg.Content, msg.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// Conversation returns every message exchanged between a and b, in either
// direction, oldest first.
func (r *MessageRepository) Conversation(ctx context.Context, a, b string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender, receiver, content, created_at
		FROM messages
		WHERE (sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)
		ORDER BY created_at ASC, id ASC
	`, a, b, b, a)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Receiver, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		msg.Origin = models.OriginConfirmed
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	return msgs, nil
}

// Count returns the number of stored messages.
func (r *MessageRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}
