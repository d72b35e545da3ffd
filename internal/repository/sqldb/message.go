package sqldb

import (
	"context"
	"fmt"

	"github.com/fineahban/marketplace/internal/apperror"
	"github.com/fineahban/marketplace/internal/model"
	"github.com/fineahban/marketplace/internal/repository"
)

var _ repository.MessageRepository = (*MessageDB)(nil)

const messageColumns = `id, sender_id, recipient_id, body, created_at`

// Create stores msg and fills in its id and timestamp.
func (db *MessageDB) Create(ctx context.Context, msg *model.Message) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	msg.CreatedAt = now()
	err := db.x.GetContext(ctx, &msg.ID, db.x.Rebind(`
		INSERT INTO messages (sender_id, recipient_id, body, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`),
		msg.SenderID, msg.RecipientID, msg.Body, msg.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", fmt.Sprintf("%d or %d", msg.SenderID, msg.RecipientID))
		}
		return mapErr(ctx, "creating message", err)
	}
	return nil
}

// conversationsQuery groups the message log by unordered participant pair.
// The CASE pair (smaller id, larger id) is the conversation key, so A->B and
// B->A land in the same group. MAX(id) picks the newest message of each group.
const conversationsQuery = `
	SELECT m.id, m.sender_id, m.recipient_id, m.body, m.created_at
	FROM messages m
	JOIN (
		SELECT MAX(id) AS id
		FROM messages
		WHERE sender_id = ? OR recipient_id = ?
		GROUP BY
			CASE WHEN sender_id < recipient_id THEN sender_id ELSE recipient_id END,
			CASE WHEN sender_id < recipient_id THEN recipient_id ELSE sender_id END
	) latest ON latest.id = m.id
	ORDER BY m.created_at DESC, m.id DESC`

func (db *MessageDB) ListConversations(ctx context.Context, userID int64) ([]model.Message, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	msgs := []model.Message{}
	if err := db.x.SelectContext(ctx, &msgs, db.x.Rebind(conversationsQuery), userID, userID); err != nil {
		return nil, mapErr(ctx, "listing conversations", err)
	}
	return msgs, nil
}

func (db *MessageDB) ListBetween(ctx context.Context, a, b int64) ([]model.Message, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	msgs := []model.Message{}
	err := db.x.SelectContext(ctx, &msgs, db.x.Rebind(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE (sender_id = ? AND recipient_id = ?)
		   OR (sender_id = ? AND recipient_id = ?)
		ORDER BY created_at ASC, id ASC`),
		a, b, b, a,
	)
	if err != nil {
		return nil, mapErr(ctx, "listing messages", err)
	}
	return msgs, nil
}
