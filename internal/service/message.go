package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fineahban/marketplace/internal/apperror"
	"github.com/fineahban/marketplace/internal/model"
	"github.com/fineahban/marketplace/internal/repository"
)

const MaxMessageBodyLength = 5000

// MessageNotifier pushes a freshly stored message to whoever is connected.
// The realtime hub implements it.
type MessageNotifier interface {
	NotifyMessage(msg *model.Message)
}

// MessageService stores direct messages and derives conversations from them.
type MessageService struct {
	messages repository.MessageRepository
	notifier MessageNotifier
	logger   *slog.Logger
}

// NewMessageService wires the service. notifier may be nil, in which case
// messages are stored but not pushed.
func NewMessageService(messages repository.MessageRepository, notifier MessageNotifier, logger *slog.Logger) *MessageService {
	return &MessageService{
		messages: messages,
		notifier: notifier,
		logger:   logger,
	}
}

// Send stores a message and then fans it out to both participants.
// Delivery is best effort; the stored row is the source of truth.
func (s *MessageService) Send(ctx context.Context, senderID, recipientID int64, body string) (*model.Message, error) {
	if senderID <= 0 {
		return nil, apperror.ValidationFailed("senderId", "senderId must be a positive integer")
	}
	if recipientID <= 0 {
		return nil, apperror.ValidationFailed("recipientId", "recipientId must be a positive integer")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.ValidationFailed("body", "message body is required")
	}
	if len([]rune(body)) > MaxMessageBodyLength {
		return nil, apperror.ValidationFailed("body",
			fmt.Sprintf("message body must be %d characters or less", MaxMessageBodyLength))
	}

	msg := &model.Message{SenderID: senderID, RecipientID: recipientID, Body: body}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}

	s.logger.Debug("message stored",
		slog.Int64("id", msg.ID),
		slog.Int64("senderID", senderID),
		slog.Int64("recipientID", recipientID),
	)

	if s.notifier != nil {
		s.notifier.NotifyMessage(msg)
	}
	return msg, nil
}

// ListConversations returns one row per peer userID has talked to: the
// newest message between them. Newest conversation first.
func (s *MessageService) ListConversations(ctx context.Context, userID int64) ([]model.Message, error) {
	if userID <= 0 {
		return nil, apperror.ValidationFailed("userId", "userId must be a positive integer")
	}
	convs, err := s.messages.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations for %d: %w", userID, err)
	}
	return convs, nil
}

// ListMessages returns the full transcript between a and b, oldest first.
func (s *MessageService) ListMessages(ctx context.Context, a, b int64) ([]model.Message, error) {
	if a <= 0 || b <= 0 {
		return nil, apperror.ValidationFailed("userId", "user ids must be positive integers")
	}
	msgs, err := s.messages.ListBetween(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("listing messages between %d and %d: %w", a, b, err)
	}
	return msgs, nil
}
