package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Repository is the persistence contract for direct messages.
//
// InsertDirectMessage must return the fully hydrated message (both parties'
// display info included) so the caller can emit it without a second query.
type Repository interface {
	InsertDirectMessage(ctx context.Context, senderUserID, recipientUserID int64, body, imageURL string) (DirectMessage, error)
	ListConversation(ctx context.Context, userID, otherUserID int64, limit int) ([]DirectMessage, error)
	ListChatUsers(ctx context.Context, currentUserID int64) ([]ChatUser, error)
}

var (
	ErrInvalidRecipient = errors.New("chat: recipient user id must be positive")
	ErrSelfMessage      = errors.New("chat: cannot message yourself")
	ErrEmptyMessage     = errors.New("chat: message body or image is required")
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Service validates and persists direct messages.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateMessageParams struct {
	SenderUserID    int64
	RecipientUserID int64
	Body            string
	ImageURL        string
}

// CreateDirectMessage persists a message and returns it hydrated.
// Body is trimmed; a message with neither body nor image is rejected.
func (s *Service) CreateDirectMessage(ctx context.Context, p CreateMessageParams) (DirectMessage, error) {
	if s.repo == nil {
		return DirectMessage{}, errors.New("chat: repository not configured")
	}
	if p.SenderUserID <= 0 {
		return DirectMessage{}, errors.New("chat: sender user id must be positive")
	}
	if p.RecipientUserID <= 0 {
		return DirectMessage{}, ErrInvalidRecipient
	}
	if p.SenderUserID == p.RecipientUserID {
		return DirectMessage{}, ErrSelfMessage
	}

	body := strings.TrimSpace(p.Body)
	if body == "" && p.ImageURL == "" {
		return DirectMessage{}, ErrEmptyMessage
	}

	msg, err := s.repo.InsertDirectMessage(ctx, p.SenderUserID, p.RecipientUserID, body, p.ImageURL)
	if err != nil {
		return DirectMessage{}, fmt.Errorf("chat: insert direct message: %w", err)
	}
	return msg, nil
}

// ListConversation returns up to limit messages between two users, oldest
// first. limit is clamped to [1, 200] with a default of 50.
func (s *Service) ListConversation(ctx context.Context, userID, otherUserID int64, limit int) ([]DirectMessage, error) {
	if userID <= 0 || otherUserID <= 0 {
		return nil, ErrInvalidRecipient
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.ListConversation(ctx, userID, otherUserID, limit)
}

// ListChatUsers returns everyone except the current user, for the partner picker.
func (s *Service) ListChatUsers(ctx context.Context, currentUserID int64) ([]ChatUser, error) {
	if currentUserID <= 0 {
		return nil, errors.New("chat: current user id must be positive")
	}
	return s.repo.ListChatUsers(ctx, currentUserID)
}
