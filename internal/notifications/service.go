package notifications

import (
	"context"
	"errors"
	"fmt"

	"forum-platform/internal/realtime"
)

// Repository is the persistence contract for notifications.
type Repository interface {
	// ThreadAuthor returns the author user id of a thread, or ErrThreadNotFound.
	ThreadAuthor(ctx context.Context, threadID int64) (int64, error)

	// Insert persists a notification and returns it hydrated with the
	// actor's display info and the thread title.
	Insert(ctx context.Context, recipientUserID, actorUserID, threadID int64, t Type) (Notification, error)
}

// Emitter delivers a notification to the recipient's realtime room.
// Satisfied by the realtime hub.
type Emitter interface {
	EmitToRooms(event string, data any, rooms ...string)
}

var ErrThreadNotFound = errors.New("notifications: thread not found")

// Service persists forum notifications and pushes them to the recipient's
// notification room. Delivery is best-effort: a recipient with no open
// connection simply picks the row up over HTTP later.
type Service struct {
	repo    Repository
	emitter Emitter
}

func NewService(repo Repository, emitter Emitter) *Service {
	return &Service{repo: repo, emitter: emitter}
}

// NotifyReply records a reply-on-thread notification for the thread author.
// Self-replies produce nothing.
func (s *Service) NotifyReply(ctx context.Context, threadID, actorUserID int64) error {
	return s.notify(ctx, threadID, actorUserID, TypeReplyOnThread)
}

// NotifyLike records a like-on-thread notification for the thread author.
// Self-likes produce nothing.
func (s *Service) NotifyLike(ctx context.Context, threadID, actorUserID int64) error {
	return s.notify(ctx, threadID, actorUserID, TypeLikeOnThread)
}

func (s *Service) notify(ctx context.Context, threadID, actorUserID int64, t Type) error {
	if threadID <= 0 || actorUserID <= 0 {
		return errors.New("notifications: thread id and actor id must be positive")
	}

	authorID, err := s.repo.ThreadAuthor(ctx, threadID)
	if err != nil {
		return fmt.Errorf("notifications: resolve thread author: %w", err)
	}
	if authorID == actorUserID {
		return nil
	}

	n, err := s.repo.Insert(ctx, authorID, actorUserID, threadID, t)
	if err != nil {
		return fmt.Errorf("notifications: insert: %w", err)
	}

	if s.emitter != nil {
		s.emitter.EmitToRooms(realtime.EventNotificationNew, n, realtime.NotificationsRoom(authorID))
	}
	return nil
}
