package calls

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Repository is the persistence contract for call records.
type Repository interface {
	Insert(ctx context.Context, call VideoCall) error
	Get(ctx context.Context, callID string) (VideoCall, error)

	// UpdateStatus persists a transition and returns the updated record.
	// startedAt/endedAt are written only when non-nil.
	UpdateStatus(ctx context.Context, callID string, status CallStatus, startedAt, endedAt *time.Time) (VideoCall, error)
}

var (
	ErrNotFound          = errors.New("calls: call not found")
	ErrInvalidRecipient  = errors.New("calls: recipient user id must be positive")
	ErrSelfCall          = errors.New("calls: cannot call yourself")
	ErrNotParticipant    = errors.New("calls: user is not a participant of this call")
	ErrInvalidTransition = errors.New("calls: invalid status transition")
)

// Service owns the call lifecycle state machine:
//
//	calling -> connected (accept) -> ended
//	calling -> rejected
//	any non-terminal -> ended
//
// rejected and ended are terminal. End on an already-terminal call is a
// harmless no-op; any other transition out of a terminal state is refused.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Initiate creates a call record in status "calling".
func (s *Service) Initiate(ctx context.Context, callerID, recipientID int64, callerName, recipientName string) (VideoCall, error) {
	if callerID <= 0 {
		return VideoCall{}, errors.New("calls: caller user id must be positive")
	}
	if recipientID <= 0 {
		return VideoCall{}, ErrInvalidRecipient
	}
	if callerID == recipientID {
		return VideoCall{}, ErrSelfCall
	}

	now := s.clock().UTC()
	call := VideoCall{
		ID:            NewCallID(now, callerID, recipientID),
		CallerID:      callerID,
		RecipientID:   recipientID,
		CallerName:    callerName,
		RecipientName: recipientName,
		Status:        CallStatusCalling,
		CreatedAt:     now,
	}
	if err := s.repo.Insert(ctx, call); err != nil {
		return VideoCall{}, fmt.Errorf("calls: insert call record: %w", err)
	}
	return call, nil
}

// Accept transitions the call to "connected" and stamps started-at.
// Only the recipient may accept.
func (s *Service) Accept(ctx context.Context, callID string, actorUserID int64) (VideoCall, error) {
	call, err := s.repo.Get(ctx, callID)
	if err != nil {
		return VideoCall{}, err
	}
	if actorUserID != call.RecipientID {
		return VideoCall{}, ErrNotParticipant
	}
	if call.Status.Terminal() || call.Status == CallStatusConnected {
		return VideoCall{}, ErrInvalidTransition
	}

	now := s.clock().UTC()
	return s.repo.UpdateStatus(ctx, callID, CallStatusConnected, &now, nil)
}

// Reject transitions the call to "rejected" and stamps ended-at.
// Only the recipient may reject, and only before the call connects; a
// reject arriving after the call is over is refused, leaving the terminal
// status untouched.
func (s *Service) Reject(ctx context.Context, callID string, actorUserID int64) (VideoCall, error) {
	call, err := s.repo.Get(ctx, callID)
	if err != nil {
		return VideoCall{}, err
	}
	if actorUserID != call.RecipientID {
		return VideoCall{}, ErrNotParticipant
	}
	if call.Status != CallStatusCalling && call.Status != CallStatusRinging {
		return VideoCall{}, ErrInvalidTransition
	}

	now := s.clock().UTC()
	return s.repo.UpdateStatus(ctx, callID, CallStatusRejected, nil, &now)
}

// End transitions the call to "ended" and stamps ended-at. Either party may
// end. Ending an already-terminal call returns the record unchanged.
func (s *Service) End(ctx context.Context, callID string, actorUserID int64) (VideoCall, error) {
	call, err := s.repo.Get(ctx, callID)
	if err != nil {
		return VideoCall{}, err
	}
	if !call.IsParticipant(actorUserID) {
		return VideoCall{}, ErrNotParticipant
	}
	if call.Status.Terminal() {
		return call, nil
	}

	now := s.clock().UTC()
	return s.repo.UpdateStatus(ctx, callID, CallStatusEnded, nil, &now)
}

// Get loads a call record. Backs the HTTP call-lookup endpoint, which
// clients poll to reconcile call state after a reconnect.
func (s *Service) Get(ctx context.Context, callID string) (VideoCall, error) {
	return s.repo.Get(ctx, callID)
}
