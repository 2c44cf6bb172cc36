package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/civic-alerts/internal/domain"
)

// recentLimit caps the unfiltered inbox listing.
const recentLimit = 50

// Service is the per-recipient inbox over stored notification records.
type Service interface {
	ListRecent(ctx context.Context, recipient string) ([]domain.Notification, error)
	ListUnread(ctx context.Context, recipient string) ([]domain.Notification, error)
	CountUnread(ctx context.Context, recipient string) (int, error)
	MarkRead(ctx context.Context, recipient string, ids []string) (int, error)
}

type inboxStore interface {
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListByRecipient(ctx context.Context, recipient string, limit int32) ([]domain.Notification, error)
	ListUnread(ctx context.Context, recipient string) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, notificationID string) error
}

type service struct {
	repo inboxStore
}

func NewService(repo inboxStore) Service {
	return &service{repo: repo}
}

// ListRecent returns the newest records for recipient, newest first.
func (s *service) ListRecent(ctx context.Context, recipient string) ([]domain.Notification, error) {
	return s.repo.ListByRecipient(ctx, normalizeRecipient(recipient), recentLimit)
}

func (s *service) ListUnread(ctx context.Context, recipient string) ([]domain.Notification, error) {
	return s.repo.ListUnread(ctx, normalizeRecipient(recipient))
}

func (s *service) CountUnread(ctx context.Context, recipient string) (int, error) {
	items, err := s.repo.ListUnread(ctx, normalizeRecipient(recipient))
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// MarkRead marks the caller's own unread records among ids and returns the
// remaining unread count. Foreign or unknown ids are ignored.
func (s *service) MarkRead(ctx context.Context, recipient string, ids []string) (int, error) {
	recipient = normalizeRecipient(recipient)
	for _, nid := range ids {
		n, err := s.repo.Get(ctx, nid)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n.Recipient != recipient || n.Read {
			continue
		}
		if err := s.repo.MarkAsRead(ctx, nid); err != nil {
			return 0, fmt.Errorf("mark notification %s read: %w", nid, err)
		}
	}
	return s.CountUnread(ctx, recipient)
}

func normalizeRecipient(r string) string {
	return strings.ToLower(strings.TrimSpace(r))
}
