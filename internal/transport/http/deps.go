package http

import (
	"context"
	"time"

	"github.com/civic-alerts/internal/application/notification"
	"github.com/civic-alerts/internal/domain"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// IssueRepository is the minimal interface the router requires from an issue store.
type IssueRepository interface {
	Get(ctx context.Context, issueID string) (*domain.Issue, error)
	UpdateStatus(ctx context.Context, issueID string, from, to domain.IssueStatus, updatedAt time.Time) error
}

// NotificationRepository is the minimal interface the router requires from a notification store.
type NotificationRepository interface {
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListByRecipient(ctx context.Context, recipient string, limit int32) ([]domain.Notification, error)
	ListUnread(ctx context.Context, recipient string) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, notificationID string) error
}

// Limiter is a send throttle keyed by phone or e-mail.
type Limiter interface {
	Attempt(ctx context.Context, key string, now time.Time) error
}

// CodeStore holds live verification codes.
type CodeStore interface {
	TTL() time.Duration
	Issue(key string) (string, error)
	Check(key, code string) error
}

// Mailer sends HTML e-mail.
type Mailer interface {
	SendEmail(to, subject, htmlBody string) error
}

// SMSSender sends text messages when the provider is enabled.
type SMSSender interface {
	Enabled() bool
	SendSMS(ctx context.Context, to, message string) error
}

// Notifier is the dispatcher surface used by the issue service and operator tools.
type Notifier interface {
	NotifyOwner(ctx context.Context, issue *domain.Issue) notification.Outcome
	NotifyFollowers(ctx context.Context, issue *domain.Issue) []notification.Outcome
	NotifyVote(ctx context.Context, issue *domain.Issue, voterEmail string, up, down int64) *domain.Notification
	NotifyManual(ctx context.Context, req domain.ManualNotificationRequest) notification.Outcome
	ProviderStatus() map[string]bool
}
