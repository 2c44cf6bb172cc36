package stream

import (
	"strings"

	"github.com/civic-alerts/internal/domain"
)

// IssueFeed broadcasts per-issue activity to clients watching that issue.
type IssueFeed struct {
	*Broker
}

func NewIssueFeed(buffer int) *IssueFeed {
	return &IssueFeed{Broker: NewBroker("issues", buffer)}
}

// CommentPosted is the payload of a comment event.
type CommentPosted struct {
	IssueID       string         `json:"issueId"`
	CommentsCount int64          `json:"commentsCount"`
	Comment       domain.Comment `json:"comment"`
}

func (f *IssueFeed) Comment(issueID string, commentsCount int64, c domain.Comment) int {
	return f.Publish(issueID, Event{Name: EventComment, Data: CommentPosted{IssueID: issueID, CommentsCount: commentsCount, Comment: c}})
}

func (f *IssueFeed) Vote(issueID string, v domain.VoteSummary) int {
	return f.Publish(issueID, Event{Name: EventVote, Data: v})
}

// StatusChange is the payload of a status event.
type StatusChange struct {
	IssueID string             `json:"issueId"`
	From    domain.IssueStatus `json:"from"`
	Status  domain.IssueStatus `json:"status"`
}

func (f *IssueFeed) Status(issueID string, from, to domain.IssueStatus) int {
	return f.Publish(issueID, Event{Name: EventStatus, Data: StatusChange{IssueID: issueID, From: from, Status: to}})
}

// NotificationFeed pushes freshly stored notifications to their recipient.
// Topics are keyed by lowercased recipient.
type NotificationFeed struct {
	*Broker
}

func NewNotificationFeed(buffer int) *NotificationFeed {
	return &NotificationFeed{Broker: NewBroker("notifications", buffer)}
}

func (f *NotificationFeed) Subscribe(recipient string) *Subscription {
	return f.Broker.Subscribe(strings.ToLower(recipient))
}

func (f *NotificationFeed) Push(n *domain.Notification) int {
	if n == nil {
		return 0
	}
	return f.Publish(strings.ToLower(n.Recipient), Event{Name: EventNotification, Data: n})
}
