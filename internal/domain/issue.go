package domain

import (
	"fmt"
	"strings"
	"time"
)

type IssueStatus string

const (
	StatusOpen       IssueStatus = "OPEN"
	StatusInProgress IssueStatus = "IN_PROGRESS"
	StatusResolved   IssueStatus = "RESOLVED"
)

// ParseIssueStatus accepts enum names as well as the legacy lower-case
// spellings ("pending", "in-progress", "resolved").
func ParseIssueStatus(v string) (IssueStatus, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	switch s {
	case "OPEN", "PENDING":
		return StatusOpen, nil
	case "IN_PROGRESS", "INPROGRESS":
		return StatusInProgress, nil
	case "RESOLVED":
		return StatusResolved, nil
	}
	return "", fmt.Errorf("unknown status %q: %w", v, ErrBadRequest)
}

// Issue is the read model the notification engine needs from a reported issue.
type Issue struct {
	IssueID             string      `json:"id" dynamodbav:"issue_id"`
	Title               string      `json:"title" dynamodbav:"title"`
	Status              IssueStatus `json:"status" dynamodbav:"status"`
	CreatedBy           string      `json:"created_by" dynamodbav:"created_by"` // owner e-mail
	CreatedByName       string      `json:"created_by_name,omitempty" dynamodbav:"created_by_name"`
	AssignedTo          string      `json:"assigned_to,omitempty" dynamodbav:"assigned_to"`
	FollowerEmails      []string    `json:"follower_emails" dynamodbav:"follower_emails"`
	FollowerPhones      []string    `json:"follower_phones" dynamodbav:"follower_phones"`
	FollowerWebhookURLs []string    `json:"follower_webhook_urls" dynamodbav:"follower_webhook_urls"`
	CreatedAt           time.Time   `json:"created" dynamodbav:"created_at"`
	UpdatedAt           time.Time   `json:"updated" dynamodbav:"updated_at"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Comment is the live-feed view of a newly posted comment.
type Comment struct {
	CommentID string `json:"id"`
	UserName  string `json:"userName"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"` // epoch millis
}

// VoteSummary is the live-feed view of an issue's vote tally.
type VoteSummary struct {
	IssueID   string `json:"issueId"`
	UpVotes   int64  `json:"upVotes"`
	DownVotes int64  `json:"downVotes"`
}

// CommentEvent is posted by the issue CRUD service after it stores a comment.
type CommentEvent struct {
	CommentID string `json:"id"`
	UserName  string `json:"userName" validate:"required"`
	Text      string `json:"text" validate:"required,max=2000"`
	CreatedAt int64  `json:"createdAt"`

	// CommentsCount is the issue's total after this comment was stored.
	CommentsCount int64 `json:"commentsCount" validate:"min=0"`
}

// VoteEvent is posted by the issue CRUD service after a vote changes the tally.
type VoteEvent struct {
	VoterEmail string `json:"voterEmail" validate:"required,email"`
	UpVotes    int64  `json:"upVotes" validate:"min=0"`
	DownVotes  int64  `json:"downVotes" validate:"min=0"`
}
