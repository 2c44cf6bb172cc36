package domain

import "time"

// Notification types.
const (
	NotificationIssueStatus = "ISSUE_STATUS"
	NotificationIssueVote   = "ISSUE_VOTE"
	NotificationManual      = "MANUAL"
)

// Notification is the durable in-app record written for every dispatch.
// Recipient is the lower-cased e-mail of the user, or the phone number for
// phone-only followers.
type Notification struct {
	NotificationID string    `json:"id" dynamodbav:"notification_id"`
	Recipient      string    `json:"recipient" dynamodbav:"recipient"`
	IssueID        *string   `json:"issueId" dynamodbav:"issue_id"`
	Type           string    `json:"type" dynamodbav:"type"`
	Message        string    `json:"message" dynamodbav:"message"`
	Read           bool      `json:"read" dynamodbav:"read"`
	CreatedAt      time.Time `json:"createdAt" dynamodbav:"created_at"`
}

type ManualNotificationRequest struct {
	Name    string  `json:"name"`
	Email   string  `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Title   string  `json:"title"`
	Status  string  `json:"status"`
	Message string  `json:"message"`
}
