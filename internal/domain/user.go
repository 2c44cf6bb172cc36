package domain

const (
	RoleCitizen = "CITIZEN"
	RoleAdmin   = "ADMIN"
)

// User carries the contact and consent flags the dispatcher relies on.
type User struct {
	UserID        string  `json:"id" dynamodbav:"user_id"`
	Name          string  `json:"name" dynamodbav:"name"`
	Email         string  `json:"email" dynamodbav:"email"`
	Phone         *string `json:"phone" dynamodbav:"phone"`
	Role          string  `json:"role" dynamodbav:"role"`
	EmailConsent  bool    `json:"email_consent" dynamodbav:"email_consent"`
	SMSConsent    bool    `json:"sms_consent" dynamodbav:"sms_consent"`
	PhoneVerified bool    `json:"phone_verified" dynamodbav:"phone_verified"`
	EmailVerified bool    `json:"email_verified" dynamodbav:"email_verified"`
}
