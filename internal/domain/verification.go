package domain

import "time"

// VerificationCode is a live one-time code held in process memory.
// It is never persisted: losing it on restart only forces a re-request.
type VerificationCode struct {
	Code     string
	IssuedAt time.Time
}

type PhoneCodeRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type PhoneVerifyRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type EmailCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name"`
}

type EmailVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}
