package otp

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/civic-alerts/internal/domain"
)

// DynamoDB attribute names flipped on successful verification.
const (
	fieldPhoneVerified = "phone_verified"
	fieldEmailVerified = "email_verified"
)

type Service interface {
	RequestPhoneCode(ctx context.Context, phone string) error
	VerifyPhone(ctx context.Context, phone, code string) error
	RequestEmailCode(ctx context.Context, email, name string) error
	VerifyEmail(ctx context.Context, email, code string) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type limiter interface {
	Attempt(ctx context.Context, key string, now time.Time) error
}

type codeStore interface {
	TTL() time.Duration
	Issue(key string) (string, error)
	Check(key, code string) error
}

type mailer interface {
	SendEmail(to, subject, htmlBody string) error
}

type smsSender interface {
	Enabled() bool
	SendSMS(ctx context.Context, to, message string) error
}

type service struct {
	userRepo     userStore
	phoneLimiter limiter
	emailLimiter limiter
	phoneCodes   codeStore
	emailCodes   codeStore
	mailer       mailer
	smsSender    smsSender
	now          func() time.Time
}

type ServiceDeps struct {
	UserRepo     userStore
	PhoneLimiter limiter
	EmailLimiter limiter
	PhoneCodes   codeStore
	EmailCodes   codeStore
	Mailer       mailer
	SMSSender    smsSender
}

func NewService(deps ServiceDeps) Service {
	return &service{
		userRepo:     deps.UserRepo,
		phoneLimiter: deps.PhoneLimiter,
		emailLimiter: deps.EmailLimiter,
		phoneCodes:   deps.PhoneCodes,
		emailCodes:   deps.EmailCodes,
		mailer:       deps.Mailer,
		smsSender:    deps.SMSSender,
		now:          time.Now,
	}
}

// RequestPhoneCode sends a fresh code to a registered phone, subject to the
// phone resend policy.
func (s *service) RequestPhoneCode(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if _, err := s.userRepo.GetByPhone(ctx, phone); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("phone not registered: %w", domain.ErrNotFound)
		}
		return err
	}
	if err := s.phoneLimiter.Attempt(ctx, "phone:"+phone, s.now()); err != nil {
		return err
	}
	code, err := s.phoneCodes.Issue(phone)
	if err != nil {
		return err
	}
	if s.smsSender == nil || !s.smsSender.Enabled() {
		slog.Info("sms disabled, phone code not delivered", "phone", phone)
		return nil
	}
	body := fmt.Sprintf("Your verification code for phone verification is %s. It will expire in %d minutes.",
		code, int(s.phoneCodes.TTL().Minutes()))
	if err := s.smsSender.SendSMS(ctx, phone, body); err != nil {
		slog.Warn("failed to send phone code", "phone", phone, "err", err)
	}
	return nil
}

// VerifyPhone consumes the phone code and marks the owning user verified.
func (s *service) VerifyPhone(ctx context.Context, phone, code string) error {
	phone = strings.TrimSpace(phone)
	if err := s.phoneCodes.Check(phone, code); err != nil {
		return err
	}
	u, err := s.userRepo.GetByPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("user for verified phone: %w", err)
	}
	if u.PhoneVerified {
		return nil
	}
	return s.userRepo.Update(ctx, u.UserID, map[string]interface{}{fieldPhoneVerified: true})
}

// RequestEmailCode e-mails a fresh code, subject to the e-mail send policy.
func (s *service) RequestEmailCode(ctx context.Context, email, name string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.emailLimiter.Attempt(ctx, "email:"+email, s.now()); err != nil {
		return err
	}
	code, err := s.emailCodes.Issue(email)
	if err != nil {
		return err
	}
	if s.mailer == nil {
		slog.Info("no mail sender configured, email code not delivered", "email", email)
		return nil
	}
	body := emailCodeBody(name, code, int(s.emailCodes.TTL().Minutes()))
	if err := s.mailer.SendEmail(email, "Your verification code", body); err != nil {
		slog.Warn("failed to send email code", "email", email, "err", err)
	}
	return nil
}

// VerifyEmail consumes the e-mail code. Addresses without an account still
// verify; there is simply no flag to set.
func (s *service) VerifyEmail(ctx context.Context, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.emailCodes.Check(email, code); err != nil {
		return err
	}
	u, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("user for verified email: %w", err)
	}
	if u.EmailVerified {
		return nil
	}
	return s.userRepo.Update(ctx, u.UserID, map[string]interface{}{fieldEmailVerified: true})
}

func emailCodeBody(name, code string, minutes int) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(
		"<html><body><p>Hi %s,</p><p>Your verification code is <strong>%s</strong>.</p>"+
			"<p>It will expire in %d minutes. If you did not request it, ignore this e-mail.</p>"+
			"<p>Civic Alerts Team</p></body></html>",
		html.EscapeString(name), code, minutes)
}
