package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/civic-alerts/internal/application/notification"
	"github.com/civic-alerts/internal/application/stream"
	"github.com/civic-alerts/internal/application/throttle"
	"github.com/civic-alerts/internal/application/verification"
	"github.com/civic-alerts/internal/config"
	"github.com/civic-alerts/internal/domain"
	"github.com/civic-alerts/internal/infrastructure/jwt/jwttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers struct{}

func (stubUsers) GetByEmail(context.Context, string) (*domain.User, error) { return nil, domain.ErrNotFound }
func (stubUsers) GetByPhone(context.Context, string) (*domain.User, error) { return nil, domain.ErrNotFound }
func (stubUsers) Update(context.Context, string, map[string]interface{}) error {
	return nil
}

type stubIssues struct{}

func (stubIssues) Get(context.Context, string) (*domain.Issue, error) { return nil, domain.ErrNotFound }
func (stubIssues) UpdateStatus(context.Context, string, domain.IssueStatus, domain.IssueStatus, time.Time) error {
	return nil
}

type stubInbox struct{}

func (stubInbox) Get(context.Context, string) (*domain.Notification, error) { return nil, domain.ErrNotFound }
func (stubInbox) ListByRecipient(context.Context, string, int32) ([]domain.Notification, error) {
	return []domain.Notification{}, nil
}
func (stubInbox) ListUnread(context.Context, string) ([]domain.Notification, error) {
	return []domain.Notification{}, nil
}
func (stubInbox) MarkAsRead(context.Context, string) error { return nil }
func (stubInbox) Put(context.Context, *domain.Notification) error {
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *jwttest.Issuer) {
	t.Helper()
	p := jwttest.New(t)
	cfg := &config.Config{
		JWTPublicKeyPath:  p.Config.JWTPublicKeyPath,
		AllowedOrigins:    []string{"*"},
		StreamIdleTimeout: time.Minute,
	}

	inbox := stubInbox{}
	notes := stream.NewNotificationFeed(8)
	deps := &Deps{
		UserRepo:         stubUsers{},
		IssueRepo:        stubIssues{},
		NotificationRepo: inbox,
		PhoneLimiter:     throttle.NewLimiter("phone", throttle.NewMemoryLedger(time.Hour), config.ThrottlePolicy{CooldownSeconds: 60, MaxPerWindow: 5, WindowSeconds: 3600}),
		EmailLimiter:     throttle.NewLimiter("email", throttle.NewMemoryLedger(time.Hour), config.ThrottlePolicy{MaxPerWindow: 5, WindowSeconds: 3600}),
		PhoneCodes:       verification.NewStore("phone", 5*time.Minute),
		EmailCodes:       verification.NewStore("email", 10*time.Minute),
		Dispatcher: notification.NewDispatcher(notification.DispatcherDeps{
			Users:   stubUsers{},
			Records: inbox,
			Feed:    notes,
		}),
		IssueFeed:        stream.NewIssueFeed(8),
		NotificationFeed: notes,
		JWTProvider:      p.Provider,
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRouter(ctx, cfg, deps), p
}

func do(t *testing.T, h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func TestRouter_HealthCheck(t *testing.T) {
	h, _ := newTestRouter(t)
	rr := do(t, h, http.MethodGet, "/v1/health-check/ping", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "pong")
}

func TestRouter_InboxRequiresToken(t *testing.T) {
	h, p := newTestRouter(t)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/notifications", "", "").Code)

	token, err := p.Sign("u1", "asha@example.com", domain.RoleCitizen)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/notifications/unread-count", token, "").Code)
}

func TestRouter_AdminRoutesRejectCitizens(t *testing.T) {
	h, p := newTestRouter(t)
	citizen, err := p.Sign("u1", "asha@example.com", domain.RoleCitizen)
	require.NoError(t, err)
	admin, err := p.Sign("u2", "ops@example.com", domain.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPut, "/v1/admin/issues/i1/status", citizen, `{"status":"RESOLVED"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPut, "/v1/admin/issues/i1/status", admin, `{"status":"RESOLVED"}`).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/notify/status", admin, "").Code)
}

func TestRouter_OTPUnknownPhone(t *testing.T) {
	h, _ := newTestRouter(t)
	rr := do(t, h, http.MethodPost, "/v1/otp/phone/request", "", `{"phone":"+15550001111"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
