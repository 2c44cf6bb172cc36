package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/civic-alerts/internal/application/stream"
	"github.com/civic-alerts/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// Reconnect hints sent with the initial ping, in milliseconds.
const (
	issueRetryMillis        = 3000
	notificationRetryMillis = 5000
)

type subscriber interface {
	Subscribe(key string) *stream.Subscription
}

// StreamHandler serves live feeds as server-sent events.
type StreamHandler struct {
	issues        subscriber
	notifications subscriber
	idleTimeout   time.Duration
}

func NewStreamHandler(issues, notifications subscriber, idleTimeout time.Duration) *StreamHandler {
	return &StreamHandler{issues: issues, notifications: notifications, idleTimeout: idleTimeout}
}

// IssueStream follows comments, votes and status changes on one issue.
func (h *StreamHandler) IssueStream(w http.ResponseWriter, r *http.Request) {
	issueID := chi.URLParam(r, "id")
	if issueID == "" {
		writeError(w, r, http.StatusBadRequest, "issue id required")
		return
	}
	h.serve(w, r, h.issues.Subscribe(issueID), issueRetryMillis)
}

// NotificationStream pushes the caller's new notifications.
func (h *StreamHandler) NotificationStream(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.Email == "" {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.serve(w, r, h.notifications.Subscribe(claims.Email), notificationRetryMillis)
}

func (h *StreamHandler) serve(w http.ResponseWriter, r *http.Request, sub *stream.Subscription, retryMillis int) {
	defer sub.Close()

	rc := http.NewResponseController(w)
	// The server-wide write timeout would cut long-lived streams.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Warn("streaming unsupported", "topic", sub.Topic, "err", err)
		return
	}

	idle := time.NewTimer(h.idleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done():
			return
		case <-idle.C:
			slog.Debug("stream idle, closing", "topic", sub.Topic, "sub", sub.ID)
			return
		case ev := <-sub.C():
			if err := writeEvent(w, ev, retryMillis); err != nil {
				slog.Debug("stream write failed", "topic", sub.Topic, "err", err)
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
			idle.Reset(h.idleTimeout)
		}
	}
}

// writeEvent renders one SSE frame. Pings carry the reconnect hint and a
// bare "ok"; every other event carries a JSON payload.
func writeEvent(w io.Writer, ev stream.Event, retryMillis int) error {
	if ev.Name == stream.EventPing {
		_, err := fmt.Fprintf(w, "event: %s\nretry: %d\ndata: ok\n\n", ev.Name, retryMillis)
		return err
	}
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Name, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
	return err
}
