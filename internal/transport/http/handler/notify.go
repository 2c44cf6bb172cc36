package handler

import (
	"context"
	"net/http"

	"github.com/civic-alerts/internal/application/notification"
	"github.com/civic-alerts/internal/domain"
)

type manualNotifier interface {
	NotifyManual(ctx context.Context, req domain.ManualNotificationRequest) notification.Outcome
	ProviderStatus() map[string]bool
}

// NotifyHandler exposes operator tools for the notification channels.
type NotifyHandler struct {
	dispatcher manualNotifier
}

func NewNotifyHandler(d manualNotifier) *NotifyHandler { return &NotifyHandler{dispatcher: d} }

func (h *NotifyHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req domain.ManualNotificationRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if req.Email == "" && (req.Phone == nil || *req.Phone == "") {
		writeError(w, r, http.StatusBadRequest, "email or phone required")
		return
	}
	writeJSON(w, r, http.StatusOK, h.dispatcher.NotifyManual(r.Context(), req))
}

func (h *NotifyHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.dispatcher.ProviderStatus())
}
