package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/civic-alerts/internal/application/notification"
	"github.com/civic-alerts/internal/transport/http/middleware"
)

// NotificationHandler serves the caller's notification inbox.
type NotificationHandler struct {
	svc notification.Service
}

func NewNotificationHandler(svc notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread_only"))
	list := h.svc.ListRecent
	if unreadOnly {
		list = h.svc.ListUnread
	}
	items, err := list(r.Context(), claims.Email)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, items)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	n, err := h.svc.CountUnread(r.Context(), claims.Email)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, CountEnvelope{Count: n})
}

// MarkRead accepts a JSON array of notification ids.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var ids []string
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		writeError(w, r, http.StatusBadRequest, "expected a JSON array of ids")
		return
	}
	n, err := h.svc.MarkRead(r.Context(), claims.Email, ids)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, CountEnvelope{Count: n})
}
