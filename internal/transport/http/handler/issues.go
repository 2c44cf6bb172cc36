package handler

import (
	"net/http"
	"time"

	"github.com/civic-alerts/internal/application/issue"
	"github.com/civic-alerts/internal/domain"
	"github.com/civic-alerts/internal/pkg/id"
	"github.com/civic-alerts/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// IssueHandler handles admin status changes and issue activity hooks.
type IssueHandler struct {
	svc issue.Service
}

func NewIssueHandler(svc issue.Service) *IssueHandler { return &IssueHandler{svc: svc} }

func (h *IssueHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.UpdateStatusRequest
	if !decodeValid(w, r, &req) {
		return
	}
	status, err := domain.ParseIssueStatus(req.Status)
	if err != nil {
		httpError(w, r, err)
		return
	}
	updated, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status, claims.Email)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// PublishComment relays a stored comment to live viewers of the issue.
func (h *IssueHandler) PublishComment(w http.ResponseWriter, r *http.Request) {
	var req domain.CommentEvent
	if !decodeValid(w, r, &req) {
		return
	}
	c := domain.Comment{
		CommentID: req.CommentID,
		UserName:  req.UserName,
		Text:      req.Text,
		CreatedAt: req.CreatedAt,
	}
	if c.CommentID == "" {
		c.CommentID = id.New()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	n := h.svc.PublishComment(r.Context(), chi.URLParam(r, "id"), c, req.CommentsCount)
	writeJSON(w, r, http.StatusAccepted, map[string]int{"delivered": n})
}

// RecordVote relays a new vote tally and notifies the issue owner.
func (h *IssueHandler) RecordVote(w http.ResponseWriter, r *http.Request) {
	var req domain.VoteEvent
	if !decodeValid(w, r, &req) {
		return
	}
	n, err := h.svc.RecordVote(r.Context(), chi.URLParam(r, "id"), req.VoterEmail, domain.VoteSummary{
		UpVotes:   req.UpVotes,
		DownVotes: req.DownVotes,
	})
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, map[string]int{"delivered": n})
}
