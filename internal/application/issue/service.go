package issue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/civic-alerts/internal/application/notification"
	"github.com/civic-alerts/internal/domain"
)

type Service interface {
	UpdateStatus(ctx context.Context, issueID string, requested domain.IssueStatus, actor string) (*domain.Issue, error)
	PublishComment(ctx context.Context, issueID string, c domain.Comment, commentsCount int64) int
	RecordVote(ctx context.Context, issueID, voterEmail string, votes domain.VoteSummary) (int, error)
}

type issueStore interface {
	Get(ctx context.Context, issueID string) (*domain.Issue, error)
	UpdateStatus(ctx context.Context, issueID string, from, to domain.IssueStatus, updatedAt time.Time) error
}

type notifier interface {
	NotifyOwner(ctx context.Context, issue *domain.Issue) notification.Outcome
	NotifyFollowers(ctx context.Context, issue *domain.Issue) []notification.Outcome
	NotifyVote(ctx context.Context, issue *domain.Issue, voterEmail string, up, down int64) *domain.Notification
}

type issueFeed interface {
	Comment(issueID string, commentsCount int64, c domain.Comment) int
	Vote(issueID string, v domain.VoteSummary) int
	Status(issueID string, from, to domain.IssueStatus) int
}

type service struct {
	repo     issueStore
	notifier notifier
	feed     issueFeed
	now      func() time.Time
}

type ServiceDeps struct {
	IssueRepo  issueStore
	Dispatcher notifier
	Feed       issueFeed
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:     deps.IssueRepo,
		notifier: deps.Dispatcher,
		feed:     deps.Feed,
		now:      time.Now,
	}
}

// maxStatusAttempts bounds re-reads when another request changes the status
// between our read and our conditional write.
const maxStatusAttempts = 3

// UpdateStatus applies an admin status request. An unchanged status only
// nudges the owner; a real transition is persisted, fanned out to the owner
// and every follower, and published on the issue's live feed. The write is
// conditioned on the status the transition was validated against, so a
// stale read can never overwrite a newer status.
func (s *service) UpdateStatus(ctx context.Context, issueID string, requested domain.IssueStatus, actor string) (*domain.Issue, error) {
	for attempt := 1; ; attempt++ {
		issue, err := s.repo.Get(ctx, issueID)
		if err != nil {
			return nil, err
		}
		outcome, err := Transition(issue.Status, requested)
		if err != nil {
			slog.Info("status change rejected", "issue_id", issueID, "from", issue.Status, "to", requested, "actor", actor)
			return nil, err
		}

		if !outcome.Changed {
			s.notifier.NotifyOwner(ctx, issue)
			return issue, nil
		}

		now := s.now().UTC()
		err = s.repo.UpdateStatus(ctx, issueID, outcome.From, outcome.To, now)
		if errors.Is(err, domain.ErrConflict) {
			if attempt < maxStatusAttempts {
				slog.Debug("issue status moved underneath, re-reading", "issue_id", issueID, "attempt", attempt)
				continue
			}
			return nil, fmt.Errorf("issue %s changed concurrently: %w", issueID, domain.ErrConflict)
		}
		if err != nil {
			return nil, fmt.Errorf("update issue status: %w", err)
		}
		issue.Status = outcome.To
		issue.UpdatedAt = now
		slog.Info("issue status changed", "issue_id", issueID, "from", outcome.From, "to", outcome.To, "actor", actor)

		s.notifier.NotifyOwner(ctx, issue)
		s.notifier.NotifyFollowers(ctx, issue)
		s.feed.Status(issueID, outcome.From, outcome.To)
		return issue, nil
	}
}

func (s *service) PublishComment(_ context.Context, issueID string, c domain.Comment, commentsCount int64) int {
	return s.feed.Comment(issueID, commentsCount, c)
}

// RecordVote broadcasts the new tally and leaves an in-app notice for the owner.
func (s *service) RecordVote(ctx context.Context, issueID, voterEmail string, votes domain.VoteSummary) (int, error) {
	issue, err := s.repo.Get(ctx, issueID)
	if err != nil {
		return 0, err
	}
	votes.IssueID = issueID
	delivered := s.feed.Vote(issueID, votes)
	s.notifier.NotifyVote(ctx, issue, voterEmail, votes.UpVotes, votes.DownVotes)
	return delivered, nil
}
