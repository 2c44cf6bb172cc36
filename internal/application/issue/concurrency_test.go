package issue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/civic-alerts/internal/application/notification"
	"github.com/civic-alerts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memIssueStore mirrors the DynamoDB repo: the status write only lands while
// the stored status still equals from.
type memIssueStore struct {
	mu    sync.Mutex
	issue domain.Issue
	// beforeWrite runs once, just before the first UpdateStatus evaluates its condition.
	beforeWrite func()
}

func (m *memIssueStore) Get(_ context.Context, issueID string) (*domain.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issue.IssueID != issueID {
		return nil, domain.ErrNotFound
	}
	cp := m.issue
	return &cp, nil
}

func (m *memIssueStore) UpdateStatus(_ context.Context, issueID string, from, to domain.IssueStatus, at time.Time) error {
	m.mu.Lock()
	hook := m.beforeWrite
	m.beforeWrite = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issue.IssueID != issueID {
		return domain.ErrNotFound
	}
	if m.issue.Status != from {
		return fmt.Errorf("status is %s: %w", m.issue.Status, domain.ErrConflict)
	}
	m.issue.Status = to
	m.issue.UpdatedAt = at
	return nil
}

type countingNotifier struct{ owner, followers atomic.Int32 }

func (c *countingNotifier) NotifyOwner(context.Context, *domain.Issue) notification.Outcome {
	c.owner.Add(1)
	return notification.Outcome{}
}
func (c *countingNotifier) NotifyFollowers(context.Context, *domain.Issue) []notification.Outcome {
	c.followers.Add(1)
	return nil
}
func (c *countingNotifier) NotifyVote(context.Context, *domain.Issue, string, int64, int64) *domain.Notification {
	return nil
}

type countingFeed struct{ status atomic.Int32 }

func (f *countingFeed) Comment(string, int64, domain.Comment) int { return 0 }
func (f *countingFeed) Vote(string, domain.VoteSummary) int       { return 0 }
func (f *countingFeed) Status(string, domain.IssueStatus, domain.IssueStatus) int {
	f.status.Add(1)
	return 0
}

func TestUpdateStatus_StaleReadCannotReopenResolvedIssue(t *testing.T) {
	store := &memIssueStore{issue: *openIssue()}
	n, f := &countingNotifier{}, &countingFeed{}
	svc := NewService(ServiceDeps{IssueRepo: store, Dispatcher: n, Feed: f})
	ctx := context.Background()

	// A validates OPEN -> IN_PROGRESS, then B and C finish the whole workflow
	// before A's write is evaluated.
	var errB, errC error
	store.beforeWrite = func() {
		_, errB = svc.UpdateStatus(ctx, "issue-42", domain.StatusInProgress, "b@example.com")
		_, errC = svc.UpdateStatus(ctx, "issue-42", domain.StatusResolved, "c@example.com")
	}
	_, errA := svc.UpdateStatus(ctx, "issue-42", domain.StatusInProgress, "a@example.com")

	require.NoError(t, errB)
	require.NoError(t, errC)
	assert.True(t, errors.Is(errA, domain.ErrInvalidTransition), "got %v", errA)

	final, err := store.Get(ctx, "issue-42")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, final.Status)
	assert.Equal(t, int32(2), n.followers.Load())
	assert.Equal(t, int32(2), f.status.Load())
}

func TestUpdateStatus_ConcurrentSameTransition_OneFanout(t *testing.T) {
	store := &memIssueStore{issue: *openIssue()}
	n, f := &countingNotifier{}, &countingFeed{}
	svc := NewService(ServiceDeps{IssueRepo: store, Dispatcher: n, Feed: f})

	const admins = 20
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, admins)
	for i := 0; i < admins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.UpdateStatus(context.Background(), "issue-42", domain.StatusInProgress, "admin@example.com")
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)
		}
	}
	final, _ := store.Get(context.Background(), "issue-42")
	assert.Equal(t, domain.StatusInProgress, final.Status)
	assert.Equal(t, int32(1), n.followers.Load())
	assert.Equal(t, int32(1), f.status.Load())
}
