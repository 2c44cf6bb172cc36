package issue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civic-alerts/internal/application/notification"
	"github.com/civic-alerts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockIssueStore struct{ mock.Mock }

func (m *mockIssueStore) Get(ctx context.Context, issueID string) (*domain.Issue, error) {
	args := m.Called(ctx, issueID)
	if i, _ := args.Get(0).(*domain.Issue); i != nil {
		return i, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockIssueStore) UpdateStatus(ctx context.Context, issueID string, from, to domain.IssueStatus, updatedAt time.Time) error {
	return m.Called(ctx, issueID, from, to, updatedAt).Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) NotifyOwner(ctx context.Context, issue *domain.Issue) notification.Outcome {
	m.Called(ctx, issue)
	return notification.Outcome{}
}
func (m *mockNotifier) NotifyFollowers(ctx context.Context, issue *domain.Issue) []notification.Outcome {
	m.Called(ctx, issue)
	return nil
}
func (m *mockNotifier) NotifyVote(ctx context.Context, issue *domain.Issue, voterEmail string, up, down int64) *domain.Notification {
	m.Called(ctx, issue, voterEmail, up, down)
	return nil
}

type mockFeed struct{ mock.Mock }

func (m *mockFeed) Comment(issueID string, commentsCount int64, c domain.Comment) int {
	return m.Called(issueID, commentsCount, c).Int(0)
}
func (m *mockFeed) Vote(issueID string, v domain.VoteSummary) int {
	return m.Called(issueID, v).Int(0)
}
func (m *mockFeed) Status(issueID string, from, to domain.IssueStatus) int {
	return m.Called(issueID, from, to).Int(0)
}

// --- helpers ---

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(repo *mockIssueStore, n *mockNotifier, f *mockFeed) Service {
	svc := NewService(ServiceDeps{IssueRepo: repo, Dispatcher: n, Feed: f}).(*service)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func openIssue() *domain.Issue {
	return &domain.Issue{IssueID: "issue-42", Title: "Pothole", Status: domain.StatusOpen, CreatedBy: "owner@example.com"}
}

// --- UpdateStatus ---

func TestUpdateStatus_Forward_PersistsNotifiesPublishes(t *testing.T) {
	repo, n, f := &mockIssueStore{}, &mockNotifier{}, &mockFeed{}
	repo.On("Get", mock.Anything, "issue-42").Return(openIssue(), nil)
	repo.On("UpdateStatus", mock.Anything, "issue-42", domain.StatusOpen, domain.StatusInProgress, fixedNow).Return(nil)
	n.On("NotifyOwner", mock.Anything, mock.MatchedBy(func(i *domain.Issue) bool { return i.Status == domain.StatusInProgress })).Once()
	n.On("NotifyFollowers", mock.Anything, mock.Anything).Once()
	f.On("Status", "issue-42", domain.StatusOpen, domain.StatusInProgress).Return(2)

	got, err := newService(repo, n, f).UpdateStatus(context.Background(), "issue-42", domain.StatusInProgress, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	assert.Equal(t, fixedNow, got.UpdatedAt)
	repo.AssertExpectations(t)
	n.AssertExpectations(t)
	f.AssertExpectations(t)
}

func TestUpdateStatus_Unchanged_OwnerOnly(t *testing.T) {
	repo, n, f := &mockIssueStore{}, &mockNotifier{}, &mockFeed{}
	repo.On("Get", mock.Anything, "issue-42").Return(openIssue(), nil)
	n.On("NotifyOwner", mock.Anything, mock.Anything).Once()

	got, err := newService(repo, n, f).UpdateStatus(context.Background(), "issue-42", domain.StatusOpen, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, got.Status)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	n.AssertNotCalled(t, "NotifyFollowers", mock.Anything, mock.Anything)
	f.AssertNotCalled(t, "Status", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_Backward_Rejected(t *testing.T) {
	repo, n, f := &mockIssueStore{}, &mockNotifier{}, &mockFeed{}
	resolved := openIssue()
	resolved.Status = domain.StatusResolved
	repo.On("Get", mock.Anything, "issue-42").Return(resolved, nil)

	_, err := newService(repo, n, f).UpdateStatus(context.Background(), "issue-42", domain.StatusOpen, "admin@example.com")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	var te *domain.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, domain.StatusResolved, te.From)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	n.AssertNotCalled(t, "NotifyOwner", mock.Anything, mock.Anything)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	repo := &mockIssueStore{}
	repo.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

	_, err := newService(repo, &mockNotifier{}, &mockFeed{}).UpdateStatus(context.Background(), "missing", domain.StatusResolved, "a")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUpdateStatus_PersistFails_NoNotification(t *testing.T) {
	repo, n, f := &mockIssueStore{}, &mockNotifier{}, &mockFeed{}
	repo.On("Get", mock.Anything, "issue-42").Return(openIssue(), nil)
	repo.On("UpdateStatus", mock.Anything, "issue-42", domain.StatusOpen, domain.StatusInProgress, fixedNow).Return(errors.New("dynamo down"))

	_, err := newService(repo, n, f).UpdateStatus(context.Background(), "issue-42", domain.StatusInProgress, "a")
	assert.Error(t, err)
	n.AssertNotCalled(t, "NotifyOwner", mock.Anything, mock.Anything)
	f.AssertNotCalled(t, "Status", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_ConflictThenRereadSucceeds(t *testing.T) {
	repo, n, f := &mockIssueStore{}, &mockNotifier{}, &mockFeed{}
	repo.On("Get", mock.Anything, "issue-42").Return(openIssue(), nil).Once()
	repo.On("UpdateStatus", mock.Anything, "issue-42", domain.StatusOpen, domain.StatusInProgress, fixedNow).Return(domain.ErrConflict).Once()
	// Someone else already moved it to IN_PROGRESS: the retry sees an unchanged status.
	inProgress := openIssue()
	inProgress.Status = domain.StatusInProgress
	repo.On("Get", mock.Anything, "issue-42").Return(inProgress, nil).Once()
	n.On("NotifyOwner", mock.Anything, mock.Anything).Once()

	got, err := newService(repo, n, f).UpdateStatus(context.Background(), "issue-42", domain.StatusInProgress, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	n.AssertNotCalled(t, "NotifyFollowers", mock.Anything, mock.Anything)
	f.AssertNotCalled(t, "Status", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_ConflictsExhausted_ReturnsConflict(t *testing.T) {
	repo, n, f := &mockIssueStore{}, &mockNotifier{}, &mockFeed{}
	repo.On("Get", mock.Anything, "issue-42").Return(openIssue(), nil)
	repo.On("UpdateStatus", mock.Anything, "issue-42", domain.StatusOpen, domain.StatusInProgress, fixedNow).Return(domain.ErrConflict)

	_, err := newService(repo, n, f).UpdateStatus(context.Background(), "issue-42", domain.StatusInProgress, "a")
	assert.True(t, errors.Is(err, domain.ErrConflict))
	repo.AssertNumberOfCalls(t, "UpdateStatus", maxStatusAttempts)
	n.AssertNotCalled(t, "NotifyOwner", mock.Anything, mock.Anything)
}

// --- live events ---

func TestPublishComment_ForwardsToFeed(t *testing.T) {
	f := &mockFeed{}
	c := domain.Comment{CommentID: "c1", UserName: "Asha", Text: "+1"}
	f.On("Comment", "issue-42", int64(7), c).Return(3)

	assert.Equal(t, 3, newService(&mockIssueStore{}, &mockNotifier{}, f).PublishComment(context.Background(), "issue-42", c, 7))
}

func TestRecordVote_BroadcastsAndNotifiesOwner(t *testing.T) {
	repo, n, f := &mockIssueStore{}, &mockNotifier{}, &mockFeed{}
	repo.On("Get", mock.Anything, "issue-42").Return(openIssue(), nil)
	f.On("Vote", "issue-42", domain.VoteSummary{IssueID: "issue-42", UpVotes: 4, DownVotes: 1}).Return(1)
	n.On("NotifyVote", mock.Anything, mock.Anything, "voter@example.com", int64(4), int64(1)).Once()

	delivered, err := newService(repo, n, f).RecordVote(context.Background(), "issue-42", "voter@example.com", domain.VoteSummary{UpVotes: 4, DownVotes: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	n.AssertExpectations(t)
}
