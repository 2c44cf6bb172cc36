package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/civic-alerts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.C():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestSubscribe_QueuesPing(t *testing.T) {
	b := NewBroker("test", 4)
	sub := b.Subscribe("issue-42")
	defer sub.Close()

	ev := recv(t, sub)
	assert.Equal(t, EventPing, ev.Name)
	assert.Equal(t, 1, b.Subscribers("issue-42"))
}

func TestPublish_OnlyMatchingTopic(t *testing.T) {
	f := NewIssueFeed(4)
	a := f.Subscribe("issue-42")
	other := f.Subscribe("issue-43")
	recv(t, a)
	recv(t, other)

	n := f.Comment("issue-42", 5, domain.Comment{CommentID: "c1", Text: "same here"})
	assert.Equal(t, 1, n)

	ev := recv(t, a)
	assert.Equal(t, EventComment, ev.Name)
	payload := ev.Data.(CommentPosted)
	assert.Equal(t, "issue-42", payload.IssueID)
	assert.Equal(t, int64(5), payload.CommentsCount)
	assert.Equal(t, "c1", payload.Comment.CommentID)
	select {
	case ev := <-other.C():
		t.Fatalf("unexpected event on issue-43: %v", ev)
	default:
	}
}

func TestPublish_AfterUnsubscribe_DeliversZero(t *testing.T) {
	b := NewBroker("test", 4)
	sub := b.Subscribe("issue-42")
	sub.Close()
	sub.Close()

	assert.Equal(t, 0, b.Publish("issue-42", Event{Name: EventVote}))
	assert.Equal(t, 0, b.Topics())
	select {
	case <-sub.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestPublish_NoSubscribers(t *testing.T) {
	b := NewBroker("test", 4)
	assert.Equal(t, 0, b.Publish("nobody", Event{Name: EventVote}))
}

func TestPublish_PreservesOrder(t *testing.T) {
	b := NewBroker("test", 128)
	sub := b.Subscribe("k")
	recv(t, sub)

	for i := 0; i < 100; i++ {
		b.Publish("k", Event{Name: EventVote, Data: i})
	}
	for i := 0; i < 100; i++ {
		assert.Equal(t, i, recv(t, sub).Data)
	}
}

func TestPublish_FullBuffer_RemovesSubscriber(t *testing.T) {
	b := NewBroker("test", 2)
	slow := b.Subscribe("k") // ping occupies one slot
	fast := b.Subscribe("k")
	recv(t, fast)

	assert.Equal(t, 2, b.Publish("k", Event{Name: EventVote, Data: 1}))
	recv(t, fast)
	assert.Equal(t, 1, b.Publish("k", Event{Name: EventVote, Data: 2}))

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("slow subscriber not removed")
	}
	assert.Equal(t, 1, b.Subscribers("k"))
	assert.Equal(t, 2, recv(t, fast).Data)
}

func TestPublish_ConcurrentSubscribers(t *testing.T) {
	b := NewBroker("test", 8)
	const n = 50
	subs := make([]*Subscription, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			subs[i] = b.Subscribe("shared")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, b.Publish("shared", Event{Name: EventStatus}))
	for _, s := range subs {
		s.Close()
	}
	assert.Equal(t, 0, b.Topics())
}

func TestNotificationFeed_KeyedByLowercasedRecipient(t *testing.T) {
	f := NewNotificationFeed(4)
	sub := f.Subscribe("Me@Example.com")
	recv(t, sub)

	n := f.Push(&domain.Notification{NotificationID: "n1", Recipient: "me@example.com"})
	require.Equal(t, 1, n)
	ev := recv(t, sub)
	assert.Equal(t, EventNotification, ev.Name)
	assert.Equal(t, "n1", ev.Data.(*domain.Notification).NotificationID)
}

func TestIssueFeed_StatusEvent(t *testing.T) {
	f := NewIssueFeed(4)
	sub := f.Subscribe("issue-42")
	recv(t, sub)

	f.Status("issue-42", domain.StatusOpen, domain.StatusInProgress)
	ev := recv(t, sub)
	assert.Equal(t, EventStatus, ev.Name)
	assert.Equal(t, StatusChange{IssueID: "issue-42", From: domain.StatusOpen, Status: domain.StatusInProgress}, ev.Data)
}
