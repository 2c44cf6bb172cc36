package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/civic-alerts/internal/domain"
	"github.com/civic-alerts/internal/pkg/id"
)

// Channel names an outbound delivery path.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
	ChannelWebhook Channel = "webhook"
)

// Recipient identifies who a notification is for. At least one of Email or
// Phone must be set; missing contact details are filled from the user record.
type Recipient struct {
	Name  string
	Email string
	Phone string
}

// Message is the content of one dispatch.
type Message struct {
	IssueID     *string
	Type        string
	Subject     string
	Text        string
	IssueTitle  string
	IssueStatus string
}

// Outcome reports what happened to each channel for one recipient.
// Webhook deliveries are asynchronous and only ever appear in Attempted.
type Outcome struct {
	RecordID    string    `json:"recordId,omitempty"`
	Attempted   []Channel `json:"attempted"`
	Succeeded   []Channel `json:"succeeded"`
	Skipped     []Channel `json:"skipped"`     // withheld by consent or verification state
	Unavailable []Channel `json:"unavailable"` // provider missing or disabled
}

type userReader interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
}

type recordStore interface {
	Put(ctx context.Context, n *domain.Notification) error
}

type recordPublisher interface {
	Push(n *domain.Notification) int
}

type mailer interface {
	SendEmail(to, subject, htmlBody string) error
}

type smsSender interface {
	Enabled() bool
	SendSMS(ctx context.Context, to, message string) error
}

type webhookPoster interface {
	Post(ctx context.Context, url string, body []byte) error
}

type webhookArchive interface {
	Archive(ctx context.Context, url string, body []byte, cause error) error
}

// DispatcherDeps wires the dispatcher. Mailer, SMS, Webhook, Archive and Feed may be nil.
type DispatcherDeps struct {
	Users          userReader
	Records        recordStore
	Feed           recordPublisher
	Mailer         mailer
	SMS            smsSender
	Webhook        webhookPoster
	Archive        webhookArchive
	WebhookTimeout time.Duration
}

// Dispatcher writes a durable record for every notification, pushes it to
// live subscribers and attempts each consented channel. Channel failures are
// logged and never returned.
type Dispatcher struct {
	users          userReader
	records        recordStore
	feed           recordPublisher
	mailer         mailer
	sms            smsSender
	webhook        webhookPoster
	archive        webhookArchive
	webhookTimeout time.Duration
	now            func() time.Time
	inflight       sync.WaitGroup
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	timeout := deps.WebhookTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		users:          deps.Users,
		records:        deps.Records,
		feed:           deps.Feed,
		mailer:         deps.Mailer,
		sms:            deps.SMS,
		webhook:        deps.Webhook,
		archive:        deps.Archive,
		webhookTimeout: timeout,
		now:            time.Now,
	}
}

type consent struct {
	email bool
	sms   bool
}

// resolve looks up the recipient's consent flags. SMS requires both consent
// and a verified phone; an unknown e-mail follower may still receive e-mail.
func (d *Dispatcher) resolve(ctx context.Context, r *Recipient) consent {
	var (
		u   *domain.User
		err error
	)
	switch {
	case r.Email != "":
		u, err = d.users.GetByEmail(ctx, r.Email)
	case r.Phone != "":
		u, err = d.users.GetByPhone(ctx, r.Phone)
	default:
		return consent{}
	}
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("consent lookup failed", "email", r.Email, "phone", r.Phone, "err", err)
		}
		return consent{email: r.Email != ""}
	}
	if r.Name == "" {
		r.Name = u.Name
	}
	if r.Email == "" {
		r.Email = u.Email
	}
	if r.Phone == "" && u.Phone != nil {
		r.Phone = *u.Phone
	}
	return consent{
		email: u.EmailConsent,
		sms:   u.SMSConsent && u.PhoneVerified,
	}
}

// target is a recipient whose contact details and consent have been resolved.
type target struct {
	r Recipient
	c consent
}

func (d *Dispatcher) prepare(ctx context.Context, r Recipient) target {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	c := d.resolve(ctx, &r)
	return target{r: r, c: c}
}

// Notify dispatches msg to a single recipient.
func (d *Dispatcher) Notify(ctx context.Context, r Recipient, msg Message) Outcome {
	return d.send(ctx, d.prepare(ctx, r), msg)
}

// send writes the record and attempts each channel. Cancellation of ctx is
// ignored once delivery starts.
func (d *Dispatcher) send(ctx context.Context, t target, msg Message) Outcome {
	ctx = context.WithoutCancel(ctx)
	r, c := t.r, t.c

	var out Outcome
	if rec := d.saveRecord(ctx, recordKey(r), msg); rec != nil {
		out.RecordID = rec.NotificationID
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	deliver := func(ch Channel, send func() error) {
		out.Attempted = append(out.Attempted, ch)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := send(); err != nil {
				slog.Warn("channel delivery failed", "channel", ch, "err", errors.Join(domain.ErrChannelUnavailable, err))
				return
			}
			mu.Lock()
			out.Succeeded = append(out.Succeeded, ch)
			mu.Unlock()
		}()
	}

	if r.Email != "" {
		switch {
		case !c.email:
			slog.Debug("skipping email, no consent", "to", r.Email)
			out.Skipped = append(out.Skipped, ChannelEmail)
		case d.mailer == nil:
			slog.Info("no mail sender configured, skipping email", "to", r.Email)
			out.Unavailable = append(out.Unavailable, ChannelEmail)
		default:
			to, subject := r.Email, msg.Subject
			body := BuildEmailBody(r.Name, msg.IssueTitle, msg.IssueStatus, msg.Text)
			deliver(ChannelEmail, func() error { return d.mailer.SendEmail(to, subject, body) })
		}
	}
	if r.Phone != "" {
		switch {
		case !c.sms:
			slog.Debug("skipping sms, no consent or phone not verified", "to", r.Phone)
			out.Skipped = append(out.Skipped, ChannelSMS)
		case d.sms == nil || !d.sms.Enabled():
			slog.Info("sms provider disabled, skipping sms", "to", r.Phone)
			out.Unavailable = append(out.Unavailable, ChannelSMS)
		default:
			to := r.Phone
			body := BuildSMSBody(r.Name, msg.IssueTitle, msg.IssueStatus, msg.Text)
			deliver(ChannelSMS, func() error { return d.sms.SendSMS(ctx, to, body) })
		}
	}
	wg.Wait()
	return out
}

// NotifyOwner tells the issue's creator about its current status.
func (d *Dispatcher) NotifyOwner(ctx context.Context, issue *domain.Issue) Outcome {
	if issue == nil || issue.CreatedBy == "" {
		return Outcome{}
	}
	status := string(issue.Status)
	return d.Notify(ctx, Recipient{Name: issue.CreatedByName, Email: issue.CreatedBy}, Message{
		IssueID:     &issue.IssueID,
		Type:        domain.NotificationIssueStatus,
		Subject:     "Issue Status Update",
		Text:        ownerStatusMessage(issue.Title, status),
		IssueTitle:  issue.Title,
		IssueStatus: status,
	})
}

type webhookPayload struct {
	IssueID string `json:"issueId"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NotifyFollowers fans a status update out to every follower e-mail, phone
// and webhook URL on the issue. The owner is skipped; NotifyOwner covers them.
// Followers are de-duplicated on the resolved record key, and a phone already
// texted in this fan-out is not texted again.
func (d *Dispatcher) NotifyFollowers(ctx context.Context, issue *domain.Issue) []Outcome {
	if issue == nil {
		return nil
	}
	status := string(issue.Status)
	msg := Message{
		IssueID:     &issue.IssueID,
		Type:        domain.NotificationIssueStatus,
		Subject:     "Issue Status Update",
		Text:        followerStatusMessage(issue.Title, status),
		IssueTitle:  issue.Title,
		IssueStatus: status,
	}
	var outcomes []Outcome
	seen := map[string]bool{}
	mark := func(r Recipient) {
		for _, k := range []string{r.Email, r.Phone} {
			if k != "" {
				seen[k] = true
			}
		}
	}
	if issue.CreatedBy != "" {
		mark(d.prepare(ctx, Recipient{Email: issue.CreatedBy}).r)
	}
	fanout := func(r Recipient) {
		t := d.prepare(ctx, r)
		key := recordKey(t.r)
		if key == "" || seen[key] {
			return
		}
		if t.r.Phone != "" && t.r.Phone != key && seen[t.r.Phone] {
			t.r.Phone = ""
		}
		mark(t.r)
		outcomes = append(outcomes, d.send(ctx, t, msg))
	}
	for _, em := range issue.FollowerEmails {
		em = strings.ToLower(strings.TrimSpace(em))
		if em != "" && !seen[em] {
			fanout(Recipient{Email: em})
		}
	}
	for _, ph := range issue.FollowerPhones {
		ph = strings.TrimSpace(ph)
		if ph != "" && !seen[ph] {
			fanout(Recipient{Phone: ph})
		}
	}
	if len(issue.FollowerWebhookURLs) > 0 {
		body, err := json.Marshal(webhookPayload{IssueID: issue.IssueID, Title: issue.Title, Status: status, Message: msg.Text})
		if err != nil {
			slog.Warn("marshal webhook payload", "issue_id", issue.IssueID, "err", err)
			return outcomes
		}
		for _, url := range issue.FollowerWebhookURLs {
			url = strings.TrimSpace(url)
			if url == "" {
				continue
			}
			out := Outcome{}
			if d.webhook == nil {
				out.Unavailable = []Channel{ChannelWebhook}
			} else {
				d.scheduleWebhook(ctx, url, body)
				out.Attempted = []Channel{ChannelWebhook}
			}
			outcomes = append(outcomes, out)
		}
	}
	return outcomes
}

// NotifyVote records an in-app vote notice for the owner. Self-votes are ignored.
func (d *Dispatcher) NotifyVote(ctx context.Context, issue *domain.Issue, voterEmail string, up, down int64) *domain.Notification {
	if issue == nil || issue.CreatedBy == "" || strings.EqualFold(issue.CreatedBy, voterEmail) {
		return nil
	}
	return d.saveRecord(ctx, strings.ToLower(issue.CreatedBy), Message{
		IssueID: &issue.IssueID,
		Type:    domain.NotificationIssueVote,
		Text:    voteMessage(issue.Title, up, down),
	})
}

// NotifyManual sends an operator-composed notification through every channel.
func (d *Dispatcher) NotifyManual(ctx context.Context, req domain.ManualNotificationRequest) Outcome {
	title, status, text := req.Title, req.Status, req.Message
	if title == "" {
		title = "Sample issue"
	}
	if status == "" {
		status = "Updated"
	}
	if text == "" {
		text = "Your reported issue has an update."
	}
	r := Recipient{Name: req.Name, Email: req.Email}
	if req.Phone != nil {
		r.Phone = *req.Phone
	}
	return d.Notify(ctx, r, Message{
		Type:        domain.NotificationManual,
		Subject:     "Update: " + title + " - " + status,
		Text:        text,
		IssueTitle:  title,
		IssueStatus: status,
	})
}

// ProviderStatus reports which outbound channels are configured.
func (d *Dispatcher) ProviderStatus() map[string]bool {
	return map[string]bool{
		"emailProvider":   d.mailer != nil,
		"smsProvider":     d.sms != nil && d.sms.Enabled(),
		"webhookProvider": d.webhook != nil,
		"webhookArchive":  d.archive != nil,
	}
}

// Drain waits for in-flight webhook deliveries or until ctx is done.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) scheduleWebhook(ctx context.Context, url string, body []byte) {
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.webhookTimeout)
		defer cancel()
		err := d.webhook.Post(wctx, url, body)
		if err == nil {
			slog.Debug("webhook delivered", "url", url)
			return
		}
		slog.Warn("webhook failed", "url", url, "err", err)
		if d.archive == nil {
			return
		}
		if aerr := d.archive.Archive(wctx, url, body, err); aerr != nil {
			slog.Warn("webhook archive failed", "url", url, "err", aerr)
		}
	}()
}

// saveRecord persists the in-app notification and pushes it to live
// subscribers. A failed write is logged and yields nil.
func (d *Dispatcher) saveRecord(ctx context.Context, recipient string, msg Message) *domain.Notification {
	if recipient == "" {
		return nil
	}
	now := d.now().UTC()
	n := &domain.Notification{
		NotificationID: id.NewAt(now),
		Recipient:      recipient,
		IssueID:        msg.IssueID,
		Type:           msg.Type,
		Message:        msg.Text,
		CreatedAt:      now,
	}
	if err := d.records.Put(ctx, n); err != nil {
		slog.Warn("save notification failed", "recipient", recipient, "type", msg.Type, "err", err)
		return nil
	}
	slog.Debug("notification saved", "recipient", recipient, "type", msg.Type, "id", n.NotificationID)
	if d.feed != nil {
		d.feed.Push(n)
	}
	return n
}

func recordKey(r Recipient) string {
	if r.Email != "" {
		return r.Email
	}
	return r.Phone
}
