package notification

import (
	"fmt"
	"html"
	"strings"
)

const smsMaxLen = 320

// BuildEmailBody renders the HTML body shared by every notification e-mail.
func BuildEmailBody(userName, issueTitle, issueStatus, shortMessage string) string {
	if userName == "" {
		userName = "User"
	}
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(userName))
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(shortMessage))
	if issueTitle != "" {
		fmt.Fprintf(&b, "<p><strong>Issue:</strong> %s</p>", html.EscapeString(issueTitle))
	}
	if issueStatus != "" {
		fmt.Fprintf(&b, "<p><strong>Status:</strong> %s</p>", html.EscapeString(issueStatus))
	}
	b.WriteString("<p>Thanks,<br/>Civic Alerts Team</p>")
	b.WriteString("</body></html>")
	return b.String()
}

// BuildSMSBody renders a compact text message capped at two SMS segments.
func BuildSMSBody(userName, issueTitle, issueStatus, shortMessage string) string {
	if userName == "" {
		userName = "User"
	}
	if issueTitle == "" {
		issueTitle = "issue"
	}
	if issueStatus == "" {
		issueStatus = "updated"
	}
	body := fmt.Sprintf("%s: %s - %s. %s", userName, issueTitle, issueStatus, shortMessage)
	return truncate(strings.TrimSpace(body), smsMaxLen)
}

func ownerStatusMessage(title, status string) string {
	return fmt.Sprintf("Your issue '%s' is now %s.", truncate(title, 40), status)
}

func followerStatusMessage(title, status string) string {
	return fmt.Sprintf("Update: Issue '%s' is now %s.", truncate(title, 40), status)
}

func voteMessage(title string, up, down int64) string {
	return fmt.Sprintf("Your issue '%s' received a vote. Up:%d Down:%d", truncate(title, 40), up, down)
}

// truncate cuts s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
