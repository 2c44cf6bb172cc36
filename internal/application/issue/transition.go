package issue

import "github.com/civic-alerts/internal/domain"

// validTransitions is the forward-only status graph. RESOLVED is terminal.
var validTransitions = map[domain.IssueStatus][]domain.IssueStatus{
	domain.StatusOpen:       {domain.StatusInProgress},
	domain.StatusInProgress: {domain.StatusResolved},
	domain.StatusResolved:   {},
}

// Outcome describes an accepted status request.
// Changed is false when the requested status equals the current one.
type Outcome struct {
	From    domain.IssueStatus
	To      domain.IssueStatus
	Changed bool
}

// Transition validates moving an issue from one status to another.
// It has no side effects; callers persist and notify.
func Transition(from, to domain.IssueStatus) (Outcome, error) {
	if from == to {
		return Outcome{From: from, To: to}, nil
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return Outcome{From: from, To: to, Changed: true}, nil
		}
	}
	return Outcome{}, &domain.TransitionError{From: from, To: to}
}
