package issue

import (
	"errors"
	"testing"

	"github.com/civic-alerts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_Table(t *testing.T) {
	cases := []struct {
		from, to domain.IssueStatus
		ok       bool
		changed  bool
	}{
		{domain.StatusOpen, domain.StatusInProgress, true, true},
		{domain.StatusInProgress, domain.StatusResolved, true, true},
		{domain.StatusOpen, domain.StatusOpen, true, false},
		{domain.StatusInProgress, domain.StatusInProgress, true, false},
		{domain.StatusResolved, domain.StatusResolved, true, false},
		{domain.StatusOpen, domain.StatusResolved, false, false},
		{domain.StatusInProgress, domain.StatusOpen, false, false},
		{domain.StatusResolved, domain.StatusOpen, false, false},
		{domain.StatusResolved, domain.StatusInProgress, false, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			out, err := Transition(tc.from, tc.to)
			if !tc.ok {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
				var te *domain.TransitionError
				require.True(t, errors.As(err, &te))
				assert.Equal(t, tc.from, te.From)
				assert.Equal(t, tc.to, te.To)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.changed, out.Changed)
		})
	}
}

func TestParseIssueStatus_LegacySpellings(t *testing.T) {
	cases := map[string]domain.IssueStatus{
		"pending":     domain.StatusOpen,
		"OPEN":        domain.StatusOpen,
		"in-progress": domain.StatusInProgress,
		"In Progress": domain.StatusInProgress,
		"IN_PROGRESS": domain.StatusInProgress,
		"resolved":    domain.StatusResolved,
	}
	for in, want := range cases {
		got, err := domain.ParseIssueStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := domain.ParseIssueStatus("closed")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}
