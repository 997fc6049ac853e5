package orders

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

func TestCheckTransitionMatrix(t *testing.T) {
	type want int
	const (
		ok want = iota
		invalid
		forbidden
	)

	// expected outcome for every (from, to) pair, admin first then owner
	admin := map[edge]want{}
	owner := map[edge]want{}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			admin[edge{from, to}] = invalid
			owner[edge{from, to}] = invalid
		}
	}
	for _, e := range []edge{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusShipped},
		{StatusPending, StatusDelivered},
		{StatusPending, StatusCancelled},
		{StatusProcessing, StatusShipped},
		{StatusProcessing, StatusDelivered},
		{StatusProcessing, StatusCancelled},
		{StatusShipped, StatusDelivered},
	} {
		admin[e] = ok
		owner[e] = forbidden
	}
	owner[edge{StatusPending, StatusCancelled}] = ok
	owner[edge{StatusProcessing, StatusCancelled}] = ok

	check := func(t *testing.T, from, to Status, privileged bool, w want) {
		t.Helper()
		err := CheckTransition(from, to, privileged)
		switch w {
		case ok:
			assert.NoError(t, err, "%s -> %s (admin=%v)", from, to, privileged)
		case forbidden:
			assert.ErrorIs(t, err, ErrForbidden, "%s -> %s (admin=%v)", from, to, privileged)
		case invalid:
			var it *InvalidTransitionError
			assert.ErrorAs(t, err, &it, "%s -> %s (admin=%v)", from, to, privileged)
		}
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			check(t, from, to, true, admin[edge{from, to}])
			check(t, from, to, false, owner[edge{from, to}])
		}
	}
}

func TestCheckTransitionSameStateRejected(t *testing.T) {
	// double submission must surface, not no-op
	for _, s := range allStatuses {
		var it *InvalidTransitionError
		require.ErrorAs(t, CheckTransition(s, s, true), &it, "admin %s -> %s", s, s)
		require.Error(t, CheckTransition(s, s, false), "owner %s -> %s", s, s)
	}
}

func TestCheckTransitionTerminalStates(t *testing.T) {
	for _, from := range []Status{StatusDelivered, StatusCancelled} {
		require.True(t, Terminal(from))
		for _, to := range allStatuses {
			var it *InvalidTransitionError
			assert.ErrorAs(t, CheckTransition(from, to, true), &it, "%s -> %s", from, to)
		}
	}
	require.False(t, Terminal(StatusPending))
	require.False(t, Terminal(StatusProcessing))
	require.False(t, Terminal(StatusShipped))
}

func TestCheckTransitionUnknownStatus(t *testing.T) {
	var it *InvalidTransitionError
	require.ErrorAs(t, CheckTransition(StatusPending, Status("refunded"), true), &it)
	require.ErrorAs(t, CheckTransition(Status("archived"), StatusCancelled, true), &it)
	require.False(t, ValidStatus(Status("refunded")))
}

func TestForbiddenVsInvalidSplit(t *testing.T) {
	// an edge only an administrator may take is Forbidden for the owner,
	// while an edge nobody may take is InvalidTransition for both
	err := CheckTransition(StatusPending, StatusProcessing, false)
	require.ErrorIs(t, err, ErrForbidden)

	err = CheckTransition(StatusShipped, StatusCancelled, false)
	var it *InvalidTransitionError
	require.ErrorAs(t, err, &it)
	require.False(t, errors.Is(err, ErrForbidden))
}
