package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookingStatus(t *testing.T) {
	st, err := ParseBookingStatus("no-show")
	require.NoError(t, err)
	assert.Equal(t, BookingStatusNoShow, st)

	_, err = ParseBookingStatus("pending")
	assert.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusCompleted, true},
		{BookingStatusConfirmed, BookingStatusNoShow, true},
		{BookingStatusConfirmed, BookingStatusConfirmed, false},
		{BookingStatusCancelled, BookingStatusConfirmed, false},
		{BookingStatusCompleted, BookingStatusConfirmed, false},
		{BookingStatusNoShow, BookingStatusCancelled, false},
		{BookingStatusCompleted, BookingStatusCancelled, false},
		{BookingStatus("pending"), BookingStatusCancelled, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCompensatesOnlyOnCancel(t *testing.T) {
	assert.True(t, BookingStatusCancelled.Compensates())
	assert.False(t, BookingStatusCompleted.Compensates())
	assert.False(t, BookingStatusNoShow.Compensates())
	assert.False(t, BookingStatusConfirmed.Compensates())

	assert.False(t, BookingStatusConfirmed.IsTerminal())
	assert.True(t, BookingStatusNoShow.IsTerminal())
}

func TestBookingDetailsEmpty(t *testing.T) {
	assert.True(t, BookingDetails{}.Empty())
	notes := "bring a mat"
	assert.False(t, BookingDetails{Notes: &notes}.Empty())
}
