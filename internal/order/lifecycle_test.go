package order

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

var allStatuses = []models.OrderStatus{
	models.OrderPending, models.OrderAccepted, models.OrderRefused, models.OrderCompleted,
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]models.OrderStatus]bool{
		{models.OrderPending, models.OrderAccepted}:   true,
		{models.OrderPending, models.OrderRefused}:    true,
		{models.OrderAccepted, models.OrderCompleted}: true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[[2]models.OrderStatus{from, to}]
			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransition(t *testing.T) {
	got, err := Transition(models.OrderPending, models.OrderAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.OrderAccepted, got)

	got, err = Transition(models.OrderRefused, models.OrderAccepted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, models.OrderRefused, got)

	_, err = Transition(models.OrderPending, models.OrderCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(models.OrderPending))
	assert.False(t, IsTerminal(models.OrderAccepted))
	assert.True(t, IsTerminal(models.OrderRefused))
	assert.True(t, IsTerminal(models.OrderCompleted))
	assert.Nil(t, NextStatuses(models.OrderCompleted))
}

func TestActions(t *testing.T) {
	tests := []struct {
		status models.OrderStatus
		want   []Action
	}{
		{models.OrderPending, []Action{ActionAccept, ActionRefuse}},
		{models.OrderAccepted, []Action{ActionComplete}},
		{models.OrderRefused, nil},
		{models.OrderCompleted, nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, Actions(tt.status))
		})
	}
}

func TestActionTarget(t *testing.T) {
	s, ok := ActionComplete.Target()
	require.True(t, ok)
	assert.Equal(t, models.OrderCompleted, s)

	_, ok = Action("cancel").Target()
	assert.False(t, ok)
}
