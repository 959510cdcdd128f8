// Package order holds the order status state machine shared by the backend
// and the storefront client.
package order

import (
	"errors"
	"fmt"

	"storefront/internal/models"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:  {models.OrderAccepted, models.OrderRefused},
	models.OrderAccepted: {models.OrderCompleted},
}

// NextStatuses lists the statuses reachable from s. Terminal states return nil.
func NextStatuses(s models.OrderStatus) []models.OrderStatus {
	next := transitions[s]
	if len(next) == 0 {
		return nil
	}
	out := make([]models.OrderStatus, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s models.OrderStatus) bool {
	return len(transitions[s]) == 0
}

// Transition validates from → to and returns the new status.
func Transition(from, to models.OrderStatus) (models.OrderStatus, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}

// Action is a merchant-facing verb that drives a transition.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionRefuse   Action = "refuse"
	ActionComplete Action = "complete"
)

var actionTargets = map[Action]models.OrderStatus{
	ActionAccept:   models.OrderAccepted,
	ActionRefuse:   models.OrderRefused,
	ActionComplete: models.OrderCompleted,
}

// Target returns the status an action moves an order to.
func (a Action) Target() (models.OrderStatus, bool) {
	s, ok := actionTargets[a]
	return s, ok
}

// Actions lists the actions to offer for an order in status s.
func Actions(s models.OrderStatus) []Action {
	var actions []Action
	for _, a := range []Action{ActionAccept, ActionRefuse, ActionComplete} {
		if CanTransition(s, actionTargets[a]) {
			actions = append(actions, a)
		}
	}
	return actions
}
