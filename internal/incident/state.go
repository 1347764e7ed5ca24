// Package incident owns the incident state machine and the manager that
// opens, resolves and transitions incidents.
package incident

import (
	"errors"
	"fmt"
	"time"

	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/storage"
)

var (
	ErrInvalidTransition = errors.New("invalid incident transition")
	// ErrOpenIncidentExists is returned when reopening would create a second
	// open incident for the same URL.
	ErrOpenIncidentExists = storage.ErrOpenIncidentExists
)

type Action string

const (
	ActionAcknowledge Action = "acknowledge"
	ActionResolve     Action = "resolve"
	ActionReopen      Action = "reopen"
)

type edge struct {
	from   models.IncidentStatus
	action Action
}

var transitions = map[edge]models.IncidentStatus{
	{models.IncidentOngoing, ActionAcknowledge}:  models.IncidentAcknowledged,
	{models.IncidentOngoing, ActionResolve}:      models.IncidentResolved,
	{models.IncidentAcknowledged, ActionResolve}: models.IncidentResolved,
	{models.IncidentResolved, ActionReopen}:      models.IncidentOngoing,
}

// Next returns the status reached by applying a in state from.
func Next(from models.IncidentStatus, a Action) (models.IncidentStatus, bool) {
	to, ok := transitions[edge{from, a}]
	return to, ok
}

// Allowed lists the actions legal in state from.
func Allowed(from models.IncidentStatus) []Action {
	var out []Action
	for _, a := range []Action{ActionAcknowledge, ActionResolve, ActionReopen} {
		if _, ok := Next(from, a); ok {
			out = append(out, a)
		}
	}
	return out
}

func eventType(a Action) models.IncidentEventType {
	switch a {
	case ActionAcknowledge:
		return models.EventAcknowledged
	case ActionResolve:
		return models.EventResolved
	default:
		return models.EventReopened
	}
}

// Apply moves inc through a and returns the audit event to append. inc is
// left untouched when the transition is illegal.
func Apply(inc *models.Incident, a Action, actor, message string, now time.Time) (models.IncidentEvent, error) {
	to, ok := Next(inc.Status, a)
	if !ok {
		return models.IncidentEvent{}, fmt.Errorf("%w: cannot %s a %s incident", ErrInvalidTransition, a, inc.Status)
	}

	switch a {
	case ActionAcknowledge:
		inc.AcknowledgedAt = &now
		inc.AcknowledgedBy = actor
	case ActionResolve:
		inc.ResolvedAt = &now
		inc.ResolvedBy = actor
	case ActionReopen:
		inc.AcknowledgedAt = nil
		inc.AcknowledgedBy = ""
		inc.ResolvedAt = nil
		inc.ResolvedBy = ""
	}
	inc.Status = to

	return models.IncidentEvent{
		IncidentID: inc.ID,
		Type:       eventType(a),
		Message:    message,
		Actor:      actor,
		CreatedAt:  now,
	}, nil
}
