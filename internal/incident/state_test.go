package incident

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetk3436/markops/internal/models"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from   models.IncidentStatus
		action Action
		to     models.IncidentStatus
		ok     bool
	}{
		{models.IncidentOngoing, ActionAcknowledge, models.IncidentAcknowledged, true},
		{models.IncidentOngoing, ActionResolve, models.IncidentResolved, true},
		{models.IncidentAcknowledged, ActionResolve, models.IncidentResolved, true},
		{models.IncidentResolved, ActionReopen, models.IncidentOngoing, true},
		{models.IncidentAcknowledged, ActionAcknowledge, "", false},
		{models.IncidentResolved, ActionAcknowledge, "", false},
		{models.IncidentResolved, ActionResolve, "", false},
		{models.IncidentOngoing, ActionReopen, "", false},
		{models.IncidentAcknowledged, ActionReopen, "", false},
	}
	for _, tt := range tests {
		to, ok := Next(tt.from, tt.action)
		assert.Equal(t, tt.ok, ok, "%s + %s", tt.from, tt.action)
		assert.Equal(t, tt.to, to, "%s + %s", tt.from, tt.action)
	}
}

func TestAllowed(t *testing.T) {
	assert.Equal(t, []Action{ActionAcknowledge, ActionResolve}, Allowed(models.IncidentOngoing))
	assert.Equal(t, []Action{ActionResolve}, Allowed(models.IncidentAcknowledged))
	assert.Equal(t, []Action{ActionReopen}, Allowed(models.IncidentResolved))
}

func TestApply_ReopenClearsActors(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	inc := &models.Incident{Status: models.IncidentOngoing}

	_, err := Apply(inc, ActionAcknowledge, "Sanne", "", now)
	require.NoError(t, err)
	_, err = Apply(inc, ActionResolve, "Sanne", "", now.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, inc.AcknowledgedAt)
	require.NotNil(t, inc.ResolvedAt)

	ev, err := Apply(inc, ActionReopen, "Pieter", "flapping again", now.Add(2*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, models.IncidentOngoing, inc.Status)
	assert.Nil(t, inc.AcknowledgedAt)
	assert.Empty(t, inc.AcknowledgedBy)
	assert.Nil(t, inc.ResolvedAt)
	assert.Empty(t, inc.ResolvedBy)
	assert.Equal(t, models.EventReopened, ev.Type)
	assert.Equal(t, "Pieter", ev.Actor)
	assert.Equal(t, "flapping again", ev.Message)
}

func TestApply_IllegalLeavesIncidentUntouched(t *testing.T) {
	inc := &models.Incident{Status: models.IncidentResolved, ResolvedBy: "Systeem"}

	_, err := Apply(inc, ActionAcknowledge, "Sanne", "", time.Now())

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.IncidentResolved, inc.Status)
	assert.Nil(t, inc.AcknowledgedAt)
}
