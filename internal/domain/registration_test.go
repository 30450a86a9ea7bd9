package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationStatus_CanAdvanceTo(t *testing.T) {
	tests := []struct {
		from RegistrationStatus
		to   RegistrationStatus
		want bool
	}{
		{RegistrationPaymentPending, RegistrationPaymentComplete, true},
		{RegistrationPaymentComplete, RegistrationCareTeamAssigned, true},
		{RegistrationPaymentPending, RegistrationFullyRegistered, true},
		{RegistrationCareTeamAssigned, RegistrationPaymentComplete, false},
		{RegistrationFullyRegistered, RegistrationCareTeamAssigned, false},
		{RegistrationPaymentComplete, RegistrationPaymentComplete, false},
		{"", RegistrationPaymentComplete, true},
		{RegistrationPaymentPending, "archived", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanAdvanceTo(tt.to))
		})
	}
}

func TestRegistrationStatus_Predecessors(t *testing.T) {
	assert.Nil(t, RegistrationPaymentPending.Predecessors())
	assert.Equal(t,
		[]RegistrationStatus{RegistrationPaymentPending, RegistrationPaymentComplete},
		RegistrationCareTeamAssigned.Predecessors())
	assert.Len(t, RegistrationFullyRegistered.Predecessors(), 3)
}

func TestParseRegistrationStatus(t *testing.T) {
	s, err := ParseRegistrationStatus("care_team_assigned")
	require.NoError(t, err)
	assert.Equal(t, RegistrationCareTeamAssigned, s)

	_, err = ParseRegistrationStatus("onboarded")
	assert.ErrorIs(t, err, ErrValidation)
}
