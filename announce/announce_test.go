package announce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tummler-rov/autopilot-manager/detector"
)

func TestSettled(t *testing.T) {
	assert.True(t, settled("DETECTED"))
	assert.True(t, settled("NOT_FOUND"))
	assert.True(t, settled("BUS_ERROR"))
	assert.False(t, settled("IDLE"))
	assert.False(t, settled("SCANNING"))
	assert.False(t, settled("PROBING"))
	assert.False(t, settled("VALIDATING"))
}

func TestUpdateSkipsMidPassStates(t *testing.T) {
	a := New("test-instance", 8989)
	defer a.Stop()

	require.NoError(t, a.Update(detector.StatusInfo{State: "SCANNING"}))
	assert.Nil(t, a.server, "mid-pass states must not touch the network")
}
