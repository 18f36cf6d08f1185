package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateAlert(t *testing.T) {
	tests := []struct {
		name                     string
		storm, enabled, state    bool
		wantNotify, wantNewState bool
	}{
		{name: "new storm alerts", storm: true, enabled: true, state: false, wantNotify: true, wantNewState: true},
		{name: "storm already alerted", storm: true, enabled: true, state: true, wantNotify: false, wantNewState: true},
		{name: "storm over clears state", storm: false, enabled: true, state: true, wantNotify: false, wantNewState: false},
		{name: "calm stays clear", storm: false, enabled: true, state: false, wantNotify: false, wantNewState: false},
		{name: "disabled storm tracks episode", storm: true, enabled: false, state: false, wantNotify: false, wantNewState: true},
		{name: "disabled storm keeps state", storm: true, enabled: false, state: true, wantNotify: false, wantNewState: true},
		{name: "disabled calm clears", storm: false, enabled: false, state: true, wantNotify: false, wantNewState: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			notify, state := EvaluateAlert(tc.storm, tc.enabled, tc.state)
			assert.Equal(t, tc.wantNotify, notify)
			assert.Equal(t, tc.wantNewState, state)
		})
	}
}

func TestEvaluateAlert_OneNotificationPerEpisode(t *testing.T) {
	run := func(storms []bool, enabled []bool) int {
		state, sent := false, 0
		for i, storm := range storms {
			var notify bool
			notify, state = EvaluateAlert(storm, enabled[i], state)
			if notify {
				sent++
			}
		}
		return sent
	}

	allOn := func(n int) []bool {
		out := make([]bool, n)
		for i := range out {
			out[i] = true
		}
		return out
	}

	storms := []bool{true, true, true, true, true}
	assert.Equal(t, 1, run(storms, allOn(5)))

	storms = []bool{true, true, false, true, true}
	assert.Equal(t, 2, run(storms, allOn(5)), "a cleared episode can alert again")

	// Alerts re-enabled in the middle of an episode must not fire.
	storms = []bool{true, true, true, false, true}
	enabled := []bool{false, false, true, true, true}
	assert.Equal(t, 1, run(storms, enabled))
}

func TestStormNotification(t *testing.T) {
	n := StormNotification()
	assert.Equal(t, 0, n.ID)
	assert.Equal(t, "Storm Alert", n.Title)
	assert.Equal(t, "A storm might be approaching", n.Body)
	assert.Equal(t, PriorityHigh, n.Priority)
}
