// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"sync"
	"testing"
	"time"
)

var activityEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestActivityMonitorStartsFocused(t *testing.T) {
	monitor := NewActivityMonitor(activityEpoch)
	lastActivity, focused := monitor.Snapshot()
	if !focused {
		t.Error("new monitor is not focused")
	}
	if !lastActivity.Equal(activityEpoch) {
		t.Errorf("lastActivity = %v, want %v", lastActivity, activityEpoch)
	}
}

func TestActivityMonitorFocusRefreshesActivity(t *testing.T) {
	monitor := NewActivityMonitor(activityEpoch)
	monitor.Blur()

	later := activityEpoch.Add(10 * time.Minute)
	monitor.Focus(later)

	lastActivity, focused := monitor.Snapshot()
	if !focused {
		t.Error("focus did not set the flag")
	}
	if !lastActivity.Equal(later) {
		t.Errorf("lastActivity = %v, want %v", lastActivity, later)
	}
}

func TestActivityMonitorBlurKeepsActivity(t *testing.T) {
	monitor := NewActivityMonitor(activityEpoch)
	monitor.Blur()

	lastActivity, focused := monitor.Snapshot()
	if focused {
		t.Error("blur did not clear the flag")
	}
	if !lastActivity.Equal(activityEpoch) {
		t.Errorf("blur moved lastActivity to %v", lastActivity)
	}
}

func TestActivityMonitorVisibilityMirrorsFocus(t *testing.T) {
	monitor := NewActivityMonitor(activityEpoch)

	monitor.Hidden()
	if _, focused := monitor.Snapshot(); focused {
		t.Error("hidden did not clear the flag")
	}

	later := activityEpoch.Add(time.Minute)
	monitor.Visible(later)
	lastActivity, focused := monitor.Snapshot()
	if !focused {
		t.Error("visible did not set the flag")
	}
	if !lastActivity.Equal(later) {
		t.Errorf("visible did not refresh lastActivity: %v", lastActivity)
	}
}

func TestActivityMonitorInputKeepsFocusFlag(t *testing.T) {
	monitor := NewActivityMonitor(activityEpoch)
	monitor.Blur()

	later := activityEpoch.Add(time.Minute)
	monitor.Input(later)

	lastActivity, focused := monitor.Snapshot()
	if focused {
		t.Error("input set the focus flag")
	}
	if !lastActivity.Equal(later) {
		t.Errorf("input did not refresh lastActivity: %v", lastActivity)
	}
}

func TestActivityMonitorConcurrentEvents(t *testing.T) {
	// Event sources fire from independent goroutines with no
	// coordination. Run under -race.
	monitor := NewActivityMonitor(activityEpoch)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			at := activityEpoch.Add(time.Duration(offset) * time.Second)
			for j := 0; j < 100; j++ {
				monitor.Input(at)
				monitor.Blur()
				monitor.Focus(at)
				monitor.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	if _, focused := monitor.Snapshot(); !focused {
		t.Error("final Focus lost")
	}
}
