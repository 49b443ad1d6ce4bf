package monitor

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/turtacn/Optibench/pkg/consts"
)

func TestMetricsInitialization(t *testing.T) {
	addr := "127.0.0.1:0" // Random port
	InitMetrics(addr)
	// Second call must not panic on duplicate registration
	InitMetrics("")

	RPCCalls.WithLabelValues("stage_connect", "ok").Inc()
	RPCDuration.WithLabelValues("stage_connect").Observe(0.5)

	time.Sleep(100 * time.Millisecond)
}

func TestSetStageState(t *testing.T) {
	SetStageState("zaxis", consts.StateConnected)

	if v := testutil.ToFloat64(StageState.WithLabelValues("zaxis", string(consts.StateConnected))); v != 1 {
		t.Errorf("Expected CONNECTED gauge 1, got %v", v)
	}
	if v := testutil.ToFloat64(StageState.WithLabelValues("zaxis", string(consts.StateFailed))); v != 0 {
		t.Errorf("Expected FAILED gauge 0, got %v", v)
	}

	SetStageState("zaxis", consts.StateDisconnected)
	if v := testutil.ToFloat64(StageState.WithLabelValues("zaxis", string(consts.StateConnected))); v != 0 {
		t.Errorf("Expected CONNECTED gauge 0 after disconnect, got %v", v)
	}
}

func TestDisplayUploadsCounter(t *testing.T) {
	before := testutil.ToFloat64(DisplayUploads.WithLabelValues("simulated", "ok"))
	DisplayUploads.WithLabelValues("simulated", "ok").Inc()
	after := testutil.ToFloat64(DisplayUploads.WithLabelValues("simulated", "ok"))
	if after != before+1 {
		t.Errorf("Expected counter to increase by 1, got %v -> %v", before, after)
	}
}
