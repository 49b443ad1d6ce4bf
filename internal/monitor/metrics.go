package monitor

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/turtacn/Optibench/pkg/consts"
	"github.com/turtacn/Optibench/pkg/logger"
)

var (
	// RPCCalls counts dispatched remote calls, partitioned by method and outcome
	// ("ok", "failed", "rejected", "panic").
	RPCCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optibench_rpc_calls_total",
		Help: "Total number of remote calls dispatched",
	}, []string{"method", "outcome"})
	// RPCDuration tracks how long each remote call blocked its caller, in seconds.
	RPCDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "optibench_rpc_duration_seconds",
		Help:    "Time spent serving a remote call",
		Buckets: []float64{.001, .01, .1, .5, 1, 5, 15, 60, 120},
	}, []string{"method"})
	// StageState is 1 for the current connection state of each stage and 0 for the others.
	StageState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "optibench_stage_state",
		Help: "Connection state of each stage",
	}, []string{"stage", "state"})
	// DisplayUploads counts frame uploads by display mode and outcome.
	DisplayUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optibench_display_uploads_total",
		Help: "Total number of frames uploaded to the display",
	}, []string{"mode", "outcome"})

	registerOnce sync.Once
)

// SetStageState marks state as the current state of stage.
func SetStageState(stage string, state consts.ConnectionState) {
	for _, s := range consts.AllConnectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		StageState.WithLabelValues(stage, string(s)).Set(v)
	}
}

// InitMetrics registers Prometheus metrics and, when addr is non-empty, starts
// an HTTP server exposing them on addr (e.g. "127.0.0.1:9090").
func InitMetrics(addr string) {
	registerOnce.Do(func() {
		prometheus.MustRegister(RPCCalls, RPCDuration, StageState, DisplayUploads)
	})
	if addr == "" {
		return
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Log.Info("Metrics server starting", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Log.Error("Metrics server failed", "err", err)
		}
	}()
}

// Personal.AI order the ending
