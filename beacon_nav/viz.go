package beacon_nav

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// VizConfig controls the optional expvar endpoint used for live plotting.
type VizConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr" validate:"required_if=Enabled true"`
}

// VizMetrics exposes live input, output and task values via expvar.
type VizMetrics struct {
	input  *expvar.Map
	output *expvar.Map
}

var (
	vizInput  = expvar.NewMap("input")
	vizOutput = expvar.NewMap("output")
)

// StartViz serves /debug/vars on cfg.Addr. It returns nil metrics and a nil
// server when disabled; every VizMetrics method is a no-op on a nil receiver.
func StartViz(cfg VizConfig, logger *zap.Logger) (*VizMetrics, *http.Server) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7070"
	}

	server := &http.Server{Addr: cfg.Addr, Handler: http.DefaultServeMux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("viz server error", zap.Error(err))
		}
	}()
	logger.Info("viz endpoint listening", zap.String("addr", cfg.Addr))

	return newVizMetrics(), server
}

// shutdownViz stops the endpoint started by StartViz, if any.
func shutdownViz(server *http.Server, logger *zap.Logger) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("viz server shutdown", zap.Error(err))
	}
}

func newVizMetrics() *VizMetrics {
	return &VizMetrics{input: vizInput, output: vizOutput}
}

// UpdateInput publishes the latest observation and smoothed confidence.
func (v *VizMetrics) UpdateInput(obs TargetObservation, meanConfidence float64) {
	if v == nil {
		return
	}
	setFloat(v.input, "center_x", obs.CenterX)
	setFloat(v.input, "width", obs.Width)
	setFloat(v.input, "height", obs.Height)
	setFloat(v.input, "confidence", obs.Confidence)
	setFloat(v.input, "confidence_mean", meanConfidence)
	setFloat(v.input, "found", boolFloat(obs.Found))
}

// UpdateOutput publishes the latest controller values and task state.
func (v *VizMetrics) UpdateOutput(tm Telemetry) {
	if v == nil {
		return
	}
	setFloat(v.output, "error", tm.Error)
	setFloat(v.output, "diff", tm.Diff)
	setFloat(v.output, "steering", tm.Steering)
	setFloat(v.output, "left", tm.Left)
	setFloat(v.output, "right", tm.Right)
	setFloat(v.output, "state", float64(tm.State))
}

// setFloat updates an expvar.Float stored inside a map.
func setFloat(m *expvar.Map, key string, value float64) {
	if v := m.Get(key); v != nil {
		if f, ok := v.(*expvar.Float); ok {
			f.Set(value)
			return
		}
	}
	f := new(expvar.Float)
	f.Set(value)
	m.Set(key, f)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
