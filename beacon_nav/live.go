package beacon_nav

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunLive starts the UDP-to-UDP control loop and runs the configured
// mission until it finishes or ctx is cancelled. Cancelling ctx stops the
// drive through Supervisor.Cancel before returning. Missions received on
// reloads replace the steps that have not started yet.
func RunLive(ctx context.Context, cfg AppConfig, logger *zap.Logger, reloads <-chan Mission) (TaskState, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Hz <= 0 {
		return StateIdle, fmt.Errorf("hz must be > 0")
	}
	if cfg.Live.UDPAddr == "" {
		return StateIdle, fmt.Errorf("live.udp_addr must be set")
	}

	store := &liveStore{}
	conn, err := startUDPListener(cfg.Live, store, logger)
	if err != nil {
		return StateIdle, err
	}
	defer func() {
		_ = conn.Close()
	}()

	drive, err := NewUDPMotorDrive(cfg.Output.UDPAddr, logger)
	if err != nil {
		return StateIdle, err
	}
	defer func() {
		_ = drive.Close()
	}()

	vision := newLiveVision(store, cfg.Vision)
	sup := NewSupervisor(drive, vision, NewSystemClock(), logger)
	drive.ReportState(sup.State)
	runner := NewMissionRunner(sup, cfg.Mission, logger)
	viz, vizServer := StartViz(cfg.Viz, logger)
	defer shutdownViz(vizServer, logger)

	period := max(time.Duration(float64(time.Second)/cfg.Hz), time.Millisecond)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	logger.Info("live loop started",
		zap.String("listen", cfg.Live.UDPAddr),
		zap.String("output", cfg.Output.UDPAddr),
		zap.Float64("hz", cfg.Hz),
		zap.Int("steps", len(cfg.Mission.Steps)))

	for {
		select {
		case <-ctx.Done():
			sup.Cancel()
			drive.Flush()
			logger.Info("live loop stopped", zap.Stringer("state", sup.State()))
			return sup.State(), nil
		case m, ok := <-reloads:
			if !ok {
				reloads = nil
				continue
			}
			runner.Reload(m)
			continue
		case <-ticker.C:
		}

		sup.Tick()
		runner.Step()
		drive.Flush()

		tm := sup.Telemetry()
		viz.UpdateInput(vision.Last(), vision.MeanConfidence())
		viz.UpdateOutput(tm)
		if ce := logger.Check(zap.DebugLevel, "tick"); ce != nil {
			obs := vision.Last()
			ce.Write(
				zap.Stringer("state", tm.State),
				zap.Bool("found", obs.Found),
				zap.Float64("conf", obs.Confidence),
				zap.Float64("cx", obs.CenterX),
				zap.Float64("err", tm.Error),
				zap.Float64("diff", tm.Diff),
				zap.Float64("steer", tm.Steering),
				zap.Float64("left", tm.Left),
				zap.Float64("right", tm.Right),
			)
		}

		if runner.Done() {
			return runner.Result(), nil
		}
	}
}

// LiveVision adapts the latest UDP observation to VisionSource. An
// observation is reported until it is older than the hold window, after
// which the target counts as not found.
type LiveVision struct {
	store  *liveStore
	frame  FrameGeometry
	hold   time.Duration
	window *ConfidenceWindow
	last   TargetObservation
	now    func() time.Time
}

func newLiveVision(store *liveStore, cfg VisionConfig) *LiveVision {
	return &LiveVision{
		store:  store,
		frame:  cfg.Frame(),
		hold:   time.Duration(cfg.HoldMs) * time.Millisecond,
		window: NewConfidenceWindow(cfg.ConfidenceWindow),
		now:    time.Now,
	}
}

func (lv *LiveVision) Poll() TargetObservation {
	obs, at := lv.store.Snapshot()
	if at.IsZero() || lv.now().Sub(at) > lv.hold {
		obs = TargetObservation{}
	}
	lv.last = obs
	lv.window.Add(obs.Confidence)
	return obs
}

func (lv *LiveVision) FrameSize() FrameGeometry {
	return lv.frame
}

// Last returns the observation returned by the latest Poll.
func (lv *LiveVision) Last() TargetObservation {
	return lv.last
}

// MeanConfidence returns the sliding mean over recent polls.
func (lv *LiveVision) MeanConfidence() float64 {
	return lv.window.Mean()
}

type liveStore struct {
	mu   sync.RWMutex
	last TargetObservation
	at   time.Time
}

// Update stores the latest observation with its arrival time.
func (s *liveStore) Update(obs TargetObservation, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = obs
	s.at = at
}

// Snapshot returns the most recent observation and when it arrived.
func (s *liveStore) Snapshot() (TargetObservation, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.at
}

// startUDPListener spawns a goroutine that listens for observation packets.
// The goroutine exits when the returned connection is closed.
func startUDPListener(cfg LiveConfig, store *liveStore, logger *zap.Logger) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.UDPAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve live addr %q: %w", cfg.UDPAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %q: %w", cfg.UDPAddr, err)
	}

	bufSize := cfg.ReadBuffer
	if bufSize <= 0 {
		bufSize = 2048
	}

	go func() {
		buf := make([]byte, bufSize)
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				continue
			}
			obs, err := parseLiveObservation(buf[:n])
			if err != nil {
				logger.Debug("dropping observation packet", zap.Error(err))
				continue
			}
			store.Update(obs, time.Now())
		}
	}()

	return conn, nil
}

// parseLiveObservation parses "[t,]found,conf,cx,width,height,left_a,right_a"
// CSV payloads. A leading timestamp field is accepted and ignored; the
// supervisor's clock is authoritative.
func parseLiveObservation(b []byte) (TargetObservation, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return TargetObservation{}, errors.New("empty payload")
	}

	parts := strings.Split(s, ",")
	if len(parts) != 7 && len(parts) != 8 {
		return TargetObservation{}, fmt.Errorf("expected 7 or 8 fields, got %d", len(parts))
	}
	if len(parts) == 8 {
		if _, err := parseF64(parts[0]); err != nil {
			return TargetObservation{}, fmt.Errorf("timestamp: %w", err)
		}
		parts = parts[1:]
	}

	var obs TargetObservation
	var err error
	if obs.Found, err = parseBoolLoose(parts[0]); err != nil {
		return TargetObservation{}, fmt.Errorf("found: %w", err)
	}
	if obs.Confidence, err = parseF64(parts[1]); err != nil {
		return TargetObservation{}, fmt.Errorf("confidence: %w", err)
	}
	if obs.CenterX, err = parseF64(parts[2]); err != nil {
		return TargetObservation{}, fmt.Errorf("center_x: %w", err)
	}
	if obs.Width, err = parseF64(parts[3]); err != nil {
		return TargetObservation{}, fmt.Errorf("width: %w", err)
	}
	if obs.Height, err = parseF64(parts[4]); err != nil {
		return TargetObservation{}, fmt.Errorf("height: %w", err)
	}
	if obs.LeftIsMarkerColor, err = parseBoolLoose(parts[5]); err != nil {
		return TargetObservation{}, fmt.Errorf("left_a: %w", err)
	}
	if obs.RightIsMarkerColor, err = parseBoolLoose(parts[6]); err != nil {
		return TargetObservation{}, fmt.Errorf("right_a: %w", err)
	}
	return obs, nil
}

// parseF64 parses a float from a CSV field.
func parseF64(value string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}

// parseBoolLoose parses booleans from common telemetry encodings.
func parseBoolLoose(value string) (bool, error) {
	norm := strings.ToLower(strings.TrimSpace(value))
	switch norm {
	case "1", "true", "yes", "y", "t":
		return true, nil
	case "0", "false", "no", "n", "f":
		return false, nil
	default:
		f, err := strconv.ParseFloat(norm, 64)
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
}
