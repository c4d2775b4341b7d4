package beacon_nav

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Supervisor owns the lifecycle of the single active task.
//
// It is driven by one caller invoking Tick at a steady cadence and is not
// safe for concurrent use. Cancel must be called from that same caller.
type Supervisor struct {
	drive  MotorDrive
	vision VisionSource
	clock  Clock
	logger *zap.Logger

	active    task
	runID     string
	startedMs int64
	last      *Outcome
}

// NewSupervisor constructs an idle supervisor. A nil logger discards logs.
func NewSupervisor(drive MotorDrive, vision VisionSource, clock Clock, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{drive: drive, vision: vision, clock: clock, logger: logger}
}

// State returns the running task's state, else how the last task ended,
// else StateIdle.
func (s *Supervisor) State() TaskState {
	if s.active != nil {
		return s.active.runningState()
	}
	if s.last != nil {
		return s.last.State
	}
	return StateIdle
}

// IsBusy reports whether a task is in progress.
func (s *Supervisor) IsBusy() bool {
	return s.State().IsBusy()
}

// LastOutcome returns how the most recent task ended, if any has.
func (s *Supervisor) LastOutcome() (Outcome, bool) {
	if s.last == nil {
		return Outcome{}, false
	}
	return *s.last, true
}

// RequestStart begins the task described by spec. It returns false and
// changes nothing while another task is in progress or when spec is nil.
func (s *Supervisor) RequestStart(spec TaskSpec) bool {
	if spec == nil {
		s.logger.Warn("start ignored, no task given")
		return false
	}
	if s.IsBusy() {
		s.logger.Debug("start ignored, supervisor busy",
			zap.String("run_id", s.runID),
			zap.Stringer("state", s.State()))
		return false
	}

	now := s.clock.NowMillis()
	t := spec.newTask(s, now)
	from := s.State()

	s.active = t
	s.runID = uuid.NewString()
	s.startedMs = now
	t.begin()

	s.logger.Info("task started",
		zap.String("run_id", s.runID),
		zap.String("task", string(t.kind())),
		zap.Stringer("from", from),
		zap.Stringer("to", t.runningState()),
		zap.Int64("t_ms", now))
	return true
}

// StartAlignToTarget starts a PD alignment run.
func (s *Supervisor) StartAlignToTarget(params AlignmentParams) bool {
	return s.RequestStart(params)
}

// StartTimedDrive starts a fixed-duration drive.
func (s *Supervisor) StartTimedDrive(params DriveParams) bool {
	return s.RequestStart(params)
}

// Tick polls the active task once and returns the resulting state.
func (s *Supervisor) Tick() TaskState {
	if s.active == nil {
		return s.State()
	}

	now := s.clock.NowMillis()
	next := s.active.poll(now)
	if next != s.active.runningState() {
		s.finish(next, now)
	}
	return s.State()
}

// Cancel stops the drive and marks the supervisor Cancelled. It is safe to
// call in any state; repeated calls only re-zero the motors.
func (s *Supervisor) Cancel() {
	stop(s.drive)
	if s.active == nil && s.last != nil && s.last.State == StateCancelled {
		return
	}
	s.finish(StateCancelled, s.clock.NowMillis())
}

// Telemetry returns the latest controller values for plotting.
func (s *Supervisor) Telemetry() Telemetry {
	if s.active != nil {
		tm := s.active.telemetry()
		tm.State = s.active.runningState()
		return tm
	}
	return Telemetry{State: s.State()}
}

// finish records the outcome of the active task (if any) and clears it.
func (s *Supervisor) finish(state TaskState, nowMs int64) {
	from := s.State()
	out := &Outcome{State: state, EndedMs: nowMs}
	if s.active != nil {
		out.RunID = s.runID
		out.Kind = s.active.kind()
		out.StartedMs = s.startedMs
		out.LeftColorHits, out.RightColorHits = s.active.colorHits()
	}
	s.active = nil
	s.last = out

	fields := []zap.Field{
		zap.String("run_id", out.RunID),
		zap.String("task", string(out.Kind)),
		zap.Stringer("from", from),
		zap.Stringer("to", state),
		zap.Int64("t_ms", nowMs),
	}
	if state == StateSucceeded {
		s.logger.Info("task finished", fields...)
		return
	}
	s.logger.Warn("task finished", fields...)
}
