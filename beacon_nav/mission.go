package beacon_nav

import (
	"fmt"

	"go.uber.org/zap"
)

// MissionStep is one task in a mission. Exactly one of Align or Drive is
// used, selected by Kind.
type MissionStep struct {
	Name  string           `mapstructure:"name" yaml:"name,omitempty"`
	Kind  TaskKind         `mapstructure:"kind" yaml:"kind" validate:"required,oneof=align drive"`
	Align *AlignmentParams `mapstructure:"align" yaml:"align,omitempty" validate:"required_if=Kind align"`
	Drive *DriveParams     `mapstructure:"drive" yaml:"drive,omitempty" validate:"required_if=Kind drive"`
}

// Spec returns the TaskSpec the step starts.
func (ms MissionStep) Spec() (TaskSpec, error) {
	switch ms.Kind {
	case TaskAlign:
		if ms.Align == nil {
			return nil, fmt.Errorf("step %q: align params missing", ms.Name)
		}
		return *ms.Align, nil
	case TaskTimeDrive:
		if ms.Drive == nil {
			return nil, fmt.Errorf("step %q: drive params missing", ms.Name)
		}
		return *ms.Drive, nil
	default:
		return nil, fmt.Errorf("step %q: unknown kind %q", ms.Name, ms.Kind)
	}
}

// Mission is an ordered list of steps run one after another.
type Mission struct {
	Alliance Alliance      `mapstructure:"alliance" yaml:"alliance,omitempty" validate:"omitempty,oneof=RED BLUE"`
	Steps    []MissionStep `mapstructure:"steps" yaml:"steps" validate:"dive"`
}

// MissionRunner feeds mission steps to a Supervisor. Step is called once per
// loop iteration, after Supervisor.Tick.
type MissionRunner struct {
	sup     *Supervisor
	mission Mission
	logger  *zap.Logger

	next    int
	done    bool
	result  TaskState
	press   Side
	decided bool
}

// NewMissionRunner prepares a runner; nothing starts until the first Step.
func NewMissionRunner(sup *Supervisor, mission Mission, logger *zap.Logger) *MissionRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MissionRunner{sup: sup, mission: mission, logger: logger, result: StateIdle}
}

// Step advances the mission when the supervisor is free.
func (m *MissionRunner) Step() {
	if m.done || m.sup.IsBusy() {
		return
	}

	if m.next > 0 {
		state := m.sup.State()
		if state != StateSucceeded {
			m.stop(state)
			return
		}
		m.afterStep(m.mission.Steps[m.next-1])
	}

	if m.next >= len(m.mission.Steps) {
		if m.next == 0 {
			m.stop(StateIdle)
			return
		}
		m.stop(StateSucceeded)
		return
	}

	step := m.mission.Steps[m.next]
	spec, err := step.Spec()
	if err != nil {
		m.logger.Error("mission step invalid", zap.Int("step", m.next), zap.Error(err))
		m.stop(StateFailedTechnical)
		return
	}
	if !m.sup.RequestStart(spec) {
		return
	}
	m.logger.Info("mission step started",
		zap.Int("step", m.next),
		zap.String("name", step.Name),
		zap.String("kind", string(step.Kind)))
	m.next++
}

// Reload swaps in the not-yet-started steps of next. Steps that already
// ran, or are running, keep their parameters.
func (m *MissionRunner) Reload(next Mission) {
	if m.done {
		return
	}
	if len(next.Steps) < m.next {
		m.logger.Warn("mission reload ignored, fewer steps than already started",
			zap.Int("started", m.next),
			zap.Int("steps", len(next.Steps)))
		return
	}
	steps := make([]MissionStep, 0, len(next.Steps))
	steps = append(steps, m.mission.Steps[:m.next]...)
	steps = append(steps, next.Steps[m.next:]...)
	m.mission = Mission{Alliance: next.Alliance, Steps: steps}
	m.logger.Info("mission reloaded", zap.Int("started", m.next), zap.Int("steps", len(steps)))
}

// afterStep runs the marker decision once an alignment step succeeds.
func (m *MissionRunner) afterStep(step MissionStep) {
	if step.Kind != TaskAlign || m.mission.Alliance == "" {
		return
	}
	out, ok := m.sup.LastOutcome()
	if !ok {
		return
	}
	side, ok := DecidePress(m.mission.Alliance, out)
	m.press, m.decided = side, ok
	m.logger.Info("marker decision",
		zap.String("alliance", string(m.mission.Alliance)),
		zap.Int("left_hits", out.LeftColorHits),
		zap.Int("right_hits", out.RightColorHits),
		zap.String("side", string(side)),
		zap.Bool("decided", ok))
}

func (m *MissionRunner) stop(state TaskState) {
	m.done = true
	m.result = state
	m.logger.Info("mission finished", zap.Stringer("result", state), zap.Int("steps_started", m.next))
}

// Done reports whether the mission has finished or aborted.
func (m *MissionRunner) Done() bool {
	return m.done
}

// Result is StateSucceeded when every step succeeded, the failing step's
// state when one did not, and StateIdle for an empty mission.
func (m *MissionRunner) Result() TaskState {
	return m.result
}

// Press returns the most recent marker decision.
func (m *MissionRunner) Press() (Side, bool) {
	return m.press, m.decided
}
