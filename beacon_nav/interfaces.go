package beacon_nav

import (
	"fmt"
	"strings"
)

// TargetObservation is a single vision reading in frame pixel coordinates.
//
// Conventions:
//   - CenterX in [0, frame width], with 0 at the left edge of the frame.
//   - Width and Height are the target's bounding box; larger implies closer.
//   - LeftIsMarkerColor / RightIsMarkerColor report whether each half of the
//     target shows marker color A (red).
type TargetObservation struct {
	Found              bool
	Confidence         float64
	CenterX            float64
	Width              float64
	Height             float64
	LeftIsMarkerColor  bool
	RightIsMarkerColor bool
}

// FrameGeometry is the current camera frame size.
type FrameGeometry struct {
	Width  float64
	Height float64
}

// SteeringCommand is the differential power pair written to the drive.
type SteeringCommand struct {
	Left  float64 // [0, 1]
	Right float64 // [0, 1]
}

// VisionSource produces one observation per poll.
type VisionSource interface {
	Poll() TargetObservation
	FrameSize() FrameGeometry
}

// MotorDrive accepts normalized side powers. Both setters are idempotent and
// take effect immediately.
type MotorDrive interface {
	SetLeftPower(power float64)
	SetRightPower(power float64)
}

// Clock is a monotonic millisecond time source.
type Clock interface {
	NowMillis() int64
}

// TaskState is the supervisor-owned lifecycle state.
type TaskState int

const (
	StateIdle TaskState = iota
	StateAligningToTarget
	StateTimedDriving
	StateSucceeded
	StateFailedTechnical
	StateFailedTimeout
	StateCancelled
)

var taskStateNames = map[TaskState]string{
	StateIdle:             "IDLE",
	StateAligningToTarget: "ALIGNING_TO_TARGET",
	StateTimedDriving:     "TIMED_DRIVING",
	StateSucceeded:        "SUCCEEDED",
	StateFailedTechnical:  "FAILED_TECHNICAL",
	StateFailedTimeout:    "FAILED_TIMEOUT",
	StateCancelled:        "CANCELLED",
}

func (s TaskState) String() string {
	if name, ok := taskStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TaskState(%d)", int(s))
}

// busySet holds the states that block a new task from starting.
var busySet = map[TaskState]struct{}{
	StateAligningToTarget: {},
	StateTimedDriving:     {},
}

// IsBusy reports whether s is an in-progress state.
func (s TaskState) IsBusy() bool {
	_, ok := busySet[s]
	return ok
}

// IsTerminal reports whether s records how the last task ended.
func (s TaskState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailedTechnical, StateFailedTimeout, StateCancelled:
		return true
	}
	return false
}

// ParseTaskState converts a state name into a TaskState.
func ParseTaskState(value string) (TaskState, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for state, name := range taskStateNames {
		if name == normalized {
			return state, nil
		}
	}
	return StateIdle, fmt.Errorf("unknown task state %q", value)
}

// TaskKind names the task variants the supervisor can run.
type TaskKind string

const (
	TaskAlign     TaskKind = "align"
	TaskTimeDrive TaskKind = "drive"
)

// Outcome records how the most recent task ended.
type Outcome struct {
	RunID          string
	Kind           TaskKind
	State          TaskState
	StartedMs      int64
	EndedMs        int64
	LeftColorHits  int
	RightColorHits int
}

// Telemetry is the latest controller output, exposed for plotting.
type Telemetry struct {
	State    TaskState
	Error    float64
	Diff     float64
	Steering float64
	Left     float64
	Right    float64
}
