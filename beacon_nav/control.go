package beacon_nav

import "math"

// AlignmentParams bundles the PD gains and limits for one alignment run.
type AlignmentParams struct {
	Kp            float64 `mapstructure:"kp" yaml:"kp"`
	Kd            float64 `mapstructure:"kd" yaml:"kd"`
	MaxDurationMs int64   `mapstructure:"max_duration_ms" yaml:"max_duration_ms" validate:"gt=0"`
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence" validate:"gte=0,lte=1"`
	CloseEnoughPx float64 `mapstructure:"close_enough_px" yaml:"close_enough_px" validate:"gte=0"`
}

// AlignStep is the result of one controller update.
type AlignStep struct {
	State    TaskState
	Steer    bool // Command must be written to the drive
	Command  SteeringCommand
	Error    float64
	Diff     float64
	Steering float64
}

// AlignController steers toward the target with PD feedback on the
// horizontal offset between target center and frame center.
type AlignController struct {
	params  AlignmentParams
	startMs int64

	prevError       float64
	prevTimestampMs int64
	hasPrior        bool
	leftColorHits   int
	rightColorHits  int
}

// NewAlignController constructs a controller whose run started at startMs.
func NewAlignController(params AlignmentParams, startMs int64) *AlignController {
	return &AlignController{params: params, startMs: startMs}
}

// Params returns the gains the controller was started with.
func (ac *AlignController) Params() AlignmentParams {
	return ac.params
}

// ColorHits returns how many accepted polls saw marker color on each half.
func (ac *AlignController) ColorHits() (left, right int) {
	return ac.leftColorHits, ac.rightColorHits
}

// Step ingests one observation taken at nowMs and returns the next command.
func (ac *AlignController) Step(obs TargetObservation, frame FrameGeometry, nowMs int64) AlignStep {
	if !obs.Found || obs.Confidence < ac.params.MinConfidence {
		// Lost target: hold still and keep the derivative baseline untouched.
		step := AlignStep{State: StateAligningToTarget, Steer: true}
		return ac.checkTimeout(step, nowMs)
	}

	errX := frame.Width/2 - obs.CenterX
	if ac.closeEnough(obs, frame) {
		return AlignStep{State: StateSucceeded, Error: errX}
	}

	step := AlignStep{State: StateAligningToTarget, Error: errX}
	if ac.hasPrior {
		var diff float64
		if dt := nowMs - ac.prevTimestampMs; dt > 0 {
			diff = (errX - ac.prevError) / float64(dt)
		}
		steering := ac.params.Kp*errX + ac.params.Kd*diff
		step.Diff = diff
		step.Steering = steering
		step.Command = steeringCommand(steering)
		step.Steer = true
	} else {
		ac.hasPrior = true
	}
	ac.prevError = errX
	ac.prevTimestampMs = nowMs

	if obs.LeftIsMarkerColor {
		ac.leftColorHits++
	}
	if obs.RightIsMarkerColor {
		ac.rightColorHits++
	}

	return ac.checkTimeout(step, nowMs)
}

// closeEnough reports whether the target fills the frame within the threshold.
func (ac *AlignController) closeEnough(obs TargetObservation, frame FrameGeometry) bool {
	return frame.Width-obs.Width <= ac.params.CloseEnoughPx ||
		frame.Height-obs.Height <= ac.params.CloseEnoughPx
}

// checkTimeout fails the run once the deadline has passed.
func (ac *AlignController) checkTimeout(step AlignStep, nowMs int64) AlignStep {
	if nowMs-ac.startMs >= ac.params.MaxDurationMs {
		step.State = StateFailedTimeout
		step.Steer = true
		step.Command = SteeringCommand{}
	}
	return step
}

// steeringCommand brakes the side toward which the robot must turn.
// Positive steering brakes the right side, negative brakes the left.
func steeringCommand(steering float64) SteeringCommand {
	if math.IsNaN(steering) {
		steering = 0
	}
	return SteeringCommand{
		Left:  clamp(1+math.Min(steering, 0), 0, 1),
		Right: clamp(1-math.Max(steering, 0), 0, 1),
	}
}

// clamp keeps value inside [lo, hi].
func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
