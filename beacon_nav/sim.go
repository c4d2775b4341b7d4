package beacon_nav

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// SimConfig describes the simulated robot, camera and target.
//
// World frame: x to the right, y forward from the start pose, metres. The
// robot starts at the origin facing +y. The camera image x axis grows toward
// the robot's left.
type SimConfig struct {
	StepMs              int64   `mapstructure:"step_ms" yaml:"step_ms" validate:"gt=0"`
	MaxMs               int64   `mapstructure:"max_ms" yaml:"max_ms" validate:"gtfield=StepMs"`
	TargetX             float64 `mapstructure:"target_x" yaml:"target_x"`
	TargetY             float64 `mapstructure:"target_y" yaml:"target_y"`
	TargetWidth         float64 `mapstructure:"target_width" yaml:"target_width" validate:"gt=0"`
	FocalPx             float64 `mapstructure:"focal_px" yaml:"focal_px" validate:"gt=0"`
	MaxSpeed            float64 `mapstructure:"max_speed" yaml:"max_speed" validate:"gt=0"`
	TrackWidth          float64 `mapstructure:"track_width" yaml:"track_width" validate:"gt=0"`
	FOVConfidenceMargin float64 `mapstructure:"fov_confidence_margin" yaml:"fov_confidence_margin" validate:"gte=0,lt=0.5"`
	LeftMarkerRed       bool    `mapstructure:"left_marker_red" yaml:"left_marker_red"`
}

// DefaultSim returns a target two metres ahead, slightly to the right.
func DefaultSim() SimConfig {
	return SimConfig{
		StepMs:              20,
		MaxMs:               20000,
		TargetX:             0.3,
		TargetY:             2.0,
		TargetWidth:         0.3,
		FocalPx:             600,
		MaxSpeed:            0.5,
		TrackWidth:          0.35,
		FOVConfidenceMargin: 0.1,
		LeftMarkerRed:       true,
	}
}

// SimRobot is a differential-drive robot with a forward camera. It
// implements both MotorDrive and VisionSource.
type SimRobot struct {
	cfg   SimConfig
	frame FrameGeometry

	x, y, heading float64
	left, right   float64
}

// NewSimRobot places the robot at the origin facing +y.
func NewSimRobot(cfg SimConfig, frame FrameGeometry) *SimRobot {
	return &SimRobot{cfg: cfg, frame: frame, heading: math.Pi / 2}
}

func (r *SimRobot) SetLeftPower(power float64)  { r.left = clamp(power, -1, 1) }
func (r *SimRobot) SetRightPower(power float64) { r.right = clamp(power, -1, 1) }

// Powers returns the commanded left and right power.
func (r *SimRobot) Powers() (left, right float64) {
	return r.left, r.right
}

// Pose returns position in metres and heading in radians.
func (r *SimRobot) Pose() (x, y, heading float64) {
	return r.x, r.y, r.heading
}

// Advance integrates the unicycle model over dtMs.
func (r *SimRobot) Advance(dtMs int64) {
	dt := float64(dtMs) / 1000
	vl := r.left * r.cfg.MaxSpeed
	vr := r.right * r.cfg.MaxSpeed
	v := (vl + vr) / 2
	omega := (vr - vl) / r.cfg.TrackWidth

	r.heading += omega * dt
	r.x += v * math.Cos(r.heading) * dt
	r.y += v * math.Sin(r.heading) * dt
}

func (r *SimRobot) FrameSize() FrameGeometry {
	return r.frame
}

// Poll projects the target into the camera frame.
func (r *SimRobot) Poll() TargetObservation {
	dx := r.cfg.TargetX - r.x
	dy := r.cfg.TargetY - r.y
	cos, sin := math.Cos(r.heading), math.Sin(r.heading)
	forward := dx*cos + dy*sin
	lateral := -dx*sin + dy*cos // positive to the robot's left

	if forward <= 0.05 {
		return TargetObservation{}
	}

	cx := r.frame.Width/2 + r.cfg.FocalPx*lateral/forward
	if cx < 0 || cx > r.frame.Width {
		return TargetObservation{}
	}
	size := r.cfg.FocalPx * r.cfg.TargetWidth / forward

	conf := 1.0
	if margin := r.cfg.FOVConfidenceMargin * r.frame.Width; margin > 0 {
		conf = clamp(math.Min(cx, r.frame.Width-cx)/margin, 0, 1)
	}

	return TargetObservation{
		Found:              true,
		Confidence:         conf,
		CenterX:            cx,
		Width:              math.Min(size, r.frame.Width),
		Height:             math.Min(size, r.frame.Height),
		LeftIsMarkerColor:  r.cfg.LeftMarkerRed,
		RightIsMarkerColor: !r.cfg.LeftMarkerRed,
	}
}

// SimResult summarizes a simulated mission.
type SimResult struct {
	State     TaskState
	ElapsedMs int64
	X, Y      float64
	Heading   float64
	Press     Side
	Decided   bool
}

// RunSim runs the configured mission against a SimRobot in simulated time.
func RunSim(cfg AppConfig, logger *zap.Logger) (SimResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := cfg.Sim
	if sc.StepMs <= 0 {
		return SimResult{}, fmt.Errorf("sim.step_ms must be > 0")
	}

	clock := &ManualClock{}
	robot := NewSimRobot(sc, cfg.Vision.Frame())
	sup := NewSupervisor(robot, robot, clock, logger)
	runner := NewMissionRunner(sup, cfg.Mission, logger)
	window := NewConfidenceWindow(cfg.Vision.ConfidenceWindow)

	for clock.NowMillis() <= sc.MaxMs {
		sup.Tick()
		runner.Step()
		if runner.Done() {
			break
		}

		if ce := logger.Check(zap.DebugLevel, "sim tick"); ce != nil {
			tm := sup.Telemetry()
			obs := robot.Poll()
			ce.Write(
				zap.Int64("t_ms", clock.NowMillis()),
				zap.Stringer("state", tm.State),
				zap.Float64("cx", obs.CenterX),
				zap.Float64("conf_mean", window.Add(obs.Confidence)),
				zap.Float64("steer", tm.Steering),
				zap.Float64("left", tm.Left),
				zap.Float64("right", tm.Right),
			)
		}

		robot.Advance(sc.StepMs)
		clock.Advance(sc.StepMs)
	}

	x, y, heading := robot.Pose()
	res := SimResult{State: runner.Result(), ElapsedMs: clock.NowMillis(), X: x, Y: y, Heading: heading}
	res.Press, res.Decided = runner.Press()

	if !runner.Done() {
		sup.Cancel()
		res.State = sup.State()
		return res, fmt.Errorf("simulation did not finish within %d ms", sc.MaxMs)
	}
	return res, nil
}
