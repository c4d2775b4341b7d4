package beacon_nav

// DriveParams describes a fixed-power drive for a fixed duration.
type DriveParams struct {
	LeftPower  float64 `mapstructure:"left_power" yaml:"left_power" validate:"gte=-1,lte=1"`
	RightPower float64 `mapstructure:"right_power" yaml:"right_power" validate:"gte=-1,lte=1"`
	DurationMs int64   `mapstructure:"duration_ms" yaml:"duration_ms" validate:"gte=0"`
}

// TaskSpec is a request to start one of the supervisor's task variants.
// It is implemented by AlignmentParams and DriveParams only.
type TaskSpec interface {
	newTask(s *Supervisor, startMs int64) task
}

// task is the runtime half of a TaskSpec, alive only while it is current.
type task interface {
	kind() TaskKind
	runningState() TaskState
	begin()
	poll(nowMs int64) TaskState
	colorHits() (left, right int)
	telemetry() Telemetry
}

func (p DriveParams) newTask(s *Supervisor, startMs int64) task {
	return &timedDriveTask{params: p, startMs: startMs, drive: s.drive}
}

// timedDriveTask holds the motors at fixed power until the duration elapses.
type timedDriveTask struct {
	params  DriveParams
	startMs int64
	drive   MotorDrive
}

func (t *timedDriveTask) kind() TaskKind          { return TaskTimeDrive }
func (t *timedDriveTask) runningState() TaskState { return StateTimedDriving }
func (t *timedDriveTask) colorHits() (int, int)   { return 0, 0 }

func (t *timedDriveTask) begin() {
	t.drive.SetLeftPower(t.params.LeftPower)
	t.drive.SetRightPower(t.params.RightPower)
}

func (t *timedDriveTask) poll(nowMs int64) TaskState {
	if nowMs >= t.startMs+t.params.DurationMs {
		stop(t.drive)
		return StateSucceeded
	}
	return StateTimedDriving
}

func (t *timedDriveTask) telemetry() Telemetry {
	return Telemetry{State: StateTimedDriving, Left: t.params.LeftPower, Right: t.params.RightPower}
}

func (p AlignmentParams) newTask(s *Supervisor, startMs int64) task {
	return &alignTask{
		ctrl:   NewAlignController(p, startMs),
		vision: s.vision,
		drive:  s.drive,
	}
}

// alignTask wires an AlignController to the vision source and the drive.
type alignTask struct {
	ctrl   *AlignController
	vision VisionSource
	drive  MotorDrive
	last   AlignStep
	cmd    SteeringCommand
}

func (t *alignTask) kind() TaskKind          { return TaskAlign }
func (t *alignTask) runningState() TaskState { return StateAligningToTarget }
func (t *alignTask) begin()                  {}

func (t *alignTask) colorHits() (int, int) {
	return t.ctrl.ColorHits()
}

func (t *alignTask) poll(nowMs int64) TaskState {
	step := t.ctrl.Step(t.vision.Poll(), t.vision.FrameSize(), nowMs)
	if step.Steer {
		t.drive.SetLeftPower(step.Command.Left)
		t.drive.SetRightPower(step.Command.Right)
		t.cmd = step.Command
	}
	t.last = step
	return step.State
}

func (t *alignTask) telemetry() Telemetry {
	return Telemetry{
		State:    t.last.State,
		Error:    t.last.Error,
		Diff:     t.last.Diff,
		Steering: t.last.Steering,
		Left:     t.cmd.Left,
		Right:    t.cmd.Right,
	}
}

// stop zeroes both sides of the drive.
func stop(drive MotorDrive) {
	drive.SetLeftPower(0)
	drive.SetRightPower(0)
}
