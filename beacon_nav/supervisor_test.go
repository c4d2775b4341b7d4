package beacon_nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type supervisorFixture struct {
	sup    *Supervisor
	drive  *recordingDrive
	vision *scriptedVision
	clock  *ManualClock
	logs   *observer.ObservedLogs
}

func newSupervisorFixture() supervisorFixture {
	core, logs := observer.New(zapcore.DebugLevel)
	f := supervisorFixture{
		drive:  &recordingDrive{},
		vision: &scriptedVision{frame: frame900()},
		clock:  &ManualClock{},
		logs:   logs,
	}
	f.sup = NewSupervisor(f.drive, f.vision, f.clock, zap.New(core))
	return f
}

func TestSupervisorStartsIdle(t *testing.T) {
	f := newSupervisorFixture()
	assert.Equal(t, StateIdle, f.sup.State())
	assert.False(t, f.sup.IsBusy())
	assert.Equal(t, StateIdle, f.sup.Tick())

	_, ok := f.sup.LastOutcome()
	assert.False(t, ok)
}

func TestSupervisorTimedDrive(t *testing.T) {
	f := newSupervisorFixture()
	require.True(t, f.sup.StartTimedDrive(DriveParams{LeftPower: 0.5, RightPower: 0.5, DurationMs: 2000}))
	assert.Equal(t, StateTimedDriving, f.sup.State())
	assert.Equal(t, 0.5, f.drive.left)
	assert.Equal(t, 0.5, f.drive.right)

	f.clock.Set(1999)
	assert.Equal(t, StateTimedDriving, f.sup.Tick())
	assert.Equal(t, 0.5, f.drive.left)
	assert.Equal(t, 0.5, f.drive.right)

	f.clock.Set(2000)
	assert.Equal(t, StateSucceeded, f.sup.Tick())
	assert.Zero(t, f.drive.left)
	assert.Zero(t, f.drive.right)
	assert.Zero(t, f.vision.polls, "timed drive never reads vision")

	out, ok := f.sup.LastOutcome()
	require.True(t, ok)
	assert.Equal(t, TaskTimeDrive, out.Kind)
	assert.Equal(t, StateSucceeded, out.State)
	assert.Equal(t, int64(0), out.StartedMs)
	assert.Equal(t, int64(2000), out.EndedMs)
	assert.NotEmpty(t, out.RunID)
}

func TestSupervisorZeroDurationDriveFinishesOnFirstTick(t *testing.T) {
	f := newSupervisorFixture()
	require.True(t, f.sup.StartTimedDrive(DriveParams{LeftPower: 1, RightPower: 1}))
	assert.Equal(t, StateSucceeded, f.sup.Tick())
}

func TestSupervisorRejectsStartWhileBusy(t *testing.T) {
	f := newSupervisorFixture()
	f.clock.Set(10)
	require.True(t, f.sup.StartAlignToTarget(scenarioParams()))

	f.vision.obs = seen(400)
	f.clock.Set(20)
	f.sup.Tick()

	at := f.sup.active.(*alignTask)
	prevErr, prevTs, startMs := at.ctrl.prevError, at.ctrl.prevTimestampMs, f.sup.startedMs
	runID := f.sup.runID
	writes := f.drive.writes

	f.clock.Set(30)
	assert.False(t, f.sup.StartTimedDrive(DriveParams{LeftPower: 1, RightPower: 1, DurationMs: 10}))
	assert.False(t, f.sup.StartAlignToTarget(DefaultAlignment()))

	assert.Equal(t, StateAligningToTarget, f.sup.State())
	assert.Same(t, at, f.sup.active)
	assert.Equal(t, prevErr, at.ctrl.prevError)
	assert.Equal(t, prevTs, at.ctrl.prevTimestampMs)
	assert.Equal(t, startMs, f.sup.startedMs)
	assert.Equal(t, runID, f.sup.runID)
	assert.Equal(t, writes, f.drive.writes, "rejected start must not touch the drive")
	assert.Equal(t, 2, f.logs.FilterMessage("start ignored, supervisor busy").Len())
}

func TestSupervisorRejectsNilTask(t *testing.T) {
	f := newSupervisorFixture()
	assert.False(t, f.sup.RequestStart(nil))
	assert.Equal(t, StateIdle, f.sup.State())
	assert.Zero(t, f.drive.writes)

	require.True(t, f.sup.StartTimedDrive(DriveParams{DurationMs: 100}))
	assert.False(t, f.sup.RequestStart(nil))
	assert.Equal(t, StateTimedDriving, f.sup.State())
}

func TestSupervisorCanStartFromTerminalStates(t *testing.T) {
	f := newSupervisorFixture()
	require.True(t, f.sup.StartTimedDrive(DriveParams{DurationMs: 0}))
	f.sup.Tick()
	require.Equal(t, StateSucceeded, f.sup.State())

	require.True(t, f.sup.StartAlignToTarget(scenarioParams()))
	f.sup.Cancel()
	require.Equal(t, StateCancelled, f.sup.State())

	require.True(t, f.sup.StartTimedDrive(DriveParams{DurationMs: 5}))
	assert.Equal(t, StateTimedDriving, f.sup.State())
}

func TestSupervisorAlignmentScenario(t *testing.T) {
	f := newSupervisorFixture()
	require.True(t, f.sup.StartAlignToTarget(scenarioParams()))

	f.vision.obs = seen(400)
	assert.Equal(t, StateAligningToTarget, f.sup.Tick())
	assert.Zero(t, f.drive.writes, "baseline poll writes nothing")

	f.vision.obs = seen(410)
	f.clock.Set(100)
	assert.Equal(t, StateAligningToTarget, f.sup.Tick())
	assert.InDelta(t, 1.0, f.drive.left, 1e-9)
	assert.InDelta(t, 0.6, f.drive.right, 1e-9)

	tm := f.sup.Telemetry()
	assert.Equal(t, StateAligningToTarget, tm.State)
	assert.InDelta(t, 40.0, tm.Error, 1e-9)
	assert.InDelta(t, 0.4, tm.Steering, 1e-9)
	assert.InDelta(t, 0.6, tm.Right, 1e-9)

	f.vision.obs = TargetObservation{Found: true, Confidence: 1, CenterX: 450, Width: 880, Height: 880}
	f.clock.Set(200)
	assert.Equal(t, StateSucceeded, f.sup.Tick())
	assert.InDelta(t, 0.6, f.drive.right, 1e-9, "success does not rewrite the drive")
	assert.Equal(t, StateSucceeded, f.sup.Telemetry().State)
}

func TestSupervisorAlignmentTimesOutWhenTargetLost(t *testing.T) {
	f := newSupervisorFixture()
	require.True(t, f.sup.StartAlignToTarget(scenarioParams()))

	for _, now := range []int64{100, 500, 999} {
		f.clock.Set(now)
		assert.Equal(t, StateAligningToTarget, f.sup.Tick(), "t=%d", now)
		assert.Zero(t, f.drive.left)
		assert.Zero(t, f.drive.right)
	}

	f.clock.Set(1001)
	assert.Equal(t, StateFailedTimeout, f.sup.Tick())
	assert.False(t, f.sup.IsBusy())

	out, ok := f.sup.LastOutcome()
	require.True(t, ok)
	assert.Equal(t, StateFailedTimeout, out.State)
	assert.Equal(t, TaskAlign, out.Kind)
	assert.Equal(t, 1, f.logs.FilterMessage("task finished").FilterField(zap.Stringer("to", StateFailedTimeout)).Len())
}

func TestSupervisorTickAfterTerminalDoesNotPoll(t *testing.T) {
	f := newSupervisorFixture()
	require.True(t, f.sup.StartAlignToTarget(scenarioParams()))
	f.clock.Set(2000)
	require.Equal(t, StateFailedTimeout, f.sup.Tick())

	polls := f.vision.polls
	f.sup.Tick()
	f.sup.Tick()
	assert.Equal(t, polls, f.vision.polls)
}

func TestSupervisorCancelFromIdleIsIdempotent(t *testing.T) {
	f := newSupervisorFixture()
	f.drive.left, f.drive.right = 0.3, 0.3

	f.sup.Cancel()
	assert.Equal(t, StateCancelled, f.sup.State())
	assert.Zero(t, f.drive.left)
	assert.Zero(t, f.drive.right)
	first, ok := f.sup.LastOutcome()
	require.True(t, ok)

	f.clock.Set(500)
	f.sup.Cancel()
	assert.Equal(t, StateCancelled, f.sup.State())
	second, _ := f.sup.LastOutcome()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.logs.FilterMessage("task finished").Len())
}

func TestSupervisorCancelStopsRunningTask(t *testing.T) {
	f := newSupervisorFixture()
	require.True(t, f.sup.StartTimedDrive(DriveParams{LeftPower: 0.8, RightPower: 0.8, DurationMs: 5000}))

	f.clock.Set(1200)
	f.sup.Cancel()
	assert.Equal(t, StateCancelled, f.sup.State())
	assert.False(t, f.sup.IsBusy())
	assert.Zero(t, f.drive.left)
	assert.Zero(t, f.drive.right)

	out, _ := f.sup.LastOutcome()
	assert.Equal(t, TaskTimeDrive, out.Kind)
	assert.Equal(t, int64(1200), out.EndedMs)

	f.clock.Set(6000)
	assert.Equal(t, StateCancelled, f.sup.Tick())
	assert.Zero(t, f.drive.left)
}

func TestSupervisorOutcomeCarriesColorHits(t *testing.T) {
	f := newSupervisorFixture()
	require.True(t, f.sup.StartAlignToTarget(scenarioParams()))

	obs := seen(450)
	obs.RightIsMarkerColor = true
	f.vision.obs = obs
	for now := int64(0); now < 50; now += 10 {
		f.clock.Set(now)
		f.sup.Tick()
	}
	f.sup.Cancel()

	out, ok := f.sup.LastOutcome()
	require.True(t, ok)
	assert.Equal(t, 0, out.LeftColorHits)
	assert.Equal(t, 5, out.RightColorHits)
}

func TestTaskStateSets(t *testing.T) {
	busy := []TaskState{StateAligningToTarget, StateTimedDriving}
	terminal := []TaskState{StateSucceeded, StateFailedTechnical, StateFailedTimeout, StateCancelled}

	for _, s := range busy {
		assert.True(t, s.IsBusy(), s.String())
		assert.False(t, s.IsTerminal(), s.String())
	}
	for _, s := range terminal {
		assert.False(t, s.IsBusy(), s.String())
		assert.True(t, s.IsTerminal(), s.String())
	}
	assert.False(t, StateIdle.IsBusy())
	assert.False(t, StateIdle.IsTerminal())
}

func TestParseTaskState(t *testing.T) {
	for state, name := range taskStateNames {
		got, err := ParseTaskState(name)
		require.NoError(t, err)
		assert.Equal(t, state, got)
	}

	got, err := ParseTaskState(" failed_timeout ")
	require.NoError(t, err)
	assert.Equal(t, StateFailedTimeout, got)

	_, err = ParseTaskState("RUNNING")
	assert.Error(t, err)
	assert.Equal(t, "TaskState(42)", TaskState(42).String())
}
