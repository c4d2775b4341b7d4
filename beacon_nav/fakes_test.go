package beacon_nav

// recordingDrive is a MotorDrive that remembers the current powers and how
// many writes it received.
type recordingDrive struct {
	left, right float64
	writes      int
}

func (d *recordingDrive) SetLeftPower(power float64) {
	d.left = power
	d.writes++
}

func (d *recordingDrive) SetRightPower(power float64) {
	d.right = power
	d.writes++
}

// scriptedVision returns obs on every poll until it is changed.
type scriptedVision struct {
	obs   TargetObservation
	frame FrameGeometry
	polls int
}

func (v *scriptedVision) Poll() TargetObservation {
	v.polls++
	return v.obs
}

func (v *scriptedVision) FrameSize() FrameGeometry {
	return v.frame
}

func frame900() FrameGeometry {
	return FrameGeometry{Width: 900, Height: 900}
}

// seen builds a confident observation centered at cx with a small box.
func seen(cx float64) TargetObservation {
	return TargetObservation{Found: true, Confidence: 1, CenterX: cx, Width: 100, Height: 100}
}
