package beacon_nav

import (
	"testing"

	"pgregory.net/rapid"
)

func finiteFloat() *rapid.Generator[float64] {
	return rapid.Float64Range(-1e6, 1e6)
}

func TestPropertySteeringPowersStayInUnitRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		params := AlignmentParams{
			Kp:            finiteFloat().Draw(t, "kp"),
			Kd:            finiteFloat().Draw(t, "kd"),
			MaxDurationMs: 1 << 40,
			CloseEnoughPx: 0,
		}
		ac := NewAlignController(params, 0)
		frame := FrameGeometry{Width: 900, Height: 900}

		n := rapid.IntRange(2, 20).Draw(t, "polls")
		now := int64(0)
		for i := 0; i < n; i++ {
			obs := TargetObservation{
				Found:      true,
				Confidence: 1,
				CenterX:    finiteFloat().Draw(t, "cx"),
				Width:      100,
				Height:     100,
			}
			now += rapid.Int64Range(0, 200).Draw(t, "dt")
			step := ac.Step(obs, frame, now)
			if !step.Steer {
				continue
			}
			for _, p := range []float64{step.Command.Left, step.Command.Right} {
				if p < 0 || p > 1 {
					t.Fatalf("power %v outside [0,1] (steering %v)", p, step.Steering)
				}
			}
		}
	})
}

func TestPropertyLowConfidenceHoldsBaseline(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		minConf := rapid.Float64Range(0.01, 1).Draw(t, "min_conf")
		ac := NewAlignController(AlignmentParams{Kp: 0.01, Kd: 0.1, MaxDurationMs: 1 << 40, MinConfidence: minConf}, 0)
		frame := FrameGeometry{Width: 900, Height: 900}

		if rapid.Bool().Draw(t, "with_baseline") {
			ac.Step(seen(rapid.Float64Range(0, 900).Draw(t, "base_cx")), frame, 0)
		}
		prevErr, prevTs, hasPrior := ac.prevError, ac.prevTimestampMs, ac.hasPrior

		obs := TargetObservation{
			Found:      rapid.Bool().Draw(t, "found"),
			Confidence: rapid.Float64Range(0, minConf*0.999).Draw(t, "conf"),
			CenterX:    rapid.Float64Range(0, 900).Draw(t, "cx"),
			Width:      100,
			Height:     100,
		}
		step := ac.Step(obs, frame, rapid.Int64Range(1, 10000).Draw(t, "now"))

		if step.Command != (SteeringCommand{}) {
			t.Fatalf("expected full stop, got %+v", step.Command)
		}
		if ac.prevError != prevErr || ac.prevTimestampMs != prevTs || ac.hasPrior != hasPrior {
			t.Fatalf("baseline changed: %v/%v/%v -> %v/%v/%v",
				prevErr, prevTs, hasPrior, ac.prevError, ac.prevTimestampMs, ac.hasPrior)
		}
	})
}

func TestPropertyFirstSampleNeverSteers(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		params := AlignmentParams{
			Kp:            finiteFloat().Draw(t, "kp"),
			Kd:            finiteFloat().Draw(t, "kd"),
			MaxDurationMs: 1 << 40,
		}
		ac := NewAlignController(params, 0)
		step := ac.Step(seen(rapid.Float64Range(0, 900).Draw(t, "cx")), frame900(), rapid.Int64Range(0, 1000).Draw(t, "now"))
		if step.Steer || step.Steering != 0 {
			t.Fatalf("baseline poll steered: %+v", step)
		}
	})
}
