package beacon_nav

import (
	"fmt"
	"strings"
)

// ConfidenceWindow keeps a sliding mean of the most recent confidences.
type ConfidenceWindow struct {
	size   int
	values []float64
	next   int
	sum    float64
}

// NewConfidenceWindow constructs a window over the last size samples.
func NewConfidenceWindow(size int) *ConfidenceWindow {
	if size <= 0 {
		size = 1
	}
	return &ConfidenceWindow{size: size, values: make([]float64, 0, size)}
}

// Add records a sample and returns the updated mean.
func (w *ConfidenceWindow) Add(confidence float64) float64 {
	if len(w.values) < w.size {
		w.values = append(w.values, confidence)
	} else {
		w.sum -= w.values[w.next]
		w.values[w.next] = confidence
		w.next = (w.next + 1) % w.size
	}
	w.sum += confidence
	return w.Mean()
}

// Mean returns the current sliding mean, or 0 when empty.
func (w *ConfidenceWindow) Mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	return w.sum / float64(len(w.values))
}

// Len returns the number of samples held.
func (w *ConfidenceWindow) Len() int {
	return len(w.values)
}

// Reset discards all samples.
func (w *ConfidenceWindow) Reset() {
	w.values = w.values[:0]
	w.next = 0
	w.sum = 0
}

// Alliance is the team color that decides which marker half to press.
type Alliance string

const (
	AllianceRed  Alliance = "RED"
	AllianceBlue Alliance = "BLUE"
)

// ParseAlliance converts an alliance name into an Alliance.
func ParseAlliance(value string) (Alliance, error) {
	switch Alliance(strings.ToUpper(strings.TrimSpace(value))) {
	case AllianceRed:
		return AllianceRed, nil
	case AllianceBlue:
		return AllianceBlue, nil
	default:
		return "", fmt.Errorf("unknown alliance %q", value)
	}
}

// Side names a half of the target.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// DecidePress picks the target half showing the alliance color, based on
// the color-hit counters of a finished alignment. Marker color A is red; a
// half that is not red is taken as blue. It returns false when the counters
// do not separate the halves.
func DecidePress(alliance Alliance, out Outcome) (Side, bool) {
	if out.Kind != TaskAlign || out.LeftColorHits == out.RightColorHits {
		return "", false
	}
	leftRedder := out.LeftColorHits > out.RightColorHits
	switch alliance {
	case AllianceRed:
		if leftRedder {
			return SideLeft, true
		}
		return SideRight, true
	case AllianceBlue:
		if leftRedder {
			return SideRight, true
		}
		return SideLeft, true
	}
	return "", false
}
