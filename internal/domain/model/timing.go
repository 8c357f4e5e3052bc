package model

import "math"

// Grade comments shared by the timing policies.
const (
	CommentOnTime          = "on time"
	CommentCouldBeFaster   = "could be faster"
	CommentTooLate         = "too late"
	CommentFarTooLate      = "far too late"
	CommentAfterMust       = "too late, after must-deadline"
	CommentAfterRecommend  = "later than recommended"
	CommentAppropriateTime = "performed appropriately and on time"
)

// TimingPolicy grades how late an action was performed.
type TimingPolicy interface {
	Grade(timeSec float64) (Status, string)
}

// ThreeBand grades against green, yellow and red second thresholds.
// Bounds are inclusive and applied as given, even when not ascending.
type ThreeBand struct {
	Green  float64 `json:"green"`
	Yellow float64 `json:"yellow"`
	Red    float64 `json:"red"`
}

// Grade implements TimingPolicy.
func (b ThreeBand) Grade(timeSec float64) (Status, string) {
	switch {
	case timeSec <= b.Green:
		return StatusGreen, CommentOnTime
	case timeSec <= b.Yellow:
		return StatusYellow, CommentCouldBeFaster
	case timeSec <= b.Red:
		return StatusRed, CommentTooLate
	default:
		return StatusRed, CommentFarTooLate
	}
}

// TwoThreshold is the legacy policy. A nil threshold is not checked.
type TwoThreshold struct {
	Recommended *float64 `json:"recommended,omitempty"`
	Must        *float64 `json:"must,omitempty"`
}

// Grade implements TimingPolicy.
func (t TwoThreshold) Grade(timeSec float64) (Status, string) {
	if t.Must != nil && timeSec > *t.Must {
		return StatusRed, CommentAfterMust
	}
	if t.Recommended != nil && timeSec > *t.Recommended {
		return StatusYellow, CommentAfterRecommend
	}
	return StatusGreen, CommentAppropriateTime
}

// ResolveTiming picks the timing policy of an expected action. An already
// resolved Timing wins; otherwise a fully finite TimeTargetsSec yields a
// ThreeBand and anything else falls back to TwoThreshold.
func ResolveTiming(a ExpectedAction) TimingPolicy {
	if a.Timing != nil {
		return a.Timing
	}
	if t := a.TimeTargetsSec; t != nil && finite(t.Green) && finite(t.Yellow) && finite(t.Red) {
		return ThreeBand{Green: t.Green, Yellow: t.Yellow, Red: t.Red}
	}
	return TwoThreshold{
		Recommended: finitePtr(a.RecommendedBeforeSec),
		Must:        finitePtr(a.MustBeforeSec),
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func finitePtr(p *float64) *float64 {
	if p == nil || !finite(*p) {
		return nil
	}
	v := *p
	return &v
}
