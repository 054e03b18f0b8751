package optimizations

import "math"

// Schedule is a linear warmup followed by cosine decay to zero. With both
// Warmup and Decay at 0 it returns Peak for every step.
type Schedule struct {
	Peak   float64
	Warmup int // steps of linear warmup
	Decay  int // cosine decay steps after warmup, 0 = none
}

// At returns the learning rate for the 1-based optimizer step.
func (s Schedule) At(step int) float64 {
	if step <= 0 {
		return 0
	}
	if s.Warmup > 0 && step < s.Warmup {
		return s.Peak * float64(step) / float64(s.Warmup)
	}
	if s.Decay > 0 {
		x := math.Min(math.Max(float64(step-s.Warmup)/float64(s.Decay), 0), 1)
		return s.Peak * 0.5 * (1 + math.Cos(math.Pi*x))
	}
	return s.Peak
}
