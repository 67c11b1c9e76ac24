package align

// Policy gates match candidates against the acceptance threshold and, in
// adaptive mode, drifts the threshold in response to the session's recent
// accept/reject history.
//
// Acceptance additionally requires strict forward progress (the candidate
// segment's order must exceed the session cursor), but that check lives in
// [Session.Step] because the policy does not own the cursor.
type Policy struct {
	threshold float64

	adaptive bool
	stepUp   float64
	stepDown float64
	floor    float64
	ceiling  float64

	missWindow int
	misses     int
}

// PolicyConfig configures a [Policy]. When Adaptive is false only
// Threshold is consulted.
type PolicyConfig struct {
	Threshold  float64
	Adaptive   bool
	StepUp     float64
	StepDown   float64
	Floor      float64
	Ceiling    float64
	MissWindow int
}

// NewPolicy creates a Policy with the given configuration.
func NewPolicy(cfg PolicyConfig) *Policy {
	return &Policy{
		threshold:  cfg.Threshold,
		adaptive:   cfg.Adaptive,
		stepUp:     cfg.StepUp,
		stepDown:   cfg.StepDown,
		floor:      cfg.Floor,
		ceiling:    cfg.Ceiling,
		missWindow: cfg.MissWindow,
	}
}

// Threshold returns the threshold the next candidate will be gated against.
func (p *Policy) Threshold() float64 {
	return p.threshold
}

// Admit reports whether score clears the current threshold.
func (p *Policy) Admit(score float64) bool {
	return score >= p.threshold
}

// OnAccept records an accepted match. In adaptive mode the threshold is
// raised by one step, bounded by the ceiling, so an established rhythm of
// good matches demands stronger evidence.
func (p *Policy) OnAccept() {
	p.misses = 0
	if !p.adaptive {
		return
	}
	p.threshold += p.stepUp
	if p.threshold > p.ceiling {
		p.threshold = p.ceiling
	}
}

// OnReject records a rejected cycle. In adaptive mode a run of missWindow
// consecutive rejections lowers the threshold by one step, bounded by the
// floor, so the session recovers from a stretch of poor audio without
// operator intervention.
func (p *Policy) OnReject() {
	if !p.adaptive {
		return
	}
	p.misses++
	if p.misses < p.missWindow {
		return
	}
	p.misses = 0
	p.threshold -= p.stepDown
	if p.threshold < p.floor {
		p.threshold = p.floor
	}
}
