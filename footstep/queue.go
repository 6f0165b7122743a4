package footstep

import (
	"go.viam.com/biped/logging"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/spatialmath"
)

// lookaheadDepth is how many footsteps after the latched one the queue caches.
const lookaheadDepth = 2

// Queue sits between a Provider and the walking controller. It latches the footstep being
// executed ("next") and exposes the two following ones for lookahead.
type Queue struct {
	provider Provider
	logger   logging.Logger

	next      *Footstep
	upcoming  []Footstep
	completed int
}

// NewQueue returns a queue over provider.
func NewQueue(provider Provider, logger logging.Logger) *Queue {
	return &Queue{provider: provider, logger: logger}
}

// PeekNext returns the latched footstep.
func (q *Queue) PeekNext() (Footstep, bool) {
	if q.next == nil {
		return Footstep{}, false
	}
	return *q.next, true
}

// PeekNextNext returns the footstep after the latched one.
func (q *Queue) PeekNextNext() (Footstep, bool) {
	return q.provider.Peek(0)
}

// PeekNextNextNext returns the footstep two after the latched one.
func (q *Queue) PeekNextNextNext() (Footstep, bool) {
	return q.provider.Peek(1)
}

// IsEmpty reports whether the provider has nothing left to poll. The latched footstep is not
// counted.
func (q *Queue) IsEmpty() bool {
	return q.provider.IsEmpty()
}

// HasLatched reports whether a footstep is being executed.
func (q *Queue) HasLatched() bool {
	return q.next != nil
}

// CheckForFootsteps polls one footstep when ready is set and nothing is latched. Stance frame
// footsteps are resolved against the pose of upcomingSupportSide in feet. It returns the latched
// footstep, if any.
func (q *Queue) CheckForFootsteps(
	ready bool,
	upcomingSupportSide robotside.RobotSide,
	feet robotside.SideDependentList[spatialmath.Pose],
) (Footstep, bool) {
	if q.next != nil || !ready {
		return q.PeekNext()
	}
	step, ok := q.provider.Poll()
	if !ok {
		return Footstep{}, false
	}
	if step.Side == upcomingSupportSide {
		q.logger.Warnw("footstep places the upcoming support foot", "footstep", step.ID, "side", step.Side)
	}
	step = step.InWorld(feet.Get(upcomingSupportSide))
	q.next = &step
	q.UpdateLookahead()
	q.logger.Debugw("footstep latched", "footstep", step.ID, "side", step.Side, "pose", step.Pose.String())
	return step, true
}

// Latch makes step the footstep being executed, bypassing the provider. Push recovery uses it for
// synthesized footsteps.
func (q *Queue) Latch(step Footstep) {
	q.next = &step
}

// UpdateLookahead refreshes the cached footsteps following the latched one.
func (q *Queue) UpdateLookahead() {
	q.upcoming = q.upcoming[:0]
	for i := 0; i < lookaheadDepth; i++ {
		step, ok := q.provider.Peek(i)
		if !ok {
			break
		}
		q.upcoming = append(q.upcoming, step)
	}
}

// Upcoming returns the footsteps cached by the last UpdateLookahead.
func (q *Queue) Upcoming() []Footstep {
	out := make([]Footstep, len(q.upcoming))
	copy(out, q.upcoming)
	return out
}

// NotifyComplete reports the latched footstep as executed and releases it. Synthesized footsteps
// are released without reaching the provider.
func (q *Queue) NotifyComplete(synthesized bool) {
	if q.next == nil {
		return
	}
	if !synthesized {
		q.provider.NotifyComplete(*q.next)
		q.completed++
	}
	q.next = nil
}

// Completed returns how many provider footsteps were executed.
func (q *Queue) Completed() int {
	return q.completed
}

// Clear releases the latched footstep and the lookahead without touching the provider.
func (q *Queue) Clear() {
	q.next = nil
	q.upcoming = q.upcoming[:0]
}
