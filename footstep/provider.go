package footstep

import (
	"sync"
)

// Provider is a pull-based source of footsteps.
type Provider interface {
	// Poll removes and returns the first footstep.
	Poll() (Footstep, bool)
	// Peek returns the i-th footstep without removing it.
	Peek(i int) (Footstep, bool)
	IsEmpty() bool
	// NotifyComplete is called once a polled footstep has been executed.
	NotifyComplete(f Footstep)
}

// ListProvider is a finite, thread-safe footstep list. Footsteps may be pushed from any goroutine
// while the controller consumes them.
type ListProvider struct {
	mu        sync.Mutex
	steps     []Footstep
	completed []Footstep
}

// NewListProvider returns a provider holding steps.
func NewListProvider(steps ...Footstep) *ListProvider {
	p := &ListProvider{steps: make([]Footstep, 0, len(steps))}
	p.Push(steps...)
	return p
}

// Push appends footsteps.
func (p *ListProvider) Push(steps ...Footstep) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, steps...)
}

// Poll implements Provider.
func (p *ListProvider) Poll() (Footstep, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.steps) == 0 {
		return Footstep{}, false
	}
	step := p.steps[0]
	p.steps = p.steps[1:]
	return step, true
}

// Peek implements Provider.
func (p *ListProvider) Peek(i int) (Footstep, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.steps) {
		return Footstep{}, false
	}
	return p.steps[i], true
}

// IsEmpty implements Provider.
func (p *ListProvider) IsEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.steps) == 0
}

// Len returns the number of pending footsteps.
func (p *ListProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.steps)
}

// Clear drops the pending footsteps.
func (p *ListProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = p.steps[:0]
}

// NotifyComplete implements Provider.
func (p *ListProvider) NotifyComplete(f Footstep) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, f)
}

// Completed returns the footsteps reported complete so far.
func (p *ListProvider) Completed() []Footstep {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Footstep, len(p.completed))
	copy(out, p.completed)
	return out
}

// StreamProvider generates footsteps on demand from a step function, so the sequence can be
// unbounded. Generated footsteps are buffered until polled.
type StreamProvider struct {
	mu        sync.Mutex
	next      func(prev Footstep) (Footstep, bool)
	last      Footstep
	buffer    []Footstep
	exhausted bool
	completed int
}

// NewStreamProvider returns a provider whose first footstep is next(seed). next returning false
// ends the stream.
func NewStreamProvider(seed Footstep, next func(prev Footstep) (Footstep, bool)) *StreamProvider {
	return &StreamProvider{next: next, last: seed}
}

// fill generates until n footsteps are buffered or the stream ends.
func (p *StreamProvider) fill(n int) {
	for len(p.buffer) < n && !p.exhausted {
		step, ok := p.next(p.last)
		if !ok {
			p.exhausted = true
			return
		}
		p.last = step
		p.buffer = append(p.buffer, step)
	}
}

// Poll implements Provider.
func (p *StreamProvider) Poll() (Footstep, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fill(1)
	if len(p.buffer) == 0 {
		return Footstep{}, false
	}
	step := p.buffer[0]
	p.buffer = p.buffer[1:]
	return step, true
}

// Peek implements Provider.
func (p *StreamProvider) Peek(i int) (Footstep, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 {
		return Footstep{}, false
	}
	p.fill(i + 1)
	if i >= len(p.buffer) {
		return Footstep{}, false
	}
	return p.buffer[i], true
}

// IsEmpty implements Provider.
func (p *StreamProvider) IsEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fill(1)
	return len(p.buffer) == 0
}

// NotifyComplete implements Provider.
func (p *StreamProvider) NotifyComplete(Footstep) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
}

// Completed returns how many footsteps were executed.
func (p *StreamProvider) Completed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

// Stop ends the stream after the buffered footsteps.
func (p *StreamProvider) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exhausted = true
}
