package footstep

import (
	"sync"

	"go.viam.com/biped/robotside"
	"go.viam.com/biped/spatialmath"
)

// PoseRequest asks to hold one foot at Pose, reached over Duration seconds.
type PoseRequest struct {
	Side     robotside.RobotSide `json:"side"`
	Pose     spatialmath.Pose    `json:"pose"`
	Duration float64             `json:"duration"`
}

// PoseProvider is a push-based source of single foot pose requests (flamingo stance).
type PoseProvider interface {
	// CheckForNewPose removes and returns the pending request.
	CheckForNewPose() (PoseRequest, bool)
	HasPending() bool
}

// PoseMailbox holds at most one pending request; a new request replaces an unconsumed one.
type PoseMailbox struct {
	mu      sync.Mutex
	pending *PoseRequest
}

// NewPoseMailbox returns an empty mailbox.
func NewPoseMailbox() *PoseMailbox {
	return &PoseMailbox{}
}

// Request posts a pose request.
func (m *PoseMailbox) Request(side robotside.RobotSide, pose spatialmath.Pose, duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = &PoseRequest{Side: side, Pose: pose, Duration: duration}
}

// CheckForNewPose implements PoseProvider.
func (m *PoseMailbox) CheckForNewPose() (PoseRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return PoseRequest{}, false
	}
	req := *m.pending
	m.pending = nil
	return req, true
}

// HasPending implements PoseProvider.
func (m *PoseMailbox) HasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Clear drops the pending request.
func (m *PoseMailbox) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
}
