package build

import (
	"github.com/draftlab/anvil/internal/image"
)

// Status captures the lifecycle states of one build run.
type Status string

// Supported run statuses.
const (
	StatusPending    Status = "pending"
	StatusMounting   Status = "mounting"
	StatusRunning    Status = "running"
	StatusCommitting Status = "committing"
	StatusDiscarding Status = "discarding"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Run is one execution of the orchestrator: one image, one configuration,
// one mount session. The session is never shared with another run.
type Run struct {
	ID              string
	Handle          image.ImageHandle
	Session         *image.MountSession
	Config          *Config
	CompletedStages []string
	Status          Status
	Err             error
}
