package scheduler

import (
	"time"

	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/lane"
)

// Job is a described state change: its identifier, deadline and the element
// contexts it touches.
type Job struct {
	ID       lane.JobID
	Deadline time.Time
	Roots    []*core.ElementContextNode
}

// Priority returns the job's scheduling priority.
func (j *Job) Priority() lane.Priority {
	return lane.JobPriority(j.ID, j.Deadline)
}

// jobBuilder is the core.JobBuilder handed to job callbacks.
type jobBuilder struct {
	job *Job
}

func (b *jobBuilder) ID() lane.JobID {
	return b.job.ID
}

func (b *jobBuilder) AddRoot(ctx *core.ElementContextNode) {
	if ctx == nil {
		return
	}
	for _, r := range b.job.Roots {
		if r == ctx {
			return
		}
	}
	b.job.Roots = append(b.job.Roots, ctx)
}
