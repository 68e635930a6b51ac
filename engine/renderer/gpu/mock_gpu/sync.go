package mock_gpu

import (
	"fmt"
	"time"

	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
)

// Fence retires its submission when waited on unless the context holds fences.
type Fence struct {
	ctx      *Context
	signaled bool
	armed    bool
}

var _ gpu.Fence = &Fence{}

func (f *Fence) Wait(timeout time.Duration) error {
	if err := f.ctx.failure(OpFenceWait); err != nil {
		return err
	}
	c := f.ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	if f.signaled {
		return nil
	}
	if !f.armed {
		return fmt.Errorf("fence is unsignaled and guards no submission")
	}
	if c.holdFences {
		return gpu.ErrFenceTimeout
	}
	f.signaled = true
	f.armed = false
	for i, p := range c.pending {
		if p == f {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (f *Fence) Reset() error {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	if !f.signaled && f.armed {
		return fmt.Errorf("cannot reset a fence with a submission in flight")
	}
	f.signaled = false
	return nil
}

func (f *Fence) Signaled() bool {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	return f.signaled
}

func (f *Fence) Release() { f.ctx.untrack(KindFence) }

type Semaphore struct {
	ctx   *Context
	label string
}

var _ gpu.Semaphore = &Semaphore{}

func (s *Semaphore) Label() string { return s.label }
func (s *Semaphore) Release()      { s.ctx.untrack(KindSemaphore) }

// CommandBuffer holds the commands of a finished recorder.
type CommandBuffer struct {
	label     string
	Commands  []Command
	submitted bool
}

var _ gpu.CommandBuffer = &CommandBuffer{}

func (b *CommandBuffer) Label() string { return b.label }
func (b *CommandBuffer) Release()      {}

// Queue records submissions.
type Queue struct {
	ctx *Context
}

var _ gpu.Queue = &Queue{}

func (q *Queue) Submit(cb gpu.CommandBuffer, wait, signal gpu.Semaphore, fence gpu.Fence) error {
	if err := q.ctx.failure(OpSubmit); err != nil {
		return err
	}
	buf, ok := cb.(*CommandBuffer)
	if !ok || buf.submitted {
		return fmt.Errorf("submit: command buffer %T was not recorded by this context or was already submitted", cb)
	}

	c := q.ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	var f *Fence
	if fence != nil {
		if f, ok = fence.(*Fence); !ok {
			return fmt.Errorf("submit: fence %T was not created by this context", fence)
		}
		if f.signaled || f.armed {
			return fmt.Errorf("submit: fence must be reset before it guards a new submission")
		}
		f.armed = true
		c.pending = append(c.pending, f)
		c.maxInFlight = max(c.maxInFlight, len(c.pending))
	}
	buf.submitted = true
	c.submissions = append(c.submissions, Submission{
		Label:    buf.label,
		Commands: buf.Commands,
		Wait:     wait,
		Signal:   signal,
		Fence:    fence,
	})
	return nil
}

func (q *Queue) WaitIdle() error {
	c := q.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waitIdles++
	c.retireAllLocked()
	return nil
}
