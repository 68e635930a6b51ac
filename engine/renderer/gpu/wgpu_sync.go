package gpu

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// pollInterval is the sleep between non-blocking device polls during a bounded fence wait.
const pollInterval = 200 * time.Microsecond

// wgpuFence is signaled from a Queue.OnSubmittedWorkDone callback, which the device delivers
// while being polled.
type wgpuFence struct {
	device   *wgpu.Device
	signaled atomic.Bool
	armed    atomic.Bool
}

var _ Fence = &wgpuFence{}

func (f *wgpuFence) Signaled() bool {
	return f.signaled.Load()
}

func (f *wgpuFence) Wait(timeout time.Duration) error {
	if f.signaled.Load() {
		return nil
	}
	if !f.armed.Load() {
		return fmt.Errorf("fence is unsignaled and guards no submission")
	}

	if timeout == WaitForever {
		for !f.signaled.Load() {
			if queueEmpty := f.device.Poll(true, nil); queueEmpty && !f.signaled.Load() {
				// every submission retired; the callback for this one has no more work to wait on
				common.Logger().Debug("fence completed by idle queue before its callback")
				f.signal()
			}
		}
		return nil
	}

	deadline := time.Now().Add(timeout)
	for !f.signaled.Load() {
		f.device.Poll(false, nil)
		if f.signaled.Load() {
			break
		}
		if time.Now().After(deadline) {
			return ErrFenceTimeout
		}
		time.Sleep(pollInterval)
	}
	return nil
}

func (f *wgpuFence) Reset() error {
	if !f.signaled.Load() && f.armed.Load() {
		return fmt.Errorf("cannot reset a fence with a submission in flight")
	}
	f.signaled.Store(false)
	f.armed.Store(false)
	return nil
}

func (f *wgpuFence) signal() {
	f.armed.Store(false)
	f.signaled.Store(true)
}

func (f *wgpuFence) Release() {}

// wgpuSemaphore carries no GPU state: WebGPU orders queue work and presentation implicitly.
type wgpuSemaphore struct {
	label string
}

var _ Semaphore = &wgpuSemaphore{}

func (s *wgpuSemaphore) Label() string { return s.label }
func (s *wgpuSemaphore) Release()      {}

type wgpuCommandBuffer struct {
	label string
	buf   *wgpu.CommandBuffer
}

var _ CommandBuffer = &wgpuCommandBuffer{}

func (c *wgpuCommandBuffer) Label() string { return c.label }

func (c *wgpuCommandBuffer) Release() {
	if c.buf != nil {
		c.buf.Release()
		c.buf = nil
	}
}

type wgpuQueue struct {
	device *wgpu.Device
	queue  *wgpu.Queue
}

var _ Queue = &wgpuQueue{}

func (q *wgpuQueue) Submit(cb CommandBuffer, wait, signal Semaphore, fence Fence) error {
	c, ok := cb.(*wgpuCommandBuffer)
	if !ok || c.buf == nil {
		return fmt.Errorf("submit: command buffer %T was not recorded by this context or was already submitted", cb)
	}
	var f *wgpuFence
	if fence != nil {
		if f, ok = fence.(*wgpuFence); !ok {
			return fmt.Errorf("submit: fence %T was not created by this context", fence)
		}
		if f.signaled.Load() || f.armed.Load() {
			return fmt.Errorf("submit: fence must be reset before it guards a new submission")
		}
		f.armed.Store(true)
	}

	q.queue.Submit(c.buf)
	c.Release()

	if f != nil {
		q.queue.OnSubmittedWorkDone(func(status wgpu.QueueWorkDoneStatus) {
			if status != wgpu.QueueWorkDoneStatusSuccess {
				common.Logger().Warn("queue work done with non-success status", "status", status)
			}
			f.signal()
		})
	}
	return nil
}

func (q *wgpuQueue) WaitIdle() error {
	q.device.Poll(true, nil)
	return nil
}
