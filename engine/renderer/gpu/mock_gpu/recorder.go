package mock_gpu

import (
	"fmt"

	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
)

// CommandOp identifies a recorded command.
type CommandOp string

const (
	CmdBeginRenderPass          CommandOp = "BeginRenderPass"
	CmdSetViewport              CommandOp = "SetViewport"
	CmdSetScissor               CommandOp = "SetScissor"
	CmdBindBatch                CommandOp = "BindBatch"
	CmdBindPipeline             CommandOp = "BindPipeline"
	CmdBindDescriptorSet        CommandOp = "BindDescriptorSet"
	CmdDrawIndexed              CommandOp = "DrawIndexed"
	CmdEndRenderPass            CommandOp = "EndRenderPass"
	CmdBindComputePipeline      CommandOp = "BindComputePipeline"
	CmdBindComputeDescriptorSet CommandOp = "BindComputeDescriptorSet"
	CmdDispatch                 CommandOp = "Dispatch"
	CmdImageBarrier             CommandOp = "ImageBarrier"
	CmdBlitImage                CommandOp = "BlitImage"
)

// Command is one recorded call with the arguments relevant to its op.
type Command struct {
	Op             CommandOp
	Pass           gpu.RenderPassDescriptor
	Viewport       [6]float32
	Scissor        [4]uint32
	Batch          gpu.Batch
	Pipeline       gpu.Pipeline
	Compute        gpu.ComputePipeline
	Set            uint32
	DescriptorSet  gpu.DescriptorSet
	DynamicOffsets []uint32
	IndexCount     uint32
	Groups         [3]uint32
	Barrier        gpu.ImageBarrier
	Src            gpu.Image
	Dst            gpu.Image
	FlipY          bool
}

// Recorder validates commands the way the device backend does and records them.
type Recorder struct {
	ctx         *Context
	label       string
	commands    []Command
	layouts     *gpu.LayoutTracker
	inPass      bool
	batch       gpu.Batch
	pipeline    gpu.Pipeline
	compute     gpu.ComputePipeline
	computeSets map[uint32]*DescriptorSet
	finished    bool
	err         error
}

var _ gpu.CommandRecorder = &Recorder{}

func (r *Recorder) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: "+format, append([]any{r.label}, args...)...)
	}
}

func (r *Recorder) ok() bool {
	if r.finished {
		r.fail("recording after finish")
		return false
	}
	return r.err == nil
}

func (r *Recorder) record(c Command) { r.commands = append(r.commands, c) }

func (r *Recorder) BeginRenderPass(desc gpu.RenderPassDescriptor) {
	if !r.ok() {
		return
	}
	if r.inPass {
		r.fail("render pass %q begun inside another render pass", desc.Label)
		return
	}
	if desc.Color == nil {
		r.fail("render pass %q has no color attachment", desc.Label)
		return
	}
	if err := r.layouts.Require(desc.Color, gpu.ImageLayoutColorAttachment); err != nil {
		r.fail("render pass %q: %w", desc.Label, err)
		return
	}
	if desc.Depth != nil {
		if err := r.layouts.Require(desc.Depth, gpu.ImageLayoutDepthAttachment); err != nil {
			r.fail("render pass %q: %w", desc.Label, err)
			return
		}
	}
	r.inPass = true
	r.batch, r.pipeline = nil, nil
	r.record(Command{Op: CmdBeginRenderPass, Pass: desc})
}

func (r *Recorder) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	if !r.ok() {
		return
	}
	if !r.inPass {
		r.fail("set viewport outside a render pass")
		return
	}
	r.record(Command{Op: CmdSetViewport, Viewport: [6]float32{x, y, width, height, minDepth, maxDepth}})
}

func (r *Recorder) SetScissor(x, y, width, height uint32) {
	if !r.ok() {
		return
	}
	if !r.inPass {
		r.fail("set scissor outside a render pass")
		return
	}
	r.record(Command{Op: CmdSetScissor, Scissor: [4]uint32{x, y, width, height}})
}

func (r *Recorder) BindBatch(b gpu.Batch) {
	if !r.ok() {
		return
	}
	if !r.inPass || b == nil {
		r.fail("bind batch outside a render pass")
		return
	}
	r.batch = b
	r.record(Command{Op: CmdBindBatch, Batch: b})
}

func (r *Recorder) BindPipeline(p gpu.Pipeline) {
	if !r.ok() {
		return
	}
	if !r.inPass || p == nil {
		r.fail("bind pipeline outside a render pass")
		return
	}
	r.pipeline = p
	r.record(Command{Op: CmdBindPipeline, Pipeline: p})
}

func (r *Recorder) BindDescriptorSet(set uint32, ds gpu.DescriptorSet, dynamicOffsets ...uint32) {
	if !r.ok() {
		return
	}
	if !r.inPass || ds == nil {
		r.fail("bind descriptor set outside a render pass")
		return
	}
	if want := ds.Layout().DynamicOffsetCount(); len(dynamicOffsets) != want {
		r.fail("descriptor set %q takes %d dynamic offsets, got %d", ds.Label(), want, len(dynamicOffsets))
		return
	}
	align := r.ctx.limits.MinUniformBufferOffsetAlignment
	for _, off := range dynamicOffsets {
		if align > 0 && off%align != 0 {
			r.fail("descriptor set %q: dynamic offset %d is not a multiple of %d", ds.Label(), off, align)
			return
		}
	}
	r.record(Command{
		Op:             CmdBindDescriptorSet,
		Set:            set,
		DescriptorSet:  ds,
		DynamicOffsets: append([]uint32(nil), dynamicOffsets...),
	})
}

func (r *Recorder) DrawIndexed(indexCount uint32) {
	if !r.ok() {
		return
	}
	if !r.inPass || r.pipeline == nil || r.batch == nil {
		r.fail("draw without an open render pass, bound pipeline and bound batch")
		return
	}
	if indexCount > r.batch.IndexCount() {
		r.fail("draw of %d indices exceeds batch %q with %d", indexCount, r.batch.Label(), r.batch.IndexCount())
		return
	}
	r.record(Command{Op: CmdDrawIndexed, IndexCount: indexCount})
}

func (r *Recorder) EndRenderPass() {
	if !r.ok() {
		return
	}
	if !r.inPass {
		r.fail("end render pass without an open pass")
		return
	}
	r.inPass = false
	r.record(Command{Op: CmdEndRenderPass})
}

func (r *Recorder) BindComputePipeline(p gpu.ComputePipeline) {
	if !r.ok() {
		return
	}
	r.compute = p
	r.record(Command{Op: CmdBindComputePipeline, Compute: p})
}

func (r *Recorder) BindComputeDescriptorSet(set uint32, ds gpu.DescriptorSet) {
	if !r.ok() {
		return
	}
	d, ok := ds.(*DescriptorSet)
	if !ok {
		r.fail("bind compute descriptor set %T from another context", ds)
		return
	}
	r.computeSets[set] = d
	r.record(Command{Op: CmdBindComputeDescriptorSet, Set: set, DescriptorSet: ds})
}

func (r *Recorder) Dispatch(x, y, z uint32) {
	if !r.ok() {
		return
	}
	if r.inPass {
		r.fail("dispatch inside a render pass")
		return
	}
	if r.compute == nil {
		r.fail("dispatch without a compute pipeline")
		return
	}
	for _, d := range r.computeSets {
		for _, b := range d.Bindings {
			if b.Image == nil {
				continue
			}
			entry, ok := d.layout.Entry(b.Binding)
			if !ok {
				continue
			}
			want := gpu.ImageLayoutShaderReadOnly
			if entry.Type == gpu.BindingTypeStorageImage {
				want = gpu.ImageLayoutGeneral
			}
			if err := r.layouts.Require(b.Image, want); err != nil {
				r.fail("dispatch: %w", err)
				return
			}
		}
	}
	r.record(Command{Op: CmdDispatch, Groups: [3]uint32{x, y, z}})
}

func (r *Recorder) ImageBarrier(b gpu.ImageBarrier) {
	if !r.ok() {
		return
	}
	if r.inPass {
		r.fail("image barrier inside a render pass")
		return
	}
	if err := r.layouts.Apply(b); err != nil {
		r.fail("%w", err)
		return
	}
	r.record(Command{Op: CmdImageBarrier, Barrier: b})
}

func (r *Recorder) BlitImage(src, dst gpu.Image, flipY bool) {
	if !r.ok() {
		return
	}
	if r.inPass {
		r.fail("blit inside a render pass")
		return
	}
	if err := r.layouts.Require(src, gpu.ImageLayoutTransferSrc); err != nil {
		r.fail("blit: %w", err)
		return
	}
	if err := r.layouts.Require(dst, gpu.ImageLayoutTransferDst); err != nil {
		r.fail("blit: %w", err)
		return
	}
	r.record(Command{Op: CmdBlitImage, Src: src, Dst: dst, FlipY: flipY})
}

func (r *Recorder) Finish() (gpu.CommandBuffer, error) {
	if r.finished {
		return nil, fmt.Errorf("%s: recorder already finished", r.label)
	}
	r.finished = true
	if r.err == nil && r.inPass {
		r.fail("finish with an open render pass")
	}
	if r.err != nil {
		return nil, r.err
	}
	return &CommandBuffer{label: r.label, Commands: r.commands}, nil
}

// Ops returns the op of every command, in order.
func Ops(cmds []Command) []CommandOp {
	ops := make([]CommandOp, len(cmds))
	for i, c := range cmds {
		ops[i] = c.Op
	}
	return ops
}

// Filter returns the commands with op.
func Filter(cmds []Command, op CommandOp) []Command {
	var out []Command
	for _, c := range cmds {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}
