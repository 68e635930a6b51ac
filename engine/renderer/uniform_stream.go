package renderer

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/model"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/Carmen-Shannon/excess/engine/scene"
)

// minBlocksPerTask keeps tiny scenes on the calling goroutine.
const minBlocksPerTask = 64

// uniformStream is the implementation of the UniformStream interface.
type uniformStream struct {
	mu *sync.Mutex

	scene  scene.Scene
	buffer gpu.Buffer

	blockSize  uint64
	stride     uint64
	regionSize uint64
	regions    int

	offsets   map[scene.TransformID]uint32
	order     []scene.TransformID
	absolute  []common.Mat4
	workers   int
	pool      worker.DynamicWorkerPool
	label     string
	singulars int
}

// UniformStream is one host-writable uniform buffer holding a PerObjectUniforms block per
// transform, addressed through dynamic offsets.
//
// The buffer is split into regions, one per frame slot. Within a region, transform t lives at
// Offset(t), assigned once from the scene's transform iteration order; the byte offset of t in
// region r is RegionOffset(r) + Offset(t). The stream performs no GPU synchronization: callers
// must only write a region after the frame that last read it has retired.
type UniformStream interface {
	// Buffer returns the backing uniform buffer.
	Buffer() gpu.Buffer

	// BlockSize returns the size of one PerObjectUniforms block in bytes.
	BlockSize() uint64

	// Stride returns the distance between consecutive blocks: BlockSize rounded up to the
	// device's minimum uniform buffer offset alignment.
	Stride() uint64

	// Regions returns the number of frame regions in the buffer.
	Regions() int

	// RegionOffset returns the byte offset of region r.
	RegionOffset(r int) uint64

	// Offset returns the stable byte offset of t within a region. Panics if t was not part of
	// the scene when the stream was created.
	//
	// Parameters:
	//   - t: the transform handle
	//
	// Returns:
	//   - uint32: the offset, a multiple of Stride
	Offset(t scene.TransformID) uint32

	// Mapped maps [offset, offset+size) of the buffer, passes it to fn and unmaps it again, also
	// when fn returns an error or panics.
	//
	// Parameters:
	//   - offset: the first byte to map
	//   - size: the number of bytes to map
	//   - fn: the writer
	//
	// Returns:
	//   - error: the map, fn or unmap error
	Mapped(offset, size uint64, fn func(dst []byte) error) error

	// Write recomputes every transform's absolute matrix and writes
	// {viewProjection * absolute, inverse} into region r.
	//
	// Parameters:
	//   - r: the frame region to write
	//   - viewProjection: the camera's view-projection matrix
	//
	// Returns:
	//   - error: an error if the region cannot be mapped
	Write(r int, viewProjection common.Mat4) error

	// Release frees the backing buffer.
	Release()
}

// Ensure uniformStream implements UniformStream interface.
var _ UniformStream = &uniformStream{}

// NewUniformStream allocates a stream sized for every transform currently in s.
//
// Parameters:
//   - ctx: the graphics context providing the buffer and alignment limit
//   - s: the scene whose transforms get blocks
//   - options: functional options to configure the stream
//
// Returns:
//   - UniformStream: the new stream
//   - error: an error if the block does not fit one binding or the buffer cannot be created
func NewUniformStream(ctx gpu.GraphicsContext, s scene.Scene, options ...UniformStreamBuilderOption) (UniformStream, error) {
	us := &uniformStream{
		mu:      &sync.Mutex{},
		scene:   s,
		regions: 1,
		workers: 1,
		label:   "Uniform Stream",
	}
	for _, opt := range options {
		opt(us)
	}

	limits := ctx.Limits()
	var block model.GPUPerObjectUniforms
	us.blockSize = uint64(block.Size())
	us.stride = common.AlignSize(us.blockSize, uint64(limits.MinUniformBufferOffsetAlignment))
	if limits.MaxUniformBufferBindingSize > 0 && us.blockSize > limits.MaxUniformBufferBindingSize {
		return nil, fmt.Errorf("uniform stream: block of %d bytes exceeds the binding limit %d", us.blockSize, limits.MaxUniformBufferBindingSize)
	}

	us.order = s.Transforms()
	us.offsets = make(map[scene.TransformID]uint32, len(us.order))
	for i, t := range us.order {
		us.offsets[t] = uint32(uint64(i) * us.stride)
	}
	us.regionSize = us.stride * uint64(max(len(us.order), 1))

	buf, err := ctx.CreateUniformBuffer(us.label, us.regionSize*uint64(us.regions))
	if err != nil {
		return nil, fmt.Errorf("uniform stream: %w", err)
	}
	us.buffer = buf

	if us.workers > 1 {
		us.pool = worker.NewDynamicWorkerPool(us.workers, 256, 1*time.Second)
	}

	common.Logger().Info("uniform stream created",
		"transforms", len(us.order),
		"block", us.blockSize,
		"stride", us.stride,
		"regions", us.regions,
		"bytes", buf.Size(),
	)
	return us, nil
}

func (us *uniformStream) Buffer() gpu.Buffer {
	return us.buffer
}

func (us *uniformStream) BlockSize() uint64 {
	return us.blockSize
}

func (us *uniformStream) Stride() uint64 {
	return us.stride
}

func (us *uniformStream) Regions() int {
	return us.regions
}

func (us *uniformStream) RegionOffset(r int) uint64 {
	if r < 0 || r >= us.regions {
		panic(fmt.Sprintf("uniform stream: region %d out of range [0, %d)", r, us.regions))
	}
	return uint64(r) * us.regionSize
}

func (us *uniformStream) Offset(t scene.TransformID) uint32 {
	off, ok := us.offsets[t]
	if !ok {
		panic(fmt.Sprintf("uniform stream: transform %d has no uniform block", t))
	}
	return off
}

func (us *uniformStream) Mapped(offset, size uint64, fn func(dst []byte) error) (err error) {
	dst, err := us.buffer.Map(offset, size)
	if err != nil {
		return fmt.Errorf("uniform stream: %w", err)
	}
	defer func() {
		if uerr := us.buffer.Unmap(); uerr != nil && err == nil {
			err = fmt.Errorf("uniform stream: %w", uerr)
		}
	}()
	return fn(dst)
}

func (us *uniformStream) Write(r int, viewProjection common.Mat4) error {
	us.mu.Lock()
	defer us.mu.Unlock()

	if len(us.order) == 0 {
		return nil
	}
	us.absolute = us.scene.AbsoluteMatrices(us.absolute)
	size := us.stride * uint64(len(us.order))

	return us.Mapped(us.RegionOffset(r), size, func(dst []byte) error {
		singular := us.encode(dst, viewProjection)
		if singular > 0 && singular != us.singulars {
			common.Logger().Warn("uniform stream: singular model-view-projection, inverse zeroed", "transforms", singular)
		}
		us.singulars = singular
		return nil
	})
}

// encode writes every block into dst, splitting the transforms across the worker pool when one
// is configured. It returns the number of singular matrices.
func (us *uniformStream) encode(dst []byte, viewProjection common.Mat4) int {
	n := len(us.order)
	if us.pool == nil || n < 2*minBlocksPerTask {
		return us.encodeRange(dst, viewProjection, 0, n)
	}

	chunk := max(minBlocksPerTask, (n+us.workers-1)/us.workers)
	var (
		wg       sync.WaitGroup
		singular = make([]int, (n+chunk-1)/chunk)
	)
	for id, lo := 0, 0; lo < n; id, lo = id+1, lo+chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		taskID := id
		from, to := lo, hi
		us.pool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				singular[taskID] = us.encodeRange(dst, viewProjection, from, to)
				return nil, nil
			},
		})
	}
	wg.Wait()

	total := 0
	for _, s := range singular {
		total += s
	}
	return total
}

func (us *uniformStream) encodeRange(dst []byte, viewProjection common.Mat4, from, to int) int {
	singular := 0
	var block model.GPUPerObjectUniforms
	for i := from; i < to; i++ {
		t := us.order[i]
		block.MVP = common.MulMat4(viewProjection, us.absolute[t])
		if !common.Invert4(block.MVPInverse[:], block.MVP[:]) {
			block.MVPInverse = common.Mat4{}
			singular++
		}
		off := us.offsets[t]
		block.Put(dst[off : uint64(off)+us.blockSize])
	}
	return singular
}

func (us *uniformStream) Release() {
	us.mu.Lock()
	defer us.mu.Unlock()
	if us.buffer != nil {
		us.buffer.Release()
		us.buffer = nil
	}
}
