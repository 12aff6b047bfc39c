//go:build !nogpu

package compute

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// fenceTimeout is the maximum time to wait for device work to complete.
const fenceTimeout = 5 * time.Second

type webgpuBuffer struct {
	buf  hal.Buffer
	size uint64
}

func (b *webgpuBuffer) Size() uint64 { return b.size }

type webgpuKernel struct {
	name     string
	layout   []BindingKind
	module   hal.ShaderModule
	bgLayout hal.BindGroupLayout
	plLayout hal.PipelineLayout
	pipeline hal.ComputePipeline
}

func (k *webgpuKernel) Name() string { return k.name }

type webgpuBinding struct {
	kernel *webgpuKernel
	group  hal.BindGroup
}

// pendingSubmit tracks one in-flight command buffer and its fence.
type pendingSubmit struct {
	fence hal.Fence
	cmd   hal.CommandBuffer
}

// WebGPU is a Backend over a wgpu HAL device. Dispatches are submitted
// without waiting; Read drains all in-flight submissions before copying the
// target buffer through a staging allocation.
type WebGPU struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	kernels  []*webgpuKernel
	bindings []*webgpuBinding
	pending  []pendingSubmit
	closed   bool
}

// NewWebGPU opens the first usable adapter, preferring discrete then
// integrated GPUs, and returns a device backend over it.
func NewWebGPU() (Backend, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not registered", ErrDeviceUnavailable)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %v", ErrDeviceUnavailable, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no adapters found", ErrDeviceUnavailable)
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %v", ErrDeviceUnavailable, err)
	}

	logger.Info("compute: device opened", "adapter", selected.Info.Name)
	return &WebGPU{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
	}, nil
}

// Name identifies the backend.
func (w *WebGPU) Name() string { return "webgpu" }

// Allocate creates a device buffer. Storage buffers carry copy usages in
// both directions so they can be seeded from the host and read back through
// a staging buffer.
func (w *WebGPU) Allocate(label string, size uint64, usage BufferUsage) (Buffer, error) {
	if w.closed {
		return nil, ErrClosed
	}
	var u gputypes.BufferUsage
	switch usage {
	case UsageUniform:
		u = gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	default:
		u = gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	}
	buf, err := w.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: u,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%d bytes): %v", ErrAllocationFailed, label, size, err)
	}
	return &webgpuBuffer{buf: buf, size: size}, nil
}

// Write enqueues a host-to-device copy. The device queue orders writes to
// the same buffer; completion is not awaited.
func (w *WebGPU) Write(buf Buffer, offset uint64, data []byte) error {
	if w.closed {
		return ErrClosed
	}
	b := buf.(*webgpuBuffer)
	if err := w.queue.WriteBuffer(b.buf, offset, data); err != nil {
		return fmt.Errorf("compute: write buffer: %w", err)
	}
	return nil
}

// Compile builds a compute pipeline from WGSL source. Pipelines live until
// Close.
func (w *WebGPU) Compile(name, wgsl, entry string, layout []BindingKind) (Kernel, error) {
	if w.closed {
		return nil, ErrClosed
	}

	module, err := w.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  name,
		Source: hal.ShaderSource{WGSL: wgsl},
	})
	if err != nil {
		return nil, fmt.Errorf("compute: create shader module %s: %w", name, err)
	}

	entries := make([]gputypes.BindGroupLayoutEntry, len(layout))
	for i, kind := range layout {
		e := gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageCompute,
		}
		switch kind {
		case BindUniform:
			e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
		case BindReadOnly:
			e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
		default:
			e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
		}
		entries[i] = e
	}

	bgLayout, err := w.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   name + "_bgl",
		Entries: entries,
	})
	if err != nil {
		w.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("compute: create bind group layout %s: %w", name, err)
	}

	plLayout, err := w.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            name + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		w.device.DestroyBindGroupLayout(bgLayout)
		w.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("compute: create pipeline layout %s: %w", name, err)
	}

	pipeline, err := w.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  name,
		Layout: plLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: entry,
		},
	})
	if err != nil {
		w.device.DestroyPipelineLayout(plLayout)
		w.device.DestroyBindGroupLayout(bgLayout)
		w.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("compute: create compute pipeline %s: %w", name, err)
	}

	k := &webgpuKernel{
		name:     name,
		layout:   layout,
		module:   module,
		bgLayout: bgLayout,
		plLayout: plLayout,
		pipeline: pipeline,
	}
	w.kernels = append(w.kernels, k)
	logger.Debug("compute: pipeline created", "kernel", name, "bindings", len(layout))
	return k, nil
}

// Bind creates a bind group pairing the kernel's slots with the buffers.
// Bind groups live until Close.
func (w *WebGPU) Bind(k Kernel, buffers []Buffer) (Binding, error) {
	if w.closed {
		return nil, ErrClosed
	}
	wk := k.(*webgpuKernel)
	if len(buffers) != len(wk.layout) {
		return nil, fmt.Errorf("compute: kernel %s wants %d buffers, got %d", wk.name, len(wk.layout), len(buffers))
	}

	entries := make([]gputypes.BindGroupEntry, len(buffers))
	for i, b := range buffers {
		entries[i] = gputypes.BindGroupEntry{
			Binding: uint32(i),
			Resource: gputypes.BufferBinding{
				Buffer: b.(*webgpuBuffer).buf.NativeHandle(),
				Offset: 0,
				Size:   0, // 0 = entire buffer
			},
		}
	}

	group, err := w.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   wk.name + "_bg",
		Layout:  wk.bgLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("compute: create bind group for %s: %w", wk.name, err)
	}

	bind := &webgpuBinding{kernel: wk, group: group}
	w.bindings = append(w.bindings, bind)
	return bind, nil
}

// Dispatch records one compute pass and submits it with a fence, without
// waiting for completion. The submission is drained on the next Read or at
// Close.
func (w *WebGPU) Dispatch(b Binding, groups [3]uint32) error {
	if w.closed {
		return ErrClosed
	}
	wb := b.(*webgpuBinding)

	encoder, err := w.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: wb.kernel.name,
	})
	if err != nil {
		return fmt.Errorf("compute: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(wb.kernel.name); err != nil {
		return fmt.Errorf("compute: begin encoding: %w", err)
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: wb.kernel.name})
	pass.SetPipeline(wb.kernel.pipeline)
	pass.SetBindGroup(0, wb.group, nil)
	pass.Dispatch(groups[0], groups[1], groups[2])
	pass.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("compute: end encoding: %w", err)
	}

	fence, err := w.device.CreateFence()
	if err != nil {
		w.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("compute: create fence: %w", err)
	}
	if err := w.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		w.device.DestroyFence(fence)
		w.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("compute: submit: %w", err)
	}

	w.pending = append(w.pending, pendingSubmit{fence: fence, cmd: cmdBuf})
	logger.Debug("compute: dispatched",
		"kernel", wb.kernel.name,
		"groups", fmt.Sprintf("%dx%dx%d", groups[0], groups[1], groups[2]))
	return nil
}

// drain waits for every in-flight submission and frees its resources.
func (w *WebGPU) drain() error {
	for _, p := range w.pending {
		ok, err := w.device.Wait(p.fence, 1, fenceTimeout)
		w.device.DestroyFence(p.fence)
		w.device.FreeCommandBuffer(p.cmd)
		if err != nil {
			w.pending = nil
			return fmt.Errorf("compute: wait for device: %w", err)
		}
		if !ok {
			w.pending = nil
			return fmt.Errorf("compute: device timeout after %v", fenceTimeout)
		}
	}
	w.pending = nil
	return nil
}

// Read drains all in-flight work, then copies the buffer into a staging
// allocation and returns a host copy of its first size bytes. This is the
// backend's only synchronization point.
func (w *WebGPU) Read(buf Buffer, size uint64) ([]byte, error) {
	if w.closed {
		return nil, ErrClosed
	}
	if err := w.drain(); err != nil {
		return nil, err
	}
	b := buf.(*webgpuBuffer)

	staging, err := w.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("compute: create staging buffer: %w", err)
	}
	defer w.device.DestroyBuffer(staging)

	encoder, err := w.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "readback",
	})
	if err != nil {
		return nil, fmt.Errorf("compute: create readback encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		return nil, fmt.Errorf("compute: begin readback encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(b.buf, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("compute: end readback encoding: %w", err)
	}
	defer w.device.FreeCommandBuffer(cmdBuf)

	fence, err := w.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("compute: create readback fence: %w", err)
	}
	defer w.device.DestroyFence(fence)

	if err := w.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("compute: submit readback: %w", err)
	}
	ok, err := w.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return nil, fmt.Errorf("compute: wait for readback: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("compute: readback timeout after %v", fenceTimeout)
	}

	out := make([]byte, size)
	if err := w.queue.ReadBuffer(staging, 0, out); err != nil {
		return nil, fmt.Errorf("compute: read staging buffer: %w", err)
	}
	return out, nil
}

// Release frees a device buffer.
func (w *WebGPU) Release(buf Buffer) {
	if w.closed {
		return
	}
	if b, ok := buf.(*webgpuBuffer); ok && b.buf != nil {
		w.device.DestroyBuffer(b.buf)
		b.buf = nil
	}
}

// Close drains in-flight work and releases pipelines, bind groups, and the
// device itself. Buffers still held by callers are invalid afterwards.
func (w *WebGPU) Close() {
	if w.closed {
		return
	}
	if err := w.drain(); err != nil {
		logger.Warn("compute: drain on close", "error", err)
	}
	for _, b := range w.bindings {
		w.device.DestroyBindGroup(b.group)
	}
	w.bindings = nil
	for _, k := range w.kernels {
		w.device.DestroyComputePipeline(k.pipeline)
		w.device.DestroyPipelineLayout(k.plLayout)
		w.device.DestroyBindGroupLayout(k.bgLayout)
		w.device.DestroyShaderModule(k.module)
	}
	w.kernels = nil
	w.device.Destroy()
	w.instance.Destroy()
	w.closed = true
}
