// Package native lowers validated bindcore objects to gogpu/wgpu HAL
// objects.
//
// A Lowerer mirrors frontend buffers, textures, views and samplers into
// HAL objects on first use and lowers bind group layouts, pipeline layouts
// and bind groups by walking their packed data. Every HAL object is
// destroyed when its frontend object releases its last reference, or on
// Close, whichever comes first.
//
// Thread Safety: a Lowerer is safe for concurrent use.
package native

import (
	"fmt"
	"hash/fnv"
	"maps"
	"slices"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	"github.com/google/uuid"

	"github.com/gogpu/bindcore/bindgroup"
	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/internal/logging"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/pipeline"
	"github.com/gogpu/bindcore/resource"
)

// tracked is a frontend object whose HAL mirror is destroyed with it.
type tracked interface {
	ID() uuid.UUID
	Alive() bool
	OnDestroy(func())
}

// compiledShader is a HAL shader module and the WGSL it was compiled from.
type compiledShader struct {
	source string
	module hal.ShaderModule
}

// Lowerer creates HAL objects for frontend objects.
type Lowerer struct {
	mu     sync.Mutex
	device hal.Device
	closed bool

	buffers          map[uuid.UUID]hal.Buffer
	textures         map[uuid.UUID]hal.Texture
	views            map[uuid.UUID]hal.TextureView
	samplers         map[uuid.UUID]hal.Sampler
	bindGroupLayouts map[uuid.UUID]hal.BindGroupLayout
	pipelineLayouts  map[uuid.UUID]hal.PipelineLayout
	bindGroups       map[uuid.UUID]hal.BindGroup
	computePipelines map[uuid.UUID]hal.ComputePipeline
	shaderModules    map[uint64]compiledShader
	uncachedShaders  []hal.ShaderModule

	shaderHits, shaderMisses uint64

	// empty stands in for unused groups of a pipeline layout.
	empty hal.BindGroupLayout
}

// New creates a Lowerer over device. The Lowerer does not own the device.
func New(device hal.Device) (*Lowerer, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	return &Lowerer{
		device:           device,
		buffers:          make(map[uuid.UUID]hal.Buffer),
		textures:         make(map[uuid.UUID]hal.Texture),
		views:            make(map[uuid.UUID]hal.TextureView),
		samplers:         make(map[uuid.UUID]hal.Sampler),
		bindGroupLayouts: make(map[uuid.UUID]hal.BindGroupLayout),
		pipelineLayouts:  make(map[uuid.UUID]hal.PipelineLayout),
		bindGroups:       make(map[uuid.UUID]hal.BindGroup),
		computePipelines: make(map[uuid.UUID]hal.ComputePipeline),
		shaderModules:    make(map[uint64]compiledShader),
	}, nil
}

// NewFromProvider creates a Lowerer over the HAL device behind a shared
// device provider. The provider's device must expose HalDevice, returning
// either a hal.Device or an any holding one.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Lowerer, error) {
	if provider == nil {
		return nil, ErrNoHALDevice
	}
	var device hal.Device
	switch d := provider.Device().(type) {
	case interface{ HalDevice() hal.Device }:
		device = d.HalDevice()
	case interface{ HalDevice() any }:
		device, _ = d.HalDevice().(hal.Device)
	}
	if device == nil {
		return nil, ErrNoHALDevice
	}
	return New(device)
}

// Device returns the HAL device.
func (l *Lowerer) Device() hal.Device { return l.device }

// lower returns the cached mirror of obj or creates one. The destroy hook
// is registered once, on creation.
func lower[H any](l *Lowerer, cache map[uuid.UUID]H, obj tracked, create func() (H, error), destroy func(H)) (H, error) {
	var zero H
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return zero, ErrClosed
	}
	if !obj.Alive() {
		return zero, fmt.Errorf("%w: %s", ErrDestroyed, obj)
	}
	id := obj.ID()
	if h, ok := cache[id]; ok {
		return h, nil
	}
	h, err := create()
	if err != nil {
		return zero, err
	}
	cache[id] = h
	obj.OnDestroy(func() {
		l.mu.Lock()
		h, ok := cache[id]
		delete(cache, id)
		l.mu.Unlock()
		if ok {
			destroy(h)
		}
	})
	return h, nil
}

// Buffer returns the HAL buffer mirroring b.
func (l *Lowerer) Buffer(b *resource.Buffer) (hal.Buffer, error) {
	return lower(l, l.buffers, b, func() (hal.Buffer, error) {
		return l.device.CreateBuffer(bufferDescriptor(b))
	}, l.device.DestroyBuffer)
}

// Texture returns the HAL texture mirroring t.
func (l *Lowerer) Texture(t *resource.Texture) (hal.Texture, error) {
	return lower(l, l.textures, t, func() (hal.Texture, error) {
		return l.device.CreateTexture(textureDescriptor(t))
	}, l.device.DestroyTexture)
}

// TextureView returns the HAL view mirroring v, lowering its texture
// first.
func (l *Lowerer) TextureView(v *resource.TextureView) (hal.TextureView, error) {
	tex, err := l.Texture(v.Texture())
	if err != nil {
		return nil, err
	}
	return lower(l, l.views, v, func() (hal.TextureView, error) {
		return l.device.CreateTextureView(tex, viewDescriptor(v))
	}, l.device.DestroyTextureView)
}

// Sampler returns the HAL sampler mirroring s.
func (l *Lowerer) Sampler(s *resource.Sampler) (hal.Sampler, error) {
	return lower(l, l.samplers, s, func() (hal.Sampler, error) {
		return l.device.CreateSampler(samplerDescriptor(s))
	}, l.device.DestroySampler)
}

// BindGroupLayout returns the HAL layout for bgl.
func (l *Lowerer) BindGroupLayout(bgl *layout.BindGroupLayout) (hal.BindGroupLayout, error) {
	entries, err := BindGroupLayoutEntries(bgl)
	if err != nil {
		return nil, err
	}
	return lower(l, l.bindGroupLayouts, bgl, func() (hal.BindGroupLayout, error) {
		return l.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: bgl.Label(), Entries: entries})
	}, l.device.DestroyBindGroupLayout)
}

func (l *Lowerer) emptyLayout() (hal.BindGroupLayout, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if l.empty == nil {
		e, err := l.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: "empty"})
		if err != nil {
			return nil, err
		}
		l.empty = e
	}
	return l.empty, nil
}

// PipelineLayout returns the HAL layout for pl. Unused groups below the
// highest used one get an empty layout. Immediate data lowers to a single
// push constant range visible to every stage.
func (l *Lowerer) PipelineLayout(pl *layout.PipelineLayout) (hal.PipelineLayout, error) {
	var groups []hal.BindGroupLayout
	if last, ok := pl.UsedGroups().Highest(); ok {
		groups = make([]hal.BindGroupLayout, last+1)
		for g := range groups {
			var err error
			if bgl := pl.BindGroupLayout(binding.GroupIndex(g)); bgl != nil {
				groups[g], err = l.BindGroupLayout(bgl)
			} else {
				groups[g], err = l.emptyLayout()
			}
			if err != nil {
				return nil, fmt.Errorf("native: lowering group %d of %s: %w", g, pl, err)
			}
		}
	}
	var ranges []hal.PushConstantRange
	if n := pl.ImmediateSize(); n > 0 {
		ranges = []hal.PushConstantRange{{Stages: convertStages(binding.StageAll), Range: hal.Range{Start: 0, End: n}}}
	}
	return lower(l, l.pipelineLayouts, pl, func() (hal.PipelineLayout, error) {
		return l.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label:              pl.Label(),
			BindGroupLayouts:   groups,
			PushConstantRanges: ranges,
		})
	}, l.device.DestroyPipelineLayout)
}

// BindGroup returns the HAL bind group for bg. Resources are lowered in
// packed order, so external texture planes and static samplers land on
// their layout entries.
func (l *Lowerer) BindGroup(bg *bindgroup.BindGroup) (hal.BindGroup, error) {
	bgl := bg.Layout()
	halLayout, err := l.BindGroupLayout(bgl)
	if err != nil {
		return nil, err
	}
	data := bg.DataPointers()
	entries := make([]gputypes.BindGroupEntry, 0, len(data.Bindings))
	for i, info := range bgl.Bindings() {
		res, err := l.bindingResource(info, data, binding.Index(i))
		if err != nil {
			return nil, fmt.Errorf("native: lowering binding %d of %s: %w", info.Binding, bg, err)
		}
		entries = append(entries, gputypes.BindGroupEntry{Binding: uint32(info.Binding), Resource: res})
	}
	return lower(l, l.bindGroups, bg, func() (hal.BindGroup, error) {
		return l.device.CreateBindGroup(&hal.BindGroupDescriptor{Label: bg.Label(), Layout: halLayout, Entries: entries})
	}, l.device.DestroyBindGroup)
}

func (l *Lowerer) bindingResource(info binding.Info, data bindgroup.DataPointers, i binding.Index) (gputypes.BindingResource, error) {
	if _, ok := info.Layout.(binding.BufferLayout); ok {
		bb := data.Buffers[i]
		buf, err := l.Buffer(bb.Buffer)
		if err != nil {
			return nil, err
		}
		return gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: bb.Offset, Size: bb.Size}, nil
	}
	switch r := data.Bindings[i].(type) {
	case *resource.TextureView:
		v, err := l.TextureView(r)
		if err != nil {
			return nil, err
		}
		return gputypes.TextureViewBinding{TextureView: v.NativeHandle()}, nil
	case *resource.Sampler:
		s, err := l.Sampler(r)
		if err != nil {
			return nil, err
		}
		return gputypes.SamplerBinding{Sampler: s.NativeHandle()}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedBinding, data.Bindings[i])
}

// ShaderModule compiles WGSL with naga and creates a HAL shader module
// from the SPIR-V. Modules are cached by source, so lowering the same WGSL
// twice compiles it once. A module lives until Close.
func (l *Lowerer) ShaderModule(label, source string) (hal.ShaderModule, error) {
	key := hashSource(source)
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	if c, ok := l.shaderModules[key]; ok && c.source == source {
		l.shaderHits++
		l.mu.Unlock()
		return c.module, nil
	}
	l.mu.Unlock()

	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("native: compiling %q: %w", label, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	// Double-check: another goroutine may have compiled the same source.
	if c, ok := l.shaderModules[key]; ok && c.source == source {
		l.shaderHits++
		return c.module, nil
	}
	m, err := l.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirvWords(spirv)},
	})
	if err != nil {
		return nil, fmt.Errorf("native: creating shader module %q: %w", label, err)
	}
	l.shaderMisses++
	if _, taken := l.shaderModules[key]; taken {
		// Hash collision with a different source.
		l.uncachedShaders = append(l.uncachedShaders, m)
		return m, nil
	}
	l.shaderModules[key] = compiledShader{source: source, module: m}
	return m, nil
}

// ShaderStats returns the shader module cache hits and misses.
func (l *Lowerer) ShaderStats() (hits, misses uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shaderHits, l.shaderMisses
}

func hashSource(source string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(source))
	return h.Sum64()
}

// ComputePipeline creates the HAL pipeline for p from a module created by
// ShaderModule.
func (l *Lowerer) ComputePipeline(p *pipeline.ComputePipeline, module hal.ShaderModule, constants map[string]float64) (hal.ComputePipeline, error) {
	halLayout, err := l.PipelineLayout(p.Layout())
	if err != nil {
		return nil, err
	}
	ep := p.EntryPoint(binding.StageCompute)
	return lower(l, l.computePipelines, p, func() (hal.ComputePipeline, error) {
		return l.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  p.Label(),
			Layout: halLayout,
			Compute: hal.ComputeState{
				Module:     module,
				EntryPoint: ep.Name,
				Constants:  constants,
			},
		})
	}, l.device.DestroyComputePipeline)
}

// Len returns the number of live HAL objects, shader modules included.
func (l *Lowerer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffers) + len(l.textures) + len(l.views) + len(l.samplers) +
		len(l.bindGroupLayouts) + len(l.pipelineLayouts) + len(l.bindGroups) +
		len(l.computePipelines) + len(l.shaderModules) + len(l.uncachedShaders)
}

// Close destroys every HAL object still alive, dependents first. Later
// lowering calls fail with ErrClosed.
func (l *Lowerer) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	res := GPUResources{
		Device:           l.device,
		ComputePipelines: drain(l.computePipelines),
		BindGroups:       drain(l.bindGroups),
		PipelineLayouts:  drain(l.pipelineLayouts),
		BindGroupLayouts: append(drain(l.bindGroupLayouts), l.empty),
		ShaderModules:    append(shaderList(l.shaderModules), l.uncachedShaders...),
		Views:            drain(l.views),
		Samplers:         drain(l.samplers),
		Textures:         drain(l.textures),
		Buffers:          drain(l.buffers),
	}
	clear(l.shaderModules)
	l.uncachedShaders = nil
	l.empty = nil
	l.mu.Unlock()

	logging.Logger().Debug("native: closing lowerer", "objects", res.Len())
	res.Destroy()
}

func shaderList(m map[uint64]compiledShader) []hal.ShaderModule {
	out := make([]hal.ShaderModule, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[k].module)
	}
	return out
}

func drain[H any](m map[uuid.UUID]H) []H {
	out := make([]H, 0, len(m))
	for id, h := range m {
		out = append(out, h)
		delete(m, id)
	}
	return out
}
