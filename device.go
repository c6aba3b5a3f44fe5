package bindcore

import (
	"sync/atomic"

	"github.com/gogpu/bindcore/bindgroup"
	"github.com/gogpu/bindcore/commands"
	"github.com/gogpu/bindcore/internal/logging"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/limits"
	"github.com/gogpu/bindcore/pipeline"
	"github.com/gogpu/bindcore/resource"
	"github.com/gogpu/bindcore/validation"
)

// Device is the per-device validation context. It owns the limits, the
// layout caches and the empty bind group layout, and creates every object
// through them.
//
// Device is safe for concurrent use.
type Device struct {
	opts options

	bindGroupLayouts *layout.Cache[layout.BindGroupLayout, *layout.BindGroupLayout]
	pipelineLayouts  *layout.Cache[layout.PipelineLayout, *layout.PipelineLayout]
	empty            *layout.BindGroupLayout

	destroyed atomic.Bool
}

// NewDevice creates a device. It panics if the configured limits are
// invalid, which is a programming error.
func NewDevice(opts ...Option) *Device {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.limits.Validate(); err != nil {
		panic("bindcore: " + err.Error())
	}
	d := &Device{
		opts:             o,
		bindGroupLayouts: layout.NewCache[layout.BindGroupLayout, *layout.BindGroupLayout](),
		pipelineLayouts:  layout.NewCache[layout.PipelineLayout, *layout.PipelineLayout](),
	}
	empty, err := d.CreateBindGroupLayout(&layout.BindGroupLayoutDescriptor{Label: "empty"})
	if err != nil {
		panic("bindcore: creating the empty bind group layout: " + err.Error())
	}
	d.empty = empty
	logging.Logger().Info("bindcore: device created",
		"compatibility", o.compatibility, "maxBindGroups", o.limits.MaxBindGroups)
	return d
}

// Limits returns the device limits.
func (d *Device) Limits() limits.Limits { return d.opts.limits }

// IsCompatibilityMode reports whether the device runs in compatibility
// mode.
func (d *Device) IsCompatibilityMode() bool { return d.opts.compatibility }

// EmptyBindGroupLayout returns the device's bind group layout with no
// entries.
func (d *Device) EmptyBindGroupLayout() *layout.BindGroupLayout { return d.empty }

// CacheStats returns the statistics of the bind group layout and pipeline
// layout caches.
func (d *Device) CacheStats() (bindGroupLayouts, pipelineLayouts layout.Stats) {
	return d.bindGroupLayouts.Stats(), d.pipelineLayouts.Stats()
}

func (d *Device) layoutOptions() layout.Options {
	return layout.Options{Limits: d.opts.limits, AllowInternal: d.opts.allowInternal, Compatibility: d.opts.compatibility}
}

func (d *Device) pipelineOptions() pipeline.Options {
	return pipeline.Options{Limits: d.opts.limits, Compatibility: d.opts.compatibility, Layouts: d}
}

// check reports use of a destroyed device.
func (d *Device) check(op string) error {
	if d.destroyed.Load() {
		logging.Logger().Warn("bindcore: device used after Destroy", "op", op)
		return d.report(validation.Errorf("%s called on a destroyed device", op))
	}
	return nil
}

// report forwards err to the error callback and returns it.
func (d *Device) report(err error) error {
	if err != nil && d.opts.onError != nil {
		d.opts.onError(err)
	}
	return err
}

// CreateBuffer creates a buffer.
func (d *Device) CreateBuffer(desc *resource.BufferDescriptor) (*resource.Buffer, error) {
	if err := d.check("CreateBuffer"); err != nil {
		return nil, err
	}
	b, err := resource.NewBuffer(desc, d.opts.limits)
	return b, d.report(err)
}

// CreateTexture creates a texture.
func (d *Device) CreateTexture(desc *resource.TextureDescriptor) (*resource.Texture, error) {
	if err := d.check("CreateTexture"); err != nil {
		return nil, err
	}
	t, err := resource.NewTexture(desc, d.opts.limits)
	return t, d.report(err)
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc *resource.SamplerDescriptor) (*resource.Sampler, error) {
	if err := d.check("CreateSampler"); err != nil {
		return nil, err
	}
	s, err := resource.NewSampler(desc)
	return s, d.report(err)
}

// CreateExternalTexture creates an external texture.
func (d *Device) CreateExternalTexture(desc *resource.ExternalTextureDescriptor) (*resource.ExternalTexture, error) {
	if err := d.check("CreateExternalTexture"); err != nil {
		return nil, err
	}
	e, err := resource.NewExternalTexture(desc)
	return e, d.report(err)
}

// CreateBindGroupLayout validates desc and returns the device's unique
// layout with that content. A structurally equal layout created earlier
// and still alive is returned with an extra reference.
func (d *Device) CreateBindGroupLayout(desc *layout.BindGroupLayoutDescriptor) (*layout.BindGroupLayout, error) {
	if err := d.check("CreateBindGroupLayout"); err != nil {
		return nil, err
	}
	candidate, err := layout.NewBindGroupLayout(desc, d.layoutOptions())
	if err != nil {
		return nil, d.report(err)
	}
	l, hit := d.bindGroupLayouts.GetOrInsert(candidate)
	if hit {
		candidate.Release()
	}
	return l, nil
}

// CreatePipelineLayout validates desc and returns the device's unique
// pipeline layout with that content.
func (d *Device) CreatePipelineLayout(desc *layout.PipelineLayoutDescriptor) (*layout.PipelineLayout, error) {
	if err := d.check("CreatePipelineLayout"); err != nil {
		return nil, err
	}
	candidate, err := layout.NewPipelineLayout(desc, d.layoutOptions())
	if err != nil {
		return nil, d.report(err)
	}
	p, hit := d.pipelineLayouts.GetOrInsert(candidate)
	if hit {
		candidate.Release()
	}
	return p, nil
}

// CreateBindGroup creates a bind group.
func (d *Device) CreateBindGroup(desc *bindgroup.Descriptor) (*bindgroup.BindGroup, error) {
	if err := d.check("CreateBindGroup"); err != nil {
		return nil, err
	}
	g, err := bindgroup.New(desc, bindgroup.Options{Limits: d.opts.limits, Compatibility: d.opts.compatibility})
	return g, d.report(err)
}

// CreateComputePipeline creates a compute pipeline. A default layout is
// deduplicated through the device caches.
func (d *Device) CreateComputePipeline(desc *pipeline.ComputePipelineDescriptor) (*pipeline.ComputePipeline, error) {
	if err := d.check("CreateComputePipeline"); err != nil {
		return nil, err
	}
	p, err := pipeline.NewComputePipeline(desc, d.pipelineOptions())
	return p, d.report(err)
}

// CreateRenderPipeline creates a render pipeline.
func (d *Device) CreateRenderPipeline(desc *pipeline.RenderPipelineDescriptor) (*pipeline.RenderPipeline, error) {
	if err := d.check("CreateRenderPipeline"); err != nil {
		return nil, err
	}
	p, err := pipeline.NewRenderPipeline(desc, d.pipelineOptions())
	return p, d.report(err)
}

// BeginComputePass starts a compute pass using the device limits.
func (d *Device) BeginComputePass() *commands.ComputePassEncoder {
	return commands.NewComputePassEncoder(d.opts.limits)
}

// BeginRenderPass starts a render pass using the device limits.
func (d *Device) BeginRenderPass() *commands.RenderPassEncoder {
	return commands.NewRenderPassEncoder(d.opts.limits)
}

// Destroy releases the device's own references and empties its caches.
// Objects created from the device stay valid while referenced. Later
// creation calls fail.
func (d *Device) Destroy() {
	if !d.destroyed.CompareAndSwap(false, true) {
		return
	}
	d.empty.Release()
	d.bindGroupLayouts.Clear()
	d.pipelineLayouts.Clear()
	logging.Logger().Info("bindcore: device destroyed")
}
