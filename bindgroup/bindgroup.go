// Package bindgroup validates and builds bind groups: concrete sets of
// resources conforming to a bind group layout.
//
// A bind group stores its resources in the layout's packed index order.
// Backends walk the arrays returned by DataPointers using the bounds of
// the layout's DataLayout.
package bindgroup

import (
	"fmt"
	"slices"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/internal/logging"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/resource"
)

// WholeSize as an entry size binds the rest of the buffer after the
// offset.
const WholeSize = ^uint64(0)

// Entry binds one resource to a binding number. Exactly one of Buffer,
// Sampler, TextureView and ExternalTexture is set.
type Entry struct {
	Binding binding.Number

	Buffer *resource.Buffer
	Offset uint64
	Size   uint64

	Sampler         *resource.Sampler
	TextureView     *resource.TextureView
	ExternalTexture *resource.ExternalTexture
}

func (e *Entry) resourceCount() int {
	n := 0
	if e.Buffer != nil {
		n++
	}
	if e.Sampler != nil {
		n++
	}
	if e.TextureView != nil {
		n++
	}
	if e.ExternalTexture != nil {
		n++
	}
	return n
}

func (e *Entry) describe() string {
	var set []string
	if e.Buffer != nil {
		set = append(set, "buffer")
	}
	if e.Sampler != nil {
		set = append(set, "sampler")
	}
	if e.TextureView != nil {
		set = append(set, "textureView")
	}
	if e.ExternalTexture != nil {
		set = append(set, "externalTexture")
	}
	if len(set) == 0 {
		return "nothing"
	}
	return fmt.Sprint(set)
}

// Descriptor describes a bind group.
type Descriptor struct {
	Label   string
	Layout  *layout.BindGroupLayout
	Entries []Entry
}

// BufferBinding is a resolved buffer range.
type BufferBinding struct {
	Buffer *resource.Buffer
	Offset uint64
	Size   uint64
}

// DataPointers exposes the packed arrays of a bind group. Buffers has
// DataLayout().BufferCount elements and Bindings has
// DataLayout().BindingCount elements, both indexed by binding.Index.
// UnverifiedBufferSizes follows the layout's unverified buffer order.
type DataPointers struct {
	Buffers               []BufferBinding
	Bindings              []resource.Bindable
	UnverifiedBufferSizes []uint64
}

// BindGroup is an immutable set of bound resources.
type BindGroup struct {
	resource.Object

	layout     *layout.BindGroupLayout
	buffers    []BufferBinding
	bindings   []resource.Bindable
	unverified []uint64
	external   []*resource.ExternalTexture
}

// New validates desc and creates a bind group. The bind group holds a
// reference on its layout and on every bound resource until its last
// Release.
func New(desc *Descriptor, opts Options) (*BindGroup, error) {
	p, err := validateDescriptor(desc, opts)
	if err != nil {
		return nil, wrapError(desc, err)
	}
	l := desc.Layout

	g := &BindGroup{
		layout:   l,
		buffers:  p.buffers,
		bindings: p.bindings,
		external: p.external,
	}
	g.unverified = make([]uint64, l.UnverifiedBufferCount())
	for j := range l.UnverifiedBufferCount() {
		g.unverified[j] = g.buffers[l.UnverifiedBufferIndex(j)].Size
	}

	g.Init("BindGroup", desc.Label)
	l.AddRef()
	for _, r := range g.bindings {
		r.AddRef()
	}
	for _, et := range g.external {
		et.AddRef()
	}
	g.OnDestroy(func() {
		for _, et := range g.external {
			et.Release()
		}
		for _, r := range g.bindings {
			r.Release()
		}
		l.Release()
	})

	logging.Logger().Debug("bindgroup: created bind group",
		"group", g.String(), "layout", l.String(), "bindings", len(g.bindings))
	return g, nil
}

// Layout returns the bind group's layout.
func (g *BindGroup) Layout() *layout.BindGroupLayout { return g.layout }

// BindingAsBufferBinding returns the resolved buffer range at packed
// index i.
func (g *BindGroup) BindingAsBufferBinding(i binding.Index) (BufferBinding, bool) {
	if i >= binding.Index(len(g.buffers)) {
		return BufferBinding{}, false
	}
	return g.buffers[i], true
}

// BindingAsTextureView returns the view at packed index i.
func (g *BindGroup) BindingAsTextureView(i binding.Index) (*resource.TextureView, bool) {
	if i >= binding.Index(len(g.bindings)) {
		return nil, false
	}
	v, ok := g.bindings[i].(*resource.TextureView)
	return v, ok
}

// BindingAsSampler returns the sampler at packed index i, static samplers
// included.
func (g *BindGroup) BindingAsSampler(i binding.Index) (*resource.Sampler, bool) {
	if i >= binding.Index(len(g.bindings)) {
		return nil, false
	}
	s, ok := g.bindings[i].(*resource.Sampler)
	return s, ok
}

// UnverifiedBufferSizes returns the bound sizes of the buffers whose
// layout has no minimum binding size, in layout order.
func (g *BindGroup) UnverifiedBufferSizes() []uint64 { return g.unverified }

// ExternalTextures returns the external textures the group keeps alive.
func (g *BindGroup) ExternalTextures() []*resource.ExternalTexture {
	return slices.Clone(g.external)
}

// DataPointers returns the packed arrays. They must not be modified.
func (g *BindGroup) DataPointers() DataPointers {
	return DataPointers{
		Buffers:               g.buffers,
		Bindings:              g.bindings,
		UnverifiedBufferSizes: g.unverified,
	}
}
