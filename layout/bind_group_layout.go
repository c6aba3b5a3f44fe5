// Package layout builds bind group layouts and pipeline layouts.
//
// A bind group layout takes the sparse, arbitrarily numbered entries of a
// descriptor and packs them into a dense index space:
//
//	expand  external textures become two plane textures and a uniform
//	        parameter buffer with synthetic binding numbers
//	sort    buffers first, dynamic-offset buffers first among buffers in
//	        binding number order, then by kind, visibility and
//	        kind-specific fields, binding number last
//	pack    the sorted position is the binding's Index
//
// Layouts are immutable once built and are deduplicated per device
// through a content-addressed Cache.
package layout

import (
	"fmt"
	"hash/fnv"
	"maps"
	"slices"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/internal/logging"
	"github.com/gogpu/bindcore/limits"
	"github.com/gogpu/bindcore/resource"
	"github.com/gogpu/bindcore/validation"
)

// Options configures layout validation.
type Options struct {
	Limits        limits.Limits
	AllowInternal bool
	Compatibility bool
}

func (o Options) entryOptions() binding.EntryOptions {
	return binding.EntryOptions{AllowInternal: o.AllowInternal, Compatibility: o.Compatibility}
}

// BindGroupLayoutDescriptor describes a bind group layout.
type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []binding.LayoutEntry
}

// ExternalTextureExpansion lists the synthetic bindings an external
// texture binding expands into.
type ExternalTextureExpansion struct {
	Plane0 binding.Number
	Plane1 binding.Number
	Params binding.Number
}

// DataLayout gives the bounds of the packed per-binding arrays a bind group
// of this layout carries. Backends use it to walk bind group data.
type DataLayout struct {
	// BufferCount is the length of the buffer (offset, size) array. Buffer
	// data index i corresponds to binding Index i.
	BufferCount binding.Index

	// BindingCount is the length of the resource reference array.
	BindingCount binding.Index

	// UnverifiedBufferCount is the length of the unverified size array.
	UnverifiedBufferCount uint32
}

// BindGroupLayout is a validated, packed bind group layout.
type BindGroupLayout struct {
	resource.Object

	bindings   []binding.Info
	indexOf    map[binding.Number]binding.Index
	expansions map[binding.Number]ExternalTextureExpansion
	counts     binding.Counts

	bufferCount        binding.Index
	dynamicBufferCount binding.Index
	staticSamplerCount uint32
	unverified         []binding.Index

	needsCrossBindingValidation bool
	hash                        uint64
}

// NewBindGroupLayout validates desc and builds a packed layout.
func NewBindGroupLayout(desc *BindGroupLayoutDescriptor, opts Options) (*BindGroupLayout, error) {
	if desc == nil {
		desc = &BindGroupLayoutDescriptor{}
	}
	l, err := buildBindGroupLayout(desc, opts)
	if err != nil {
		name := "[BindGroupLayout]"
		if desc.Label != "" {
			name = fmt.Sprintf("[BindGroupLayout %q]", desc.Label)
		}
		return nil, validation.WithContext(err, "validating %s", name)
	}
	return l, nil
}

func buildBindGroupLayout(desc *BindGroupLayoutDescriptor, opts Options) (*BindGroupLayout, error) {
	owner := make(map[binding.Number]int, len(desc.Entries))
	var counts binding.Counts
	for i := range desc.Entries {
		e := &desc.Entries[i]
		if err := binding.ValidateEntry(e, opts.Limits, opts.entryOptions()); err != nil {
			return nil, validation.WithContext(err, "validating entries[%d]", i)
		}
		for k := range e.ArraySize() {
			n := e.Binding + binding.Number(k)
			if j, dup := owner[n]; dup {
				return nil, validation.Errorf("binding number %d is declared by both entries[%d] and entries[%d]", n, j, i)
			}
			owner[n] = i
		}
		if err := binding.IncrementCounts(&counts, e); err != nil {
			return nil, validation.WithContext(err, "validating entries[%d]", i)
		}
	}
	if err := binding.ValidateCounts(opts.Limits, counts); err != nil {
		return nil, err
	}

	l := &BindGroupLayout{
		indexOf:    make(map[binding.Number]binding.Index),
		expansions: make(map[binding.Number]ExternalTextureExpansion),
		counts:     counts,
	}

	infos, err := l.expand(desc.Entries, owner)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(infos, compareInfo)
	l.bindings = infos

	for i, info := range infos {
		idx := binding.Index(i)
		l.indexOf[info.Binding] = idx
		switch b := info.Layout.(type) {
		case binding.BufferLayout:
			if idx != l.bufferCount {
				return nil, validation.Internalf("buffer binding %d packed at index %d after non-buffer bindings", info.Binding, idx)
			}
			l.bufferCount++
			if b.HasDynamicOffset {
				if idx != l.dynamicBufferCount {
					return nil, validation.Internalf("dynamic buffer binding %d packed at index %d after static buffers", info.Binding, idx)
				}
				l.dynamicBufferCount++
			}
			if b.MinBindingSize == 0 {
				l.unverified = append(l.unverified, idx)
			}
		case binding.StaticSamplerLayout:
			l.staticSamplerCount++
		}
	}
	l.hash = l.computeHash()
	l.Init("BindGroupLayout", desc.Label)

	logging.Logger().Debug("layout: packed bind group layout",
		"layout", l.String(),
		"bindings", len(l.bindings),
		"buffers", l.bufferCount,
		"dynamic", l.dynamicBufferCount,
		"unverified", len(l.unverified),
		"externalTextures", len(l.expansions))
	return l, nil
}

// expand converts entries into binding infos, replacing external textures
// by their three synthetic bindings and resolving static sampler pairings.
func (l *BindGroupLayout) expand(entries []binding.LayoutEntry, owner map[binding.Number]int) ([]binding.Info, error) {
	infos := make([]binding.Info, 0, len(entries))

	var external []int
	for i := range entries {
		e := &entries[i]
		if e.ExternalTexture != nil {
			external = append(external, i)
			continue
		}
		lay, err := e.ToLayout()
		if err != nil {
			return nil, validation.WithContext(err, "validating entries[%d]", i)
		}
		if ss, ok := lay.(binding.StaticSamplerLayout); ok && ss.PairedWithTexture {
			j, found := owner[ss.SampledTextureBinding]
			if !found || entries[j].Texture == nil {
				return nil, validation.Errorf("static sampler at binding %d is paired with binding %d, which is not a sampled texture in the layout",
					e.Binding, ss.SampledTextureBinding)
			}
			if entries[j].ArraySize() > 1 {
				return nil, validation.Errorf("static sampler at binding %d is paired with binding array %d", e.Binding, ss.SampledTextureBinding)
			}
			l.needsCrossBindingValidation = true
		}
		size := e.ArraySize()
		for k := range size {
			infos = append(infos, binding.Info{
				Binding:      e.Binding + binding.Number(k),
				Visibility:   e.Visibility,
				ArraySize:    size,
				IndexInArray: k,
				Layout:       lay,
			})
		}
	}

	// Synthetic numbers are allocated in binding number order so the
	// expansion does not depend on descriptor order.
	slices.SortFunc(external, func(a, b int) int {
		return int(entries[a].Binding) - int(entries[b].Binding)
	})
	next := binding.Number(binding.MaxBindingsPerBindGroup)
	for _, i := range external {
		e := &entries[i]
		exp := ExternalTextureExpansion{Plane0: next, Plane1: next + 1, Params: next + 2}
		next += 3
		l.expansions[e.Binding] = exp

		plane := binding.TextureLayout{SampleType: binding.SampleFloat, ViewDimension: planeViewDimension}
		infos = append(infos,
			binding.Info{Binding: exp.Plane0, Visibility: e.Visibility, ArraySize: 1, Layout: plane},
			binding.Info{Binding: exp.Plane1, Visibility: e.Visibility, ArraySize: 1, Layout: plane},
			binding.Info{Binding: exp.Params, Visibility: e.Visibility, ArraySize: 1, Layout: binding.BufferLayout{
				Type:           binding.BufferUniform,
				MinBindingSize: resource.ExternalTextureParamsSize,
			}},
		)
	}
	return infos, nil
}

func (l *BindGroupLayout) computeHash() uint64 {
	h := fnv.New64a()
	var buf []byte
	for i, info := range l.bindings {
		buf = appendInfo(buf[:0], binding.Index(i), info)
		h.Write(buf)
	}
	for _, n := range slices.Sorted(maps.Keys(l.expansions)) {
		e := l.expansions[n]
		buf = appendUint32(buf[:0], uint32(n), uint32(e.Plane0), uint32(e.Plane1), uint32(e.Params))
		h.Write(buf)
	}
	return h.Sum64()
}

// Hash returns the content hash. Layouts built from the same set of
// entries hash equally regardless of entry order.
func (l *BindGroupLayout) Hash() uint64 { return l.hash }

// Equal reports whether l and o describe the same bindings.
func (l *BindGroupLayout) Equal(o *BindGroupLayout) bool {
	if l == o {
		return true
	}
	if l == nil || o == nil || l.hash != o.hash {
		return false
	}
	return slices.Equal(l.bindings, o.bindings) &&
		maps.Equal(l.indexOf, o.indexOf) &&
		maps.Equal(l.expansions, o.expansions)
}

// IsEmpty reports whether the layout has no bindings.
func (l *BindGroupLayout) IsEmpty() bool { return len(l.bindings) == 0 }

// BindingCount returns the number of packed bindings, synthetic external
// texture bindings included.
func (l *BindGroupLayout) BindingCount() binding.Index { return binding.Index(len(l.bindings)) }

// BufferCount returns the number of buffer bindings. They occupy indices
// [0, BufferCount).
func (l *BindGroupLayout) BufferCount() binding.Index { return l.bufferCount }

// DynamicBufferCount returns the number of dynamic-offset buffers. They
// occupy indices [0, DynamicBufferCount) in binding number order.
func (l *BindGroupLayout) DynamicBufferCount() binding.Index { return l.dynamicBufferCount }

// UnverifiedBufferCount returns the number of buffers with a zero minimum
// binding size.
func (l *BindGroupLayout) UnverifiedBufferCount() uint32 { return uint32(len(l.unverified)) }

// UnverifiedBufferIndex returns the packed index of the j-th unverified
// buffer.
func (l *BindGroupLayout) UnverifiedBufferIndex(j uint32) binding.Index { return l.unverified[j] }

// StaticSamplerCount returns the number of static samplers.
func (l *BindGroupLayout) StaticSamplerCount() uint32 { return l.staticSamplerCount }

// Binding returns the binding at packed index i.
func (l *BindGroupLayout) Binding(i binding.Index) binding.Info { return l.bindings[i] }

// Bindings returns the packed bindings. The slice must not be modified.
func (l *BindGroupLayout) Bindings() []binding.Info { return l.bindings }

// BindingIndex maps a binding number to its packed index.
func (l *BindGroupLayout) BindingIndex(n binding.Number) (binding.Index, bool) {
	i, ok := l.indexOf[n]
	return i, ok
}

// ExternalTextureExpansions returns the expansion of every external
// texture binding, keyed by its user binding number.
func (l *BindGroupLayout) ExternalTextureExpansions() map[binding.Number]ExternalTextureExpansion {
	return maps.Clone(l.expansions)
}

// ExternalTextureExpansion returns the expansion of binding n.
func (l *BindGroupLayout) ExternalTextureExpansion(n binding.Number) (ExternalTextureExpansion, bool) {
	e, ok := l.expansions[n]
	return e, ok
}

// IsSyntheticBinding reports whether n was created by external texture
// expansion.
func (l *BindGroupLayout) IsSyntheticBinding(n binding.Number) bool {
	return n >= binding.MaxBindingsPerBindGroup
}

// Counts returns the aggregate binding counts of the descriptor entries.
func (l *BindGroupLayout) Counts() binding.Counts { return l.counts }

// NeedsCrossBindingValidation reports whether bind groups must verify
// static sampler pairings after per-entry validation.
func (l *BindGroupLayout) NeedsCrossBindingValidation() bool { return l.needsCrossBindingValidation }

// DataLayout returns the bounds of a bind group's packed arrays.
func (l *BindGroupLayout) DataLayout() DataLayout {
	return DataLayout{
		BufferCount:           l.bufferCount,
		BindingCount:          l.BindingCount(),
		UnverifiedBufferCount: l.UnverifiedBufferCount(),
	}
}
