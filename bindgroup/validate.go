package bindgroup

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/format"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/limits"
	"github.com/gogpu/bindcore/resource"
	"github.com/gogpu/bindcore/validation"
)

// Options configures bind group validation.
type Options struct {
	Limits        limits.Limits
	Compatibility bool
}

// Validate checks desc against its layout without creating a bind group.
func Validate(desc *Descriptor, opts Options) error {
	_, err := validateDescriptor(desc, opts)
	return wrapError(desc, err)
}

func wrapError(desc *Descriptor, err error) error {
	if err == nil {
		return nil
	}
	name := "[BindGroup]"
	if desc != nil && desc.Label != "" {
		name = fmt.Sprintf("[BindGroup %q]", desc.Label)
	}
	return validation.WithContext(err, "validating %s", name)
}

// packed is the validated content of a descriptor in packed index order.
type packed struct {
	buffers  []BufferBinding
	bindings []resource.Bindable
	external []*resource.ExternalTexture
}

func validateDescriptor(desc *Descriptor, opts Options) (*packed, error) {
	if desc == nil {
		return nil, validation.Errorf("bind group descriptor is nil")
	}
	l := desc.Layout
	if l == nil {
		return nil, validation.Errorf("bind group layout is nil")
	}
	if !l.Alive() {
		return nil, validation.Errorf("bind group layout %s is destroyed", l)
	}

	exps := l.ExternalTextureExpansions()
	want := int(l.BindingCount()) - int(l.StaticSamplerCount()) - 2*len(exps)
	if len(desc.Entries) != want {
		return nil, validation.Errorf("number of entries (%d) does not match the number of entries expected by %s (%d)",
			len(desc.Entries), l, want)
	}

	p := &packed{
		buffers:  make([]BufferBinding, l.BufferCount()),
		bindings: make([]resource.Bindable, l.BindingCount()),
	}
	setBy := make(map[binding.Index]int, len(desc.Entries))
	claim := func(i int, n binding.Number, idx binding.Index) error {
		if j, dup := setBy[idx]; dup {
			return validation.Errorf("binding %d is set by both entries[%d] and entries[%d]", n, j, i)
		}
		setBy[idx] = i
		return nil
	}

	for i := range desc.Entries {
		e := &desc.Entries[i]
		if err := validateEntry(l, e, opts, p, func(n binding.Number, idx binding.Index) error {
			return claim(i, n, idx)
		}); err != nil {
			return nil, validation.WithContext(err, "validating entries[%d]", i)
		}
	}

	for idx, info := range l.Bindings() {
		if ss, ok := info.Layout.(binding.StaticSamplerLayout); ok {
			p.bindings[idx] = ss.Sampler
		}
	}
	if err := validateYCbCr(l, p); err != nil {
		return nil, err
	}
	return p, nil
}

func validateEntry(l *layout.BindGroupLayout, e *Entry, opts Options, p *packed,
	claim func(binding.Number, binding.Index) error,
) error {
	if exp, ok := l.ExternalTextureExpansion(e.Binding); ok {
		return validateExternalTexture(l, e, exp, p, claim)
	}
	idx, ok := l.BindingIndex(e.Binding)
	if !ok || l.IsSyntheticBinding(e.Binding) {
		return validation.Errorf("binding %d is not present in %s", e.Binding, l)
	}
	if err := claim(e.Binding, idx); err != nil {
		return err
	}

	info := l.Binding(idx)
	switch b := info.Layout.(type) {
	case binding.BufferLayout:
		if err := expectOnly(e, "a buffer", e.Buffer != nil); err != nil {
			return err
		}
		size, err := validateBuffer(e, b, opts.Limits)
		if err != nil {
			return err
		}
		p.buffers[idx] = BufferBinding{Buffer: e.Buffer, Offset: e.Offset, Size: size}
		p.bindings[idx] = e.Buffer
	case binding.TextureLayout:
		if err := expectOnly(e, "a texture view", e.TextureView != nil); err != nil {
			return err
		}
		if err := validateTexture(e.TextureView, b, opts); err != nil {
			return err
		}
		p.bindings[idx] = e.TextureView
	case binding.StorageTextureLayout:
		if err := expectOnly(e, "a texture view", e.TextureView != nil); err != nil {
			return err
		}
		if err := validateStorageTexture(e.TextureView, b, opts); err != nil {
			return err
		}
		p.bindings[idx] = e.TextureView
	case binding.SamplerLayout:
		if err := expectOnly(e, "a sampler", e.Sampler != nil); err != nil {
			return err
		}
		if err := validateSampler(e.Sampler, b); err != nil {
			return err
		}
		p.bindings[idx] = e.Sampler
	case binding.InputAttachmentLayout:
		if err := expectOnly(e, "a texture view", e.TextureView != nil); err != nil {
			return err
		}
		if err := validateInputAttachment(e.TextureView, b); err != nil {
			return err
		}
		p.bindings[idx] = e.TextureView
	case binding.StaticSamplerLayout:
		return validation.Errorf("binding %d is a static sampler and must not have an entry", e.Binding)
	default:
		return validation.Internalf("binding %d has unexpected layout %T", e.Binding, info.Layout)
	}
	return nil
}

// expectOnly checks that the entry sets exactly the resource the binding
// expects.
func expectOnly(e *Entry, what string, present bool) error {
	if !present || e.resourceCount() != 1 {
		return validation.Errorf("binding %d expects %s; the entry sets %s", e.Binding, what, e.describe())
	}
	return nil
}

func validateBuffer(e *Entry, b binding.BufferLayout, lim limits.Limits) (uint64, error) {
	buf := e.Buffer
	if !buf.Alive() {
		return 0, validation.Errorf("buffer %s is destroyed", buf)
	}
	if e.Offset > buf.Size() {
		return 0, validation.Errorf("offset (%d) is larger than the size (%d) of %s", e.Offset, buf.Size(), buf)
	}
	size := e.Size
	if size == WholeSize {
		size = buf.Size() - e.Offset
	}
	if size == 0 {
		return 0, validation.Errorf("binding size is zero")
	}
	if size > buf.Size()-e.Offset {
		return 0, validation.Errorf("binding range (offset: %d, size: %d) does not fit in %s of size %d",
			e.Offset, size, buf, buf.Size())
	}

	var (
		usageOK   bool
		usageName string
		align     uint32
		maxSize   uint64
	)
	switch b.Type {
	case binding.BufferUniform:
		usageOK, usageName = buf.HasUsage(gputypes.BufferUsageUniform), "Uniform"
		align, maxSize = lim.MinUniformBufferOffsetAlignment, lim.MaxUniformBufferBindingSize
	case binding.BufferStorage, binding.BufferReadOnlyStorage:
		usageOK, usageName = buf.HasUsage(gputypes.BufferUsageStorage), "Storage"
		align, maxSize = lim.MinStorageBufferOffsetAlignment, lim.MaxStorageBufferBindingSize
	case binding.BufferInternalStorage:
		usageOK = buf.HasUsage(gputypes.BufferUsageStorage) || buf.HasInternalUsage(resource.InternalUsageStorage)
		usageName = "Storage or internal storage"
		align, maxSize = lim.MinStorageBufferOffsetAlignment, lim.MaxStorageBufferBindingSize
	case binding.BufferReadOnlyInternalStorage:
		usageOK = buf.HasUsage(gputypes.BufferUsageStorage) ||
			buf.HasInternalUsage(resource.InternalUsageStorage) ||
			buf.HasInternalUsage(resource.InternalUsageReadOnlyStorage)
		usageName = "Storage or internal read-only storage"
		align, maxSize = lim.MinStorageBufferOffsetAlignment, lim.MaxStorageBufferBindingSize
	default:
		return 0, validation.Internalf("unexpected buffer binding type %s", b.Type)
	}

	if !usageOK {
		return 0, validation.Errorf("%s lacks the %s usage required by a %s binding", buf, usageName, b.Type)
	}
	if align != 0 && e.Offset%uint64(align) != 0 {
		return 0, validation.Errorf("offset (%d) is not a multiple of the %s offset alignment (%d)", e.Offset, b.Type, align)
	}
	if b.Type.IsStorage() && size%4 != 0 {
		return 0, validation.Errorf("binding size (%d) of a storage buffer is not a multiple of 4", size)
	}
	if size < b.MinBindingSize {
		return 0, validation.Errorf("binding size (%d) is smaller than the minimum binding size (%d)", size, b.MinBindingSize)
	}
	if size > maxSize {
		return 0, validation.Errorf("binding size (%d) exceeds the maximum %s binding size (%d)", size, b.Type, maxSize)
	}
	return size, nil
}

// viewSampleTypes returns the view sample types a layout sample type
// accepts.
func viewSampleTypes(t binding.SampleType) format.SampleTypeBit {
	if t == binding.SampleInternalResolve {
		return format.SampleTypeFloat | format.SampleTypeUnfilterableFloat
	}
	return t.Bit()
}

func validateTexture(v *resource.TextureView, b binding.TextureLayout, opts Options) error {
	if !v.Alive() {
		return validation.Errorf("texture view %s is destroyed", v)
	}
	tex := v.Texture()
	if !tex.HasUsage(gputypes.TextureUsageTextureBinding) {
		return validation.Errorf("texture of %s lacks the TextureBinding usage", v)
	}
	if v.Aspects().Count() != 1 {
		return validation.Errorf("%s selects multiple aspects (%s)", v, v.Aspects())
	}
	if multi := tex.SampleCount() > 1; multi != b.Multisampled {
		return validation.Errorf("sample count (%d) of %s does not match the layout multisampled flag (%t)",
			tex.SampleCount(), v, b.Multisampled)
	}
	if v.SampleTypes()&viewSampleTypes(b.SampleType) == 0 {
		return validation.Errorf("sample types of %s (%s) are not compatible with the layout sample type (%s)",
			v, v.SampleTypes(), b.SampleType)
	}
	if v.Dimension() != b.ViewDimension {
		return validation.Errorf("dimension (%s) of %s does not match the layout view dimension (%s)",
			v.Dimension(), v, b.ViewDimension)
	}
	return validateCompatibilityView(v, opts)
}

func validateStorageTexture(v *resource.TextureView, b binding.StorageTextureLayout, opts Options) error {
	if !v.Alive() {
		return validation.Errorf("texture view %s is destroyed", v)
	}
	if !v.Texture().HasUsage(gputypes.TextureUsageStorageBinding) {
		return validation.Errorf("texture of %s lacks the StorageBinding usage", v)
	}
	if v.MipLevelCount() != 1 {
		return validation.Errorf("%s has %d mip levels; a storage texture binding needs exactly 1", v, v.MipLevelCount())
	}
	if v.Dimension() != b.ViewDimension {
		return validation.Errorf("dimension (%s) of %s does not match the layout view dimension (%s)",
			v.Dimension(), v, b.ViewDimension)
	}
	if v.Format() != b.Format {
		return validation.Errorf("format (%s) of %s does not match the layout format (%s)",
			v.Format(), v, b.Format)
	}
	return validateCompatibilityView(v, opts)
}

// validateCompatibilityView applies the compatibility-mode restriction
// that a view covers every layer and matches the texture's binding view
// dimension.
func validateCompatibilityView(v *resource.TextureView, opts Options) error {
	if !opts.Compatibility {
		return nil
	}
	tex := v.Texture()
	if v.BaseArrayLayer() != 0 || v.ArrayLayerCount() != tex.ArrayLayerCount() {
		return validation.Errorf("%s covers layers [%d, %d) but compatibility mode requires all %d layers",
			v, v.BaseArrayLayer(), v.BaseArrayLayer()+v.ArrayLayerCount(), tex.ArrayLayerCount())
	}
	if v.Dimension() != tex.BindingViewDimension() {
		return validation.Errorf("dimension (%s) of %s does not match the texture binding view dimension (%s)",
			v.Dimension(), v, tex.BindingViewDimension())
	}
	return nil
}

func validateSampler(s *resource.Sampler, b binding.SamplerLayout) error {
	if !s.Alive() {
		return validation.Errorf("sampler %s is destroyed", s)
	}
	if s.IsYCbCr() {
		return validation.Errorf("YCbCr %s can only be used as a static sampler", s)
	}
	switch b.Type {
	case binding.SamplerFiltering:
		if s.IsComparison() {
			return validation.Errorf("comparison %s is bound to a filtering sampler binding", s)
		}
	case binding.SamplerNonFiltering:
		if s.IsComparison() {
			return validation.Errorf("comparison %s is bound to a non-filtering sampler binding", s)
		}
		if s.IsFiltering() {
			return validation.Errorf("filtering %s is bound to a non-filtering sampler binding", s)
		}
	case binding.SamplerComparison:
		if !s.IsComparison() {
			return validation.Errorf("non-comparison %s is bound to a comparison sampler binding", s)
		}
	default:
		return validation.Internalf("unexpected sampler binding type %s", b.Type)
	}
	return nil
}

func validateInputAttachment(v *resource.TextureView, b binding.InputAttachmentLayout) error {
	if !v.Alive() {
		return validation.Errorf("texture view %s is destroyed", v)
	}
	if !v.Texture().HasUsage(gputypes.TextureUsageRenderAttachment) {
		return validation.Errorf("texture of %s lacks the RenderAttachment usage", v)
	}
	if v.Aspects().Count() != 1 {
		return validation.Errorf("%s selects multiple aspects (%s)", v, v.Aspects())
	}
	if v.Dimension() != gputypes.TextureViewDimension2D {
		return validation.Errorf("input attachment %s is not a 2D view", v)
	}
	if v.SampleTypes()&viewSampleTypes(b.SampleType) == 0 {
		return validation.Errorf("sample types of %s (%s) are not compatible with the layout sample type (%s)",
			v, v.SampleTypes(), b.SampleType)
	}
	return nil
}

func validateExternalTexture(l *layout.BindGroupLayout, e *Entry, exp layout.ExternalTextureExpansion, p *packed,
	claim func(binding.Number, binding.Index) error,
) error {
	if err := expectOnly(e, "an external texture", e.ExternalTexture != nil); err != nil {
		return err
	}
	et := e.ExternalTexture
	if !et.Alive() {
		return validation.Errorf("external texture %s is destroyed", et)
	}
	slots := [3]binding.Number{exp.Plane0, exp.Plane1, exp.Params}
	var idx [3]binding.Index
	for k, n := range slots {
		i, ok := l.BindingIndex(n)
		if !ok {
			return validation.Internalf("expansion binding %d of external texture binding %d is not packed", n, e.Binding)
		}
		idx[k] = i
	}
	if err := claim(e.Binding, idx[0]); err != nil {
		return err
	}
	params := et.Params()
	if _, isBuf := l.Binding(idx[2]).Buffer(); !isBuf {
		return validation.Internalf("parameter binding %d of external texture binding %d is not a buffer", exp.Params, e.Binding)
	}
	p.bindings[idx[0]] = et.Plane(0)
	p.bindings[idx[1]] = et.Plane(1)
	p.bindings[idx[2]] = params
	p.buffers[idx[2]] = BufferBinding{Buffer: params, Offset: 0, Size: resource.ExternalTextureParamsSize}
	p.external = append(p.external, et)
	return nil
}

// validateYCbCr checks that YCbCr views are only bound next to their
// paired static sampler and that paired views match their sampler.
func validateYCbCr(l *layout.BindGroupLayout, p *packed) error {
	paired := make(map[binding.Number]*resource.Sampler)
	for _, info := range l.Bindings() {
		if ss, ok := info.Layout.(binding.StaticSamplerLayout); ok && ss.PairedWithTexture {
			paired[ss.SampledTextureBinding] = ss.Sampler
		}
	}
	for idx, info := range l.Bindings() {
		if l.IsSyntheticBinding(info.Binding) {
			continue
		}
		v, ok := p.bindings[idx].(*resource.TextureView)
		if !ok {
			continue
		}
		s, isPaired := paired[info.Binding]
		switch {
		case isPaired && s.IsYCbCr() != v.IsYCbCr():
			return validation.Errorf("YCbCr-ness of %s at binding %d (%t) does not match its static sampler %s (%t)",
				v, info.Binding, v.IsYCbCr(), s, s.IsYCbCr())
		case !isPaired && v.IsYCbCr():
			return validation.Errorf("YCbCr %s at binding %d is not paired with a static sampler", v, info.Binding)
		}
	}
	return nil
}
