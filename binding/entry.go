package binding

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/format"
	"github.com/gogpu/bindcore/limits"
	"github.com/gogpu/bindcore/resource"
	"github.com/gogpu/bindcore/validation"
)

// BufferBindingLayout is the API description of a buffer binding.
type BufferBindingLayout struct {
	Type             gputypes.BufferBindingType
	HasDynamicOffset bool
	MinBindingSize   uint64
}

// SamplerBindingLayout is the API description of a sampler binding.
type SamplerBindingLayout struct {
	Type gputypes.SamplerBindingType
}

// TextureBindingLayout is the API description of a sampled texture binding.
type TextureBindingLayout struct {
	SampleType    gputypes.TextureSampleType
	ViewDimension gputypes.TextureViewDimension
	Multisampled  bool
}

// StorageTextureBindingLayout is the API description of a storage texture
// binding.
type StorageTextureBindingLayout struct {
	Access        gputypes.StorageTextureAccess
	Format        gputypes.TextureFormat
	ViewDimension gputypes.TextureViewDimension
}

// ExternalTextureBindingLayout is the API description of an external
// texture binding. It has no parameters.
type ExternalTextureBindingLayout struct{}

// StaticSamplerBindingLayout is the API description of a static sampler.
type StaticSamplerBindingLayout struct {
	Sampler *resource.Sampler

	// SampledTextureBinding, when set, pairs the sampler with exactly one
	// sampled texture binding of the same layout.
	SampledTextureBinding *Number
}

// LayoutEntry is one entry of a bind group layout descriptor. Exactly one
// payload must be set.
type LayoutEntry struct {
	Binding    Number
	Visibility ShaderStage

	// BindingArraySize makes the entry a binding array occupying binding
	// numbers [Binding, Binding+BindingArraySize). Zero and one both mean
	// a single binding. Only sampled textures may be arrays.
	BindingArraySize uint32

	Buffer          *BufferBindingLayout
	Sampler         *SamplerBindingLayout
	Texture         *TextureBindingLayout
	StorageTexture  *StorageTextureBindingLayout
	ExternalTexture *ExternalTextureBindingLayout
	StaticSampler   *StaticSamplerBindingLayout

	// Internal carries an already-internal layout. Only bindcore's own
	// pipelines may use it.
	Internal Layout
}

func (e *LayoutEntry) payloadCount() int {
	n := 0
	if e.Buffer != nil {
		n++
	}
	if e.Sampler != nil {
		n++
	}
	if e.Texture != nil {
		n++
	}
	if e.StorageTexture != nil {
		n++
	}
	if e.ExternalTexture != nil {
		n++
	}
	if e.StaticSampler != nil {
		n++
	}
	if e.Internal != nil {
		n++
	}
	return n
}

// ArraySize returns the number of bindings the entry occupies.
func (e *LayoutEntry) ArraySize() uint32 { return max(e.BindingArraySize, 1) }

// EntryOptions selects optional validation rules.
type EntryOptions struct {
	AllowInternal bool
	Compatibility bool
}

// ValidateEntry performs the field-level checks on one layout entry.
func ValidateEntry(e *LayoutEntry, lim limits.Limits, opts EntryOptions) error {
	if n := e.payloadCount(); n != 1 {
		return validation.Errorf("binding %d sets %d binding types; exactly one of buffer, sampler, texture, "+
			"storageTexture, externalTexture or staticSampler must be set", e.Binding, n)
	}
	if e.Visibility&^StageAll != 0 {
		return validation.Errorf("binding %d visibility (%s) contains unknown stages", e.Binding, e.Visibility)
	}
	if uint64(e.Binding)+uint64(e.ArraySize()) > MaxBindingsPerBindGroup {
		return validation.Errorf("binding number %d with array size %d exceeds the maximum binding number (%d)",
			e.Binding, e.ArraySize(), MaxBindingsPerBindGroup-1)
	}
	if e.ArraySize() > 1 && e.Texture == nil {
		return validation.Errorf("binding %d has array size %d but only sampled textures may be binding arrays",
			e.Binding, e.ArraySize())
	}
	if e.Internal != nil && !opts.AllowInternal {
		return validation.Errorf("binding %d uses an internal binding type", e.Binding)
	}

	info, err := e.ToLayout()
	if err != nil {
		return err
	}
	return validateInfo(e.Binding, e.Visibility, info, lim, opts)
}

func validateInfo(n Number, vis ShaderStage, info Layout, lim limits.Limits, opts EntryOptions) error {
	switch l := info.(type) {
	case BufferLayout:
		if l.Type.IsWritable() && vis&StageVertex != 0 {
			return validation.Errorf("binding %d is a writable %s buffer visible to the vertex stage", n, l.Type)
		}
		maxSize := lim.MaxStorageBufferBindingSize
		if l.Type == BufferUniform {
			maxSize = lim.MaxUniformBufferBindingSize
		}
		if l.MinBindingSize > maxSize {
			return validation.Errorf("binding %d minBindingSize (%d) exceeds the maximum %s buffer binding size (%d)",
				n, l.MinBindingSize, l.Type, maxSize)
		}
	case SamplerLayout:
	case TextureLayout:
		if l.Multisampled {
			if l.ViewDimension != gputypes.TextureViewDimension2D {
				return validation.Errorf("binding %d is a multisampled texture with a non-2D view dimension", n)
			}
			if l.SampleType == SampleFloat {
				return validation.Errorf("binding %d is a multisampled texture with the filterable float sample type", n)
			}
		}
		if opts.Compatibility && l.ViewDimension == gputypes.TextureViewDimensionCubeArray {
			return validation.Errorf("binding %d uses the cube-array view dimension, unsupported in compatibility mode", n)
		}
	case StorageTextureLayout:
		fi, ok := format.Lookup(l.Format)
		if !ok || !fi.SupportsStorage {
			return validation.Errorf("binding %d storage texture format %s does not support storage usage",
				n, l.Format)
		}
		if l.Access == AccessReadWrite && !fi.SupportsReadWriteStorage {
			return validation.Errorf("binding %d storage texture format %s does not support read-write access",
				n, l.Format)
		}
		if l.ViewDimension == gputypes.TextureViewDimensionCube || l.ViewDimension == gputypes.TextureViewDimensionCubeArray {
			return validation.Errorf("binding %d uses a cube view dimension, which is invalid for storage textures", n)
		}
		if l.Access.IsWritable() && vis&StageVertex != 0 {
			return validation.Errorf("binding %d is a %s storage texture visible to the vertex stage", n, l.Access)
		}
	case StaticSamplerLayout:
		if l.Sampler == nil {
			return validation.Errorf("binding %d static sampler is nil", n)
		}
		if !l.Sampler.Alive() {
			return validation.Errorf("binding %d static sampler %s is destroyed", n, l.Sampler)
		}
	case InputAttachmentLayout:
		if vis != StageFragment {
			return validation.Errorf("binding %d input attachment must be visible to the fragment stage only", n)
		}
	case ExternalTextureLayout:
	default:
		return validation.Internalf("binding %d has unexpected layout %T", n, info)
	}
	return nil
}

// ToLayout converts the payload into its internal Layout. External texture
// entries convert to ExternalTextureLayout; their expansion is the bind
// group layout's concern.
func (e *LayoutEntry) ToLayout() (Layout, error) {
	switch {
	case e.Buffer != nil:
		t, err := BufferTypeFromGPU(e.Buffer.Type)
		if err != nil {
			return nil, validation.WithContext(err, "validating binding %d", e.Binding)
		}
		return BufferLayout{Type: t, HasDynamicOffset: e.Buffer.HasDynamicOffset, MinBindingSize: e.Buffer.MinBindingSize}, nil
	case e.Sampler != nil:
		t, err := SamplerTypeFromGPU(e.Sampler.Type)
		if err != nil {
			return nil, validation.WithContext(err, "validating binding %d", e.Binding)
		}
		return SamplerLayout{Type: t}, nil
	case e.Texture != nil:
		st, err := SampleTypeFromGPU(e.Texture.SampleType)
		if err != nil {
			return nil, validation.WithContext(err, "validating binding %d", e.Binding)
		}
		dim, err := ViewDimensionFromGPU(e.Texture.ViewDimension)
		if err != nil {
			return nil, validation.WithContext(err, "validating binding %d", e.Binding)
		}
		return TextureLayout{SampleType: st, ViewDimension: dim, Multisampled: e.Texture.Multisampled}, nil
	case e.StorageTexture != nil:
		a, err := StorageAccessFromGPU(e.StorageTexture.Access)
		if err != nil {
			return nil, validation.WithContext(err, "validating binding %d", e.Binding)
		}
		dim, err := ViewDimensionFromGPU(e.StorageTexture.ViewDimension)
		if err != nil {
			return nil, validation.WithContext(err, "validating binding %d", e.Binding)
		}
		return StorageTextureLayout{Access: a, Format: e.StorageTexture.Format, ViewDimension: dim}, nil
	case e.ExternalTexture != nil:
		return ExternalTextureLayout{}, nil
	case e.StaticSampler != nil:
		l := StaticSamplerLayout{Sampler: e.StaticSampler.Sampler}
		if e.StaticSampler.SampledTextureBinding != nil {
			l.SampledTextureBinding = *e.StaticSampler.SampledTextureBinding
			l.PairedWithTexture = true
		}
		return l, nil
	case e.Internal != nil:
		return e.Internal, nil
	}
	return nil, validation.Errorf("binding %d sets no binding type", e.Binding)
}
