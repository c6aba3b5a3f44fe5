package binding

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/format"
	"github.com/gogpu/bindcore/resource"
)

// Kind identifies the variant of a Layout. The ordinal is part of the
// packing order of bind group layouts.
type Kind uint8

// Binding kinds.
const (
	KindBuffer Kind = iota
	KindSampler
	KindTexture
	KindStorageTexture
	KindStaticSampler
	KindInputAttachment
	KindExternalTexture
)

func (k Kind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindSampler:
		return "sampler"
	case KindTexture:
		return "texture"
	case KindStorageTexture:
		return "storage texture"
	case KindStaticSampler:
		return "static sampler"
	case KindInputAttachment:
		return "input attachment"
	case KindExternalTexture:
		return "external texture"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Layout is the kind-specific part of a binding. It is a closed set:
// BufferLayout, SamplerLayout, TextureLayout, StorageTextureLayout,
// StaticSamplerLayout, InputAttachmentLayout and ExternalTextureLayout.
// Code dispatching on a Layout uses a type switch whose default case
// reports an internal error.
//
// ExternalTextureLayout only appears in shader reflection; bind group
// layouts store the expansion of an external texture instead.
type Layout interface {
	Kind() Kind
	isLayout()
}

// BufferType is the binding type of a buffer. The internal variants are
// only available to bindcore's own pipelines.
type BufferType uint8

// Buffer binding types.
const (
	BufferUniform BufferType = iota
	BufferStorage
	BufferReadOnlyStorage
	BufferInternalStorage
	BufferReadOnlyInternalStorage
)

func (t BufferType) String() string {
	switch t {
	case BufferUniform:
		return "uniform"
	case BufferStorage:
		return "storage"
	case BufferReadOnlyStorage:
		return "read-only-storage"
	case BufferInternalStorage:
		return "internal-storage"
	case BufferReadOnlyInternalStorage:
		return "read-only-internal-storage"
	default:
		return fmt.Sprintf("BufferType(%d)", uint8(t))
	}
}

// IsStorage reports whether t is any storage variant.
func (t BufferType) IsStorage() bool { return t != BufferUniform }

// IsWritable reports whether shaders may write through the binding.
func (t BufferType) IsWritable() bool {
	return t == BufferStorage || t == BufferInternalStorage
}

// SamplerType is the binding type of a sampler.
type SamplerType uint8

// Sampler binding types.
const (
	SamplerFiltering SamplerType = iota
	SamplerNonFiltering
	SamplerComparison
)

func (t SamplerType) String() string {
	switch t {
	case SamplerFiltering:
		return "filtering"
	case SamplerNonFiltering:
		return "non-filtering"
	case SamplerComparison:
		return "comparison"
	default:
		return fmt.Sprintf("SamplerType(%d)", uint8(t))
	}
}

// SampleType is the sample type of a sampled texture binding.
// SampleInternalResolve is used by internal resolve passes and is
// compatible with shaders sampling f32.
type SampleType uint8

// Texture sample types.
const (
	SampleFloat SampleType = iota
	SampleUnfilterableFloat
	SampleDepth
	SampleSint
	SampleUint
	SampleInternalResolve
)

func (t SampleType) String() string {
	switch t {
	case SampleFloat:
		return "float"
	case SampleUnfilterableFloat:
		return "unfilterable-float"
	case SampleDepth:
		return "depth"
	case SampleSint:
		return "sint"
	case SampleUint:
		return "uint"
	case SampleInternalResolve:
		return "internal-resolve"
	default:
		return fmt.Sprintf("SampleType(%d)", uint8(t))
	}
}

// Bit returns the format sample-type bit matching t.
func (t SampleType) Bit() format.SampleTypeBit {
	switch t {
	case SampleFloat:
		return format.SampleTypeFloat
	case SampleUnfilterableFloat:
		return format.SampleTypeUnfilterableFloat
	case SampleDepth:
		return format.SampleTypeDepth
	case SampleSint:
		return format.SampleTypeSint
	case SampleUint:
		return format.SampleTypeUint
	case SampleInternalResolve:
		return format.SampleTypeResolve
	default:
		return format.SampleTypeNone
	}
}

// StorageAccess is the access mode of a storage texture binding.
type StorageAccess uint8

// Storage texture access modes.
const (
	AccessWriteOnly StorageAccess = iota
	AccessReadOnly
	AccessReadWrite
)

func (a StorageAccess) String() string {
	switch a {
	case AccessWriteOnly:
		return "write-only"
	case AccessReadOnly:
		return "read-only"
	case AccessReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("StorageAccess(%d)", uint8(a))
	}
}

// IsWritable reports whether shaders may write through the binding.
func (a StorageAccess) IsWritable() bool { return a != AccessReadOnly }

// BufferLayout describes a buffer binding.
type BufferLayout struct {
	Type             BufferType
	HasDynamicOffset bool

	// MinBindingSize is the smallest size a bound range may have. Zero
	// defers the check to draw time against the pipeline's requirement.
	MinBindingSize uint64
}

// SamplerLayout describes a sampler binding.
type SamplerLayout struct {
	Type SamplerType
}

// TextureLayout describes a sampled texture binding.
type TextureLayout struct {
	SampleType    SampleType
	ViewDimension gputypes.TextureViewDimension
	Multisampled  bool
}

// StorageTextureLayout describes a storage texture binding.
type StorageTextureLayout struct {
	Access        StorageAccess
	Format        gputypes.TextureFormat
	ViewDimension gputypes.TextureViewDimension
}

// StaticSamplerLayout describes a sampler baked into the layout. When
// PairedWithTexture is set the sampler is used exclusively with the
// texture at SampledTextureBinding.
type StaticSamplerLayout struct {
	Sampler               *resource.Sampler
	SampledTextureBinding Number
	PairedWithTexture     bool
}

// InputAttachmentLayout describes an internal input attachment binding.
type InputAttachmentLayout struct {
	SampleType SampleType
}

// ExternalTextureLayout is the reflected form of a texture_external
// binding.
type ExternalTextureLayout struct{}

func (BufferLayout) Kind() Kind          { return KindBuffer }
func (SamplerLayout) Kind() Kind         { return KindSampler }
func (TextureLayout) Kind() Kind         { return KindTexture }
func (StorageTextureLayout) Kind() Kind  { return KindStorageTexture }
func (StaticSamplerLayout) Kind() Kind   { return KindStaticSampler }
func (InputAttachmentLayout) Kind() Kind { return KindInputAttachment }
func (ExternalTextureLayout) Kind() Kind { return KindExternalTexture }

func (BufferLayout) isLayout()          {}
func (SamplerLayout) isLayout()         {}
func (TextureLayout) isLayout()         {}
func (StorageTextureLayout) isLayout()  {}
func (StaticSamplerLayout) isLayout()   {}
func (InputAttachmentLayout) isLayout() {}
func (ExternalTextureLayout) isLayout() {}
