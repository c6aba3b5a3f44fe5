package resource

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/validation"
)

// SamplerDescriptor describes a sampler to create.
type SamplerDescriptor struct {
	Label        string
	AddressModeU gputypes.AddressMode
	AddressModeV gputypes.AddressMode
	AddressModeW gputypes.AddressMode
	MagFilter    gputypes.FilterMode
	MinFilter    gputypes.FilterMode
	MipmapFilter gputypes.MipmapFilterMode

	// Compare makes the sampler a comparison sampler when non-zero.
	Compare gputypes.CompareFunction

	// YCbCr marks a sampler carrying a YCbCr conversion. Such samplers are
	// only usable as static samplers.
	YCbCr bool
}

// Sampler describes how textures are filtered and addressed.
type Sampler struct {
	Object

	desc       SamplerDescriptor
	comparison bool
	filtering  bool
}

// NewSampler validates desc and creates a sampler.
func NewSampler(desc *SamplerDescriptor) (*Sampler, error) {
	if desc == nil {
		desc = &SamplerDescriptor{}
	}
	filtering := desc.MagFilter == gputypes.FilterModeLinear ||
		desc.MinFilter == gputypes.FilterModeLinear ||
		desc.MipmapFilter == gputypes.MipmapFilterModeLinear
	if desc.YCbCr && desc.Compare != 0 {
		return nil, validation.Errorf("a YCbCr sampler cannot be a comparison sampler")
	}
	s := &Sampler{
		desc:       *desc,
		comparison: desc.Compare != 0,
		filtering:  filtering,
	}
	s.Init("Sampler", desc.Label)
	return s, nil
}

// Descriptor returns the creation parameters.
func (s *Sampler) Descriptor() SamplerDescriptor { return s.desc }

// IsComparison reports whether the sampler performs depth comparison.
func (s *Sampler) IsComparison() bool { return s.comparison }

// IsFiltering reports whether any filter of the sampler is linear.
func (s *Sampler) IsFiltering() bool { return s.filtering }

// IsYCbCr reports whether the sampler carries a YCbCr conversion.
func (s *Sampler) IsYCbCr() bool { return s.desc.YCbCr }
