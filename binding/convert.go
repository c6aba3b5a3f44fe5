package binding

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/validation"
)

// BufferTypeFromGPU converts an API buffer binding type. The zero value
// defaults to uniform.
func BufferTypeFromGPU(t gputypes.BufferBindingType) (BufferType, error) {
	switch t {
	case gputypes.BufferBindingTypeUniform:
		return BufferUniform, nil
	case gputypes.BufferBindingTypeStorage:
		return BufferStorage, nil
	case gputypes.BufferBindingTypeReadOnlyStorage:
		return BufferReadOnlyStorage, nil
	}
	if t == 0 {
		return BufferUniform, nil
	}
	return 0, validation.Errorf("buffer binding type (%d) is invalid", uint32(t))
}

// ToGPU lowers the buffer type to its API equivalent. Internal variants
// lower to their public counterparts.
func (t BufferType) ToGPU() gputypes.BufferBindingType {
	switch t {
	case BufferStorage, BufferInternalStorage:
		return gputypes.BufferBindingTypeStorage
	case BufferReadOnlyStorage, BufferReadOnlyInternalStorage:
		return gputypes.BufferBindingTypeReadOnlyStorage
	default:
		return gputypes.BufferBindingTypeUniform
	}
}

// SamplerTypeFromGPU converts an API sampler binding type. The zero value
// defaults to filtering.
func SamplerTypeFromGPU(t gputypes.SamplerBindingType) (SamplerType, error) {
	switch t {
	case gputypes.SamplerBindingTypeFiltering:
		return SamplerFiltering, nil
	case gputypes.SamplerBindingTypeNonFiltering:
		return SamplerNonFiltering, nil
	case gputypes.SamplerBindingTypeComparison:
		return SamplerComparison, nil
	}
	if t == 0 {
		return SamplerFiltering, nil
	}
	return 0, validation.Errorf("sampler binding type (%d) is invalid", uint32(t))
}

// ToGPU lowers the sampler type.
func (t SamplerType) ToGPU() gputypes.SamplerBindingType {
	switch t {
	case SamplerNonFiltering:
		return gputypes.SamplerBindingTypeNonFiltering
	case SamplerComparison:
		return gputypes.SamplerBindingTypeComparison
	default:
		return gputypes.SamplerBindingTypeFiltering
	}
}

// SampleTypeFromGPU converts an API texture sample type. The zero value
// defaults to float.
func SampleTypeFromGPU(t gputypes.TextureSampleType) (SampleType, error) {
	switch t {
	case gputypes.TextureSampleTypeFloat:
		return SampleFloat, nil
	case gputypes.TextureSampleTypeUnfilterableFloat:
		return SampleUnfilterableFloat, nil
	case gputypes.TextureSampleTypeDepth:
		return SampleDepth, nil
	case gputypes.TextureSampleTypeSint:
		return SampleSint, nil
	case gputypes.TextureSampleTypeUint:
		return SampleUint, nil
	}
	if t == 0 {
		return SampleFloat, nil
	}
	return 0, validation.Errorf("texture sample type (%d) is invalid", uint32(t))
}

// ToGPU lowers the sample type. The internal resolve type lowers to
// unfilterable float.
func (t SampleType) ToGPU() gputypes.TextureSampleType {
	switch t {
	case SampleUnfilterableFloat, SampleInternalResolve:
		return gputypes.TextureSampleTypeUnfilterableFloat
	case SampleDepth:
		return gputypes.TextureSampleTypeDepth
	case SampleSint:
		return gputypes.TextureSampleTypeSint
	case SampleUint:
		return gputypes.TextureSampleTypeUint
	default:
		return gputypes.TextureSampleTypeFloat
	}
}

// StorageAccessFromGPU converts an API storage texture access. The zero
// value defaults to write-only.
func StorageAccessFromGPU(a gputypes.StorageTextureAccess) (StorageAccess, error) {
	switch a {
	case gputypes.StorageTextureAccessWriteOnly:
		return AccessWriteOnly, nil
	case gputypes.StorageTextureAccessReadOnly:
		return AccessReadOnly, nil
	case gputypes.StorageTextureAccessReadWrite:
		return AccessReadWrite, nil
	}
	if a == 0 {
		return AccessWriteOnly, nil
	}
	return 0, validation.Errorf("storage texture access (%d) is invalid", uint32(a))
}

// ToGPU lowers the access mode.
func (a StorageAccess) ToGPU() gputypes.StorageTextureAccess {
	switch a {
	case AccessReadOnly:
		return gputypes.StorageTextureAccessReadOnly
	case AccessReadWrite:
		return gputypes.StorageTextureAccessReadWrite
	default:
		return gputypes.StorageTextureAccessWriteOnly
	}
}

// ViewDimensionFromGPU validates an API view dimension. The zero value
// defaults to 2D.
func ViewDimensionFromGPU(d gputypes.TextureViewDimension) (gputypes.TextureViewDimension, error) {
	switch d {
	case gputypes.TextureViewDimension1D, gputypes.TextureViewDimension2D,
		gputypes.TextureViewDimension2DArray, gputypes.TextureViewDimensionCube,
		gputypes.TextureViewDimensionCubeArray, gputypes.TextureViewDimension3D:
		return d, nil
	}
	if d == 0 {
		return gputypes.TextureViewDimension2D, nil
	}
	return 0, validation.Errorf("texture view dimension (%d) is invalid", uint32(d))
}
