// Package limits holds the device limits consulted by binding validation.
package limits

import (
	"fmt"
	"math/bits"

	"github.com/gogpu/gputypes"
)

// Limits is a flat set of per-stage and aggregate maximums.
//
// The vertex and fragment storage limits are sub-limits of the per-stage
// storage limits: a device may allow fewer storage resources in those
// stages than in compute.
type Limits struct {
	MaxBindGroups           uint32
	MaxBindingsPerBindGroup uint32

	MaxDynamicUniformBuffersPerPipelineLayout uint32
	MaxDynamicStorageBuffersPerPipelineLayout uint32

	MaxSampledTexturesPerShaderStage uint32
	MaxSamplersPerShaderStage        uint32
	MaxStorageBuffersPerShaderStage  uint32
	MaxStorageTexturesPerShaderStage uint32
	MaxUniformBuffersPerShaderStage  uint32

	MaxStorageBuffersInVertexStage    uint32
	MaxStorageTexturesInVertexStage   uint32
	MaxStorageBuffersInFragmentStage  uint32
	MaxStorageTexturesInFragmentStage uint32

	MaxUniformBufferBindingSize uint64
	MaxStorageBufferBindingSize uint64

	MinUniformBufferOffsetAlignment uint32
	MinStorageBufferOffsetAlignment uint32

	MaxVertexBuffers uint32
	MaxBufferSize    uint64

	// MaxImmediateSize is the largest immediate-data range a pipeline
	// layout may reserve, in bytes.
	MaxImmediateSize uint32
}

// Default returns the WebGPU default limits.
func Default() Limits {
	return Limits{
		MaxBindGroups:           4,
		MaxBindingsPerBindGroup: 1000,

		MaxDynamicUniformBuffersPerPipelineLayout: 8,
		MaxDynamicStorageBuffersPerPipelineLayout: 4,

		MaxSampledTexturesPerShaderStage: 16,
		MaxSamplersPerShaderStage:        16,
		MaxStorageBuffersPerShaderStage:  8,
		MaxStorageTexturesPerShaderStage: 4,
		MaxUniformBuffersPerShaderStage:  12,

		MaxStorageBuffersInVertexStage:    8,
		MaxStorageTexturesInVertexStage:   4,
		MaxStorageBuffersInFragmentStage:  8,
		MaxStorageTexturesInFragmentStage: 4,

		MaxUniformBufferBindingSize: 64 << 10,
		MaxStorageBufferBindingSize: 128 << 20,

		MinUniformBufferOffsetAlignment: 256,
		MinStorageBufferOffsetAlignment: 256,

		MaxVertexBuffers: 8,
		MaxBufferSize:    256 << 20,

		MaxImmediateSize: 64,
	}
}

// Compatibility returns the limits of the compatibility profile, which
// forbids storage resources in the vertex stage.
func Compatibility() Limits {
	l := Default()
	l.MaxStorageBuffersInVertexStage = 0
	l.MaxStorageTexturesInVertexStage = 0
	l.MaxStorageBuffersInFragmentStage = 4
	l.MaxStorageTexturesInFragmentStage = 4
	l.MaxStorageBuffersPerShaderStage = 4
	l.MaxUniformBufferBindingSize = 16 << 10
	return l
}

// FromGPUTypes converts adapter limits. The vertex and fragment storage
// sub-limits default to the per-stage limits and the immediate-data limit
// keeps its default, since gputypes carries neither.
func FromGPUTypes(g gputypes.Limits) Limits {
	l := Default()
	l.MaxBindGroups = uint32(g.MaxBindGroups)
	l.MaxBindingsPerBindGroup = uint32(g.MaxBindingsPerBindGroup)
	l.MaxDynamicUniformBuffersPerPipelineLayout = uint32(g.MaxDynamicUniformBuffersPerPipelineLayout)
	l.MaxDynamicStorageBuffersPerPipelineLayout = uint32(g.MaxDynamicStorageBuffersPerPipelineLayout)
	l.MaxSampledTexturesPerShaderStage = uint32(g.MaxSampledTexturesPerShaderStage)
	l.MaxSamplersPerShaderStage = uint32(g.MaxSamplersPerShaderStage)
	l.MaxStorageBuffersPerShaderStage = uint32(g.MaxStorageBuffersPerShaderStage)
	l.MaxStorageTexturesPerShaderStage = uint32(g.MaxStorageTexturesPerShaderStage)
	l.MaxUniformBuffersPerShaderStage = uint32(g.MaxUniformBuffersPerShaderStage)
	l.MaxUniformBufferBindingSize = uint64(g.MaxUniformBufferBindingSize)
	l.MaxStorageBufferBindingSize = uint64(g.MaxStorageBufferBindingSize)
	l.MinUniformBufferOffsetAlignment = uint32(g.MinUniformBufferOffsetAlignment)
	l.MinStorageBufferOffsetAlignment = uint32(g.MinStorageBufferOffsetAlignment)
	l.MaxVertexBuffers = uint32(g.MaxVertexBuffers)
	l.MaxBufferSize = uint64(g.MaxBufferSize)

	l.MaxStorageBuffersInVertexStage = l.MaxStorageBuffersPerShaderStage
	l.MaxStorageTexturesInVertexStage = l.MaxStorageTexturesPerShaderStage
	l.MaxStorageBuffersInFragmentStage = l.MaxStorageBuffersPerShaderStage
	l.MaxStorageTexturesInFragmentStage = l.MaxStorageTexturesPerShaderStage
	return l
}

// Validate checks that the limits are internally consistent.
func (l Limits) Validate() error {
	if l.MaxBindGroups == 0 {
		return fmt.Errorf("limits: MaxBindGroups must be at least 1")
	}
	if l.MaxStorageBuffersInVertexStage > l.MaxStorageBuffersPerShaderStage {
		return fmt.Errorf("limits: MaxStorageBuffersInVertexStage (%d) exceeds MaxStorageBuffersPerShaderStage (%d)",
			l.MaxStorageBuffersInVertexStage, l.MaxStorageBuffersPerShaderStage)
	}
	if l.MaxStorageBuffersInFragmentStage > l.MaxStorageBuffersPerShaderStage {
		return fmt.Errorf("limits: MaxStorageBuffersInFragmentStage (%d) exceeds MaxStorageBuffersPerShaderStage (%d)",
			l.MaxStorageBuffersInFragmentStage, l.MaxStorageBuffersPerShaderStage)
	}
	if l.MaxStorageTexturesInVertexStage > l.MaxStorageTexturesPerShaderStage {
		return fmt.Errorf("limits: MaxStorageTexturesInVertexStage (%d) exceeds MaxStorageTexturesPerShaderStage (%d)",
			l.MaxStorageTexturesInVertexStage, l.MaxStorageTexturesPerShaderStage)
	}
	if l.MaxStorageTexturesInFragmentStage > l.MaxStorageTexturesPerShaderStage {
		return fmt.Errorf("limits: MaxStorageTexturesInFragmentStage (%d) exceeds MaxStorageTexturesPerShaderStage (%d)",
			l.MaxStorageTexturesInFragmentStage, l.MaxStorageTexturesPerShaderStage)
	}
	if !isPow2(l.MinUniformBufferOffsetAlignment) {
		return fmt.Errorf("limits: MinUniformBufferOffsetAlignment (%d) is not a power of two", l.MinUniformBufferOffsetAlignment)
	}
	if !isPow2(l.MinStorageBufferOffsetAlignment) {
		return fmt.Errorf("limits: MinStorageBufferOffsetAlignment (%d) is not a power of two", l.MinStorageBufferOffsetAlignment)
	}
	if l.MaxImmediateSize%4 != 0 {
		return fmt.Errorf("limits: MaxImmediateSize (%d) is not a multiple of 4", l.MaxImmediateSize)
	}
	return nil
}

func isPow2(v uint32) bool { return v != 0 && bits.OnesCount32(v) == 1 }
