package binding

import (
	"github.com/gogpu/bindcore/limits"
	"github.com/gogpu/bindcore/validation"
)

// PerStageCounts tallies the bindings visible to one shader stage.
type PerStageCounts struct {
	SampledTexture  uint32
	Sampler         uint32
	StorageBuffer   uint32
	StorageTexture  uint32
	UniformBuffer   uint32
	ExternalTexture uint32
	StaticSampler   uint32
}

func (p *PerStageCounts) add(o PerStageCounts) {
	p.SampledTexture += o.SampledTexture
	p.Sampler += o.Sampler
	p.StorageBuffer += o.StorageBuffer
	p.StorageTexture += o.StorageTexture
	p.UniformBuffer += o.UniformBuffer
	p.ExternalTexture += o.ExternalTexture
	p.StaticSampler += o.StaticSampler
}

// Counts is the aggregate tally of a layout's bindings, in total and per
// stage. UnverifiedBuffer counts buffers whose minimum binding size is
// zero and must be checked at draw time.
type Counts struct {
	Total                uint32
	Buffer               uint32
	UnverifiedBuffer     uint32
	DynamicUniformBuffer uint32
	DynamicStorageBuffer uint32
	StaticSampler        uint32

	PerStage [NumStages]PerStageCounts
}

// IncrementCounts adds entry to counts. It fails unless exactly one
// binding type of the entry is set.
func IncrementCounts(counts *Counts, e *LayoutEntry) error {
	if n := e.payloadCount(); n != 1 {
		return validation.Errorf("binding %d sets %d binding types; exactly one must be set", e.Binding, n)
	}
	l, err := e.ToLayout()
	if err != nil {
		return err
	}

	size := e.ArraySize()
	counts.Total += size
	var stage PerStageCounts

	switch b := l.(type) {
	case BufferLayout:
		counts.Buffer++
		if b.MinBindingSize == 0 {
			counts.UnverifiedBuffer++
		}
		if b.Type == BufferUniform {
			stage.UniformBuffer++
			if b.HasDynamicOffset {
				counts.DynamicUniformBuffer++
			}
		} else {
			stage.StorageBuffer++
			if b.HasDynamicOffset {
				counts.DynamicStorageBuffer++
			}
		}
	case SamplerLayout:
		stage.Sampler++
	case TextureLayout, InputAttachmentLayout:
		stage.SampledTexture += size
	case StorageTextureLayout:
		stage.StorageTexture++
	case ExternalTextureLayout:
		stage.ExternalTexture++
	case StaticSamplerLayout:
		counts.StaticSampler++
		stage.StaticSampler++
	default:
		return validation.Internalf("binding %d has unexpected layout %T", e.Binding, l)
	}

	for i, s := range Stages {
		if e.Visibility&s != 0 {
			counts.PerStage[i].add(stage)
		}
	}
	return nil
}

// AccumulateCounts adds src into dst.
func AccumulateCounts(dst *Counts, src Counts) {
	dst.Total += src.Total
	dst.Buffer += src.Buffer
	dst.UnverifiedBuffer += src.UnverifiedBuffer
	dst.DynamicUniformBuffer += src.DynamicUniformBuffer
	dst.DynamicStorageBuffer += src.DynamicStorageBuffer
	dst.StaticSampler += src.StaticSampler
	for i := range dst.PerStage {
		dst.PerStage[i].add(src.PerStage[i])
	}
}

// ValidateCounts checks counts against the device limits. An external
// texture weighs as two sampled textures, one sampler and one uniform
// buffer.
func ValidateCounts(lim limits.Limits, c Counts) error {
	if c.DynamicUniformBuffer > lim.MaxDynamicUniformBuffersPerPipelineLayout {
		return validation.Errorf("the number of dynamic uniform buffers (%d) exceeds the maximum per-pipeline-layout limit (%d)",
			c.DynamicUniformBuffer, lim.MaxDynamicUniformBuffersPerPipelineLayout)
	}
	if c.DynamicStorageBuffer > lim.MaxDynamicStorageBuffersPerPipelineLayout {
		return validation.Errorf("the number of dynamic storage buffers (%d) exceeds the maximum per-pipeline-layout limit (%d)",
			c.DynamicStorageBuffer, lim.MaxDynamicStorageBuffersPerPipelineLayout)
	}

	for i, stage := range Stages {
		p := c.PerStage[i]
		checks := []limitCheck{
			{"sampled textures", p.SampledTexture + 2*p.ExternalTexture, lim.MaxSampledTexturesPerShaderStage},
			{"samplers", p.Sampler + p.StaticSampler + p.ExternalTexture, lim.MaxSamplersPerShaderStage},
			{"storage buffers", p.StorageBuffer, lim.MaxStorageBuffersPerShaderStage},
			{"storage textures", p.StorageTexture, lim.MaxStorageTexturesPerShaderStage},
			{"uniform buffers", p.UniformBuffer + p.ExternalTexture, lim.MaxUniformBuffersPerShaderStage},
		}
		switch stage {
		case StageVertex:
			checks = append(checks,
				limitCheck{"storage buffers", p.StorageBuffer, lim.MaxStorageBuffersInVertexStage},
				limitCheck{"storage textures", p.StorageTexture, lim.MaxStorageTexturesInVertexStage})
		case StageFragment:
			checks = append(checks,
				limitCheck{"storage buffers", p.StorageBuffer, lim.MaxStorageBuffersInFragmentStage},
				limitCheck{"storage textures", p.StorageTexture, lim.MaxStorageTexturesInFragmentStage})
		}
		for _, ch := range checks {
			if ch.count > ch.limit {
				return validation.Errorf("the number of %s (%d) in the %s stage exceeds the maximum per-stage limit (%d)",
					ch.what, ch.count, stage, ch.limit)
			}
		}
	}
	return nil
}

type limitCheck struct {
	what  string
	count uint32
	limit uint32
}
