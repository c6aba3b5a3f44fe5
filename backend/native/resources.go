package native

import "github.com/gogpu/wgpu/hal"

// GPUResources collects HAL objects for destruction in dependency order.
type GPUResources struct {
	Device           hal.Device
	ComputePipelines []hal.ComputePipeline
	BindGroups       []hal.BindGroup
	PipelineLayouts  []hal.PipelineLayout
	BindGroupLayouts []hal.BindGroupLayout
	ShaderModules    []hal.ShaderModule
	Views            []hal.TextureView
	Samplers         []hal.Sampler
	Textures         []hal.Texture
	Buffers          []hal.Buffer
}

// Len returns the number of non-nil objects.
func (r *GPUResources) Len() int {
	return count(r.ComputePipelines) + count(r.BindGroups) + count(r.PipelineLayouts) +
		count(r.BindGroupLayouts) + count(r.ShaderModules) + count(r.Views) +
		count(r.Samplers) + count(r.Textures) + count(r.Buffers)
}

// Destroy destroys pipelines first and plain resources last. Nil entries
// are skipped.
func (r *GPUResources) Destroy() {
	if r.Device == nil {
		return
	}
	each(r.ComputePipelines, r.Device.DestroyComputePipeline)
	each(r.BindGroups, r.Device.DestroyBindGroup)
	each(r.PipelineLayouts, r.Device.DestroyPipelineLayout)
	each(r.BindGroupLayouts, r.Device.DestroyBindGroupLayout)
	each(r.ShaderModules, r.Device.DestroyShaderModule)
	each(r.Views, r.Device.DestroyTextureView)
	each(r.Samplers, r.Device.DestroySampler)
	each(r.Textures, r.Device.DestroyTexture)
	each(r.Buffers, r.Device.DestroyBuffer)
	*r = GPUResources{Device: r.Device}
}

func each[H comparable](hs []H, destroy func(H)) {
	var zero H
	for _, h := range hs {
		if h != zero {
			destroy(h)
		}
	}
}

func count[H comparable](hs []H) int {
	var zero H
	n := 0
	for _, h := range hs {
		if h != zero {
			n++
		}
	}
	return n
}
