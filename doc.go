// Package bindcore validates the resource-binding model of a WebGPU
// implementation: bind group layouts, pipeline layouts, bind groups, the
// shader reflection they are checked against and the per-pass state used
// to validate draws and dispatches.
//
// # Overview
//
// bindcore sits between an application-facing WebGPU API and a backend.
// Every object is validated on creation and reduced to a packed form the
// backend can consume without further checks. Layouts are deduplicated
// per device, so two structurally equal layouts are the same object and
// compatibility checks reduce to pointer comparison.
//
// # Quick Start
//
//	dev := bindcore.NewDevice()
//	defer dev.Destroy()
//
//	bgl, err := dev.CreateBindGroupLayout(&layout.BindGroupLayoutDescriptor{
//	    Entries: []binding.LayoutEntry{{
//	        Binding:    0,
//	        Visibility: binding.StageCompute,
//	        Buffer:     &binding.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
//	    }},
//	})
//
//	mod, err := shader.ParseWGSL(source)
//	p, err := dev.CreateComputePipeline(&pipeline.ComputePipelineDescriptor{
//	    Compute: pipeline.ProgrammableStage{Module: mod},
//	})
//
//	pass := dev.BeginComputePass()
//	pass.SetPipeline(p)
//	pass.SetBindGroup(0, bg)
//	pass.DispatchWorkgroups(64, 1, 1)
//	if err := pass.End(); err != nil {
//	    // the first failing command, with context
//	}
//
// # Architecture
//
// The library is organized into:
//   - format, limits: texture format capabilities and device limits
//   - binding: per-binding layouts, stage visibility and per-stage counts
//   - layout: bind group and pipeline layouts, the layout caches
//   - resource: buffers, textures, views, samplers, external textures
//   - bindgroup: bind group validation and packed storage
//   - shader: WGSL reflection with naga and layout compatibility
//   - pipeline: compute and render pipelines, default layout inference
//   - commands: the pass state tracker and pass encoders
//   - backend/native: lowering to gogpu/wgpu HAL objects
//
// # Errors
//
// Every failure is a *validation.Error. Use errors.Is with
// validation.ErrValidation, validation.ErrInternal or
// validation.ErrOutOfMemory to classify it.
//
// # Logging
//
// bindcore produces no log output by default. Call SetLogger to enable
// it.
package bindcore
