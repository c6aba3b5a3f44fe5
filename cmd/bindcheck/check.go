package main

import (
	"fmt"
	"io"
	"os"

	"github.com/gogpu/bindcore"
	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/pipeline"
	"github.com/gogpu/bindcore/shader"
)

// Result is the outcome for one entry point.
type Result struct {
	EntryPoint string
	Stage      binding.ShaderStage
	Err        error
}

// Report is the outcome of checking one manifest.
type Report struct {
	Manifest string
	Shader   string
	Results  []Result
}

// Failed reports whether any entry point is incompatible with the layout.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

// Print writes one line per entry point to w.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "%s (%s)\n", r.Manifest, r.Shader)
	for _, res := range r.Results {
		if res.Err != nil {
			fmt.Fprintf(w, "  FAIL %s [%s]: %v\n", res.EntryPoint, res.Stage, res.Err)
			continue
		}
		fmt.Fprintf(w, "  ok   %s [%s]\n", res.EntryPoint, res.Stage)
	}
}

// Check builds the layouts of the manifest at path on a fresh device and
// checks every entry point of its shader against them. Errors in the
// manifest, the layouts or the shader source are returned as err; entry
// point incompatibilities are recorded in the report.
func Check(path string) (*Report, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	descs, err := m.Descriptors()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	src, err := os.ReadFile(m.ShaderPath())
	if err != nil {
		return nil, err
	}
	mod, err := shader.ParseWGSL(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.ShaderPath(), err)
	}

	dev := bindcore.NewDevice()
	defer dev.Destroy()

	bgls := make([]*layout.BindGroupLayout, len(descs))
	defer func() {
		for _, bgl := range bgls {
			if bgl != nil {
				bgl.Release()
			}
		}
	}()
	for g, desc := range descs {
		if desc == nil {
			continue
		}
		bgl, err := dev.CreateBindGroupLayout(desc)
		if err != nil {
			return nil, fmt.Errorf("%s: group %d: %w", path, g, err)
		}
		bgls[g] = bgl
	}
	pl, err := dev.CreatePipelineLayout(&layout.PipelineLayoutDescriptor{
		Label:            m.Label,
		BindGroupLayouts: bgls,
		ImmediateSize:    m.ImmediateSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer pl.Release()

	r := &Report{Manifest: path, Shader: m.ShaderPath()}
	for _, ep := range mod.EntryPoints {
		res := Result{EntryPoint: ep.Name, Stage: ep.Stage}
		res.Err = shader.ValidateCompatibility(pl, ep)
		if res.Err == nil && ep.Stage == binding.StageCompute {
			res.Err = checkCompute(dev, pl, mod, ep.Name)
		}
		r.Results = append(r.Results, res)
	}
	return r, nil
}

// checkCompute creates the compute pipeline, which adds the pipeline-level
// checks such as workgroup limits and override resolution.
func checkCompute(dev *bindcore.Device, pl *layout.PipelineLayout, mod *shader.Module, name string) error {
	p, err := dev.CreateComputePipeline(&pipeline.ComputePipelineDescriptor{
		Layout:  pl,
		Compute: pipeline.ProgrammableStage{Module: mod, EntryPoint: name},
	})
	if err != nil {
		return err
	}
	p.Release()
	return nil
}
