package resource

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/format"
	"github.com/gogpu/bindcore/validation"
)

// ExternalTextureParamsSize is the minimum size of the parameter buffer
// of an external texture: the YUV-to-RGB conversion matrix, the gamut
// matrix and the transfer function parameters, padded to 16 bytes.
const ExternalTextureParamsSize = 256

// ExternalTextureDescriptor describes a multi-plane image.
type ExternalTextureDescriptor struct {
	Label string

	// Plane0 is the luma (or full RGBA) plane. Plane1 is the optional
	// chroma plane; when nil, Plane0 is bound for both planes.
	Plane0 *TextureView
	Plane1 *TextureView

	// Params is a uniform buffer holding the conversion parameters.
	Params *Buffer
}

// ExternalTexture bundles two plane views and a parameter buffer bound as
// a single logical binding.
type ExternalTexture struct {
	Object

	planes [2]*TextureView
	params *Buffer
}

// NewExternalTexture validates desc and creates an external texture. The
// external texture holds references on its planes and parameter buffer.
func NewExternalTexture(desc *ExternalTextureDescriptor) (*ExternalTexture, error) {
	if desc == nil || desc.Plane0 == nil {
		return nil, validation.Errorf("external texture requires plane 0")
	}
	if desc.Params == nil {
		return nil, validation.Errorf("external texture requires a parameter buffer")
	}
	if !desc.Params.HasUsage(gputypes.BufferUsageUniform) {
		return nil, validation.Errorf("external texture parameter buffer %s lacks the Uniform usage", desc.Params)
	}
	if desc.Params.Size() < ExternalTextureParamsSize {
		return nil, validation.Errorf("external texture parameter buffer size (%d) is smaller than %d",
			desc.Params.Size(), ExternalTextureParamsSize)
	}
	planes := [2]*TextureView{desc.Plane0, desc.Plane1}
	if planes[1] == nil {
		planes[1] = planes[0]
	}
	for i, p := range planes {
		if err := validatePlane(p); err != nil {
			return nil, validation.WithContext(err, "validating plane %d of external texture", i)
		}
	}

	e := &ExternalTexture{planes: planes, params: desc.Params}
	e.Init("ExternalTexture", desc.Label)
	for _, p := range planes {
		p.AddRef()
	}
	desc.Params.AddRef()
	e.OnDestroy(func() {
		for _, p := range e.planes {
			p.Release()
		}
		e.params.Release()
	})
	return e, nil
}

func validatePlane(v *TextureView) error {
	if !v.texture.HasUsage(gputypes.TextureUsageTextureBinding) {
		return validation.Errorf("%s of %s lacks the TextureBinding usage", v, v.texture)
	}
	if v.dimension != gputypes.TextureViewDimension2D {
		return validation.Errorf("%s must be a 2D view", v)
	}
	if v.mipCount != 1 {
		return validation.Errorf("%s must have exactly one mip level (has %d)", v, v.mipCount)
	}
	if v.aspects != format.AspectColor || v.SampleTypes()&format.SampleTypeFloat == 0 {
		return validation.Errorf("%s format %s is not a filterable color format", v, v.format.Format)
	}
	return nil
}

// Plane returns plane i (0 or 1).
func (e *ExternalTexture) Plane(i int) *TextureView { return e.planes[i] }

// Params returns the conversion parameter buffer.
func (e *ExternalTexture) Params() *Buffer { return e.params }
