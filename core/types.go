package core

import "fmt"

type LayerType string

const (
	LayerRaster     LayerType = "raster"
	LayerAdjustment LayerType = "adjustment"
	LayerGroup      LayerType = "group"
	LayerText       LayerType = "text"
	LayerShape      LayerType = "shape"
)

// HasPixels reports whether layers of this type own a pixel buffer.
func (t LayerType) HasPixels() bool {
	return t == LayerRaster
}

func (t LayerType) Valid() bool {
	switch t {
	case LayerRaster, LayerAdjustment, LayerGroup, LayerText, LayerShape:
		return true
	}
	return false
}

// BlendMode names how a layer combines with what lies beneath it.
type BlendMode string

const (
	BlendNormal     BlendMode = "normal"
	BlendMultiply   BlendMode = "multiply"
	BlendScreen     BlendMode = "screen"
	BlendOverlay    BlendMode = "overlay"
	BlendDarken     BlendMode = "darken"
	BlendLighten    BlendMode = "lighten"
	BlendColorDodge BlendMode = "colorDodge"
	BlendColorBurn  BlendMode = "colorBurn"
	BlendHardLight  BlendMode = "hardLight"
	BlendSoftLight  BlendMode = "softLight"
	BlendDifference BlendMode = "difference"
	BlendExclusion  BlendMode = "exclusion"
	BlendHue        BlendMode = "hue"
	BlendSaturation BlendMode = "saturation"
	BlendColor      BlendMode = "color"
	BlendLuminosity BlendMode = "luminosity"
)

// BlendModes lists every mode in declaration order.
var BlendModes = []BlendMode{
	BlendNormal, BlendMultiply, BlendScreen, BlendOverlay,
	BlendDarken, BlendLighten, BlendColorDodge, BlendColorBurn,
	BlendHardLight, BlendSoftLight, BlendDifference, BlendExclusion,
	BlendHue, BlendSaturation, BlendColor, BlendLuminosity,
}

func (m BlendMode) Valid() bool {
	for _, known := range BlendModes {
		if m == known {
			return true
		}
	}
	return false
}

func (m *BlendMode) UnmarshalText(text []byte) error {
	mode := BlendMode(text)
	if !mode.Valid() {
		return fmt.Errorf("unknown blend mode %q", string(text))
	}
	*m = mode
	return nil
}
