package engine

import (
	"encoding/json"
	"math"

	"github.com/scottdaly/drkr/core"
)

// Filter is a per-layer pixel transform. The set of filters is closed.
type Filter interface {
	Name() string
	apply(px []byte, width, height int) []byte
}

type (
	GaussianBlur struct{ Radius float64 }
	Brightness   struct{ Value int }
	Contrast     struct{ Value float64 }
	Saturation   struct{ Value float64 }
	Invert       struct{}
	Grayscale    struct{}
)

func (GaussianBlur) Name() string { return "gaussianBlur" }
func (Brightness) Name() string   { return "brightness" }
func (Contrast) Name() string     { return "contrast" }
func (Saturation) Name() string   { return "saturation" }
func (Invert) Name() string       { return "invert" }
func (Grayscale) Name() string    { return "grayscale" }

// FilterParams is the tagged wire form of a Filter, e.g.
// {"type":"brightness","value":20}.
type FilterParams struct {
	Type   string   `json:"type"`
	Radius *float64 `json:"radius,omitempty"`
	Value  *float64 `json:"value,omitempty"`
}

// DecodeFilter parses the tagged JSON form of a filter.
func DecodeFilter(data []byte) (Filter, error) {
	var p FilterParams
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, core.SerializationError(err, "invalid filter parameters")
	}
	return p.Filter()
}

func (p FilterParams) Filter() (Filter, error) {
	need := func(v *float64, field string) (float64, error) {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return 0, core.InvalidOperation("filter %q requires a finite %s", p.Type, field)
		}
		return *v, nil
	}

	switch p.Type {
	case "gaussianBlur":
		r, err := need(p.Radius, "radius")
		if err != nil {
			return nil, err
		}
		return GaussianBlur{Radius: r}, nil
	case "brightness":
		v, err := need(p.Value, "value")
		if err != nil {
			return nil, err
		}
		return Brightness{Value: int(math.Round(math.Max(-255, math.Min(255, v))))}, nil
	case "contrast":
		v, err := need(p.Value, "value")
		if err != nil {
			return nil, err
		}
		return Contrast{Value: v}, nil
	case "saturation":
		v, err := need(p.Value, "value")
		if err != nil {
			return nil, err
		}
		return Saturation{Value: v}, nil
	case "invert":
		return Invert{}, nil
	case "grayscale":
		return Grayscale{}, nil
	}
	return nil, core.InvalidOperation("unknown filter type %q", p.Type)
}

func clampChannel(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(math.Round(v))
}

func (f Brightness) apply(px []byte, _, _ int) []byte {
	for i := 0; i+3 < len(px); i += 4 {
		for c := 0; c < 3; c++ {
			px[i+c] = clampChannel(float64(int(px[i+c]) + f.Value))
		}
	}
	return px
}

func (f Contrast) apply(px []byte, _, _ int) []byte {
	v := math.Max(-255, math.Min(255, f.Value))
	factor := (259 * (v + 255)) / (255 * (259 - v))
	for i := 0; i+3 < len(px); i += 4 {
		for c := 0; c < 3; c++ {
			px[i+c] = clampChannel(factor*(float64(px[i+c])-128) + 128)
		}
	}
	return px
}

func (f Saturation) apply(px []byte, _, _ int) []byte {
	factor := 1 + f.Value/100
	for i := 0; i+3 < len(px); i += 4 {
		r, g, b := float64(px[i]), float64(px[i+1]), float64(px[i+2])
		gray := 0.2126*r + 0.7152*g + 0.0722*b
		px[i] = clampChannel(gray + factor*(r-gray))
		px[i+1] = clampChannel(gray + factor*(g-gray))
		px[i+2] = clampChannel(gray + factor*(b-gray))
	}
	return px
}

func (Invert) apply(px []byte, _, _ int) []byte {
	for i := 0; i+3 < len(px); i += 4 {
		px[i] = 255 - px[i]
		px[i+1] = 255 - px[i+1]
		px[i+2] = 255 - px[i+2]
	}
	return px
}

func (Grayscale) apply(px []byte, _, _ int) []byte {
	for i := 0; i+3 < len(px); i += 4 {
		gray := clampChannel(0.2126*float64(px[i]) + 0.7152*float64(px[i+1]) + 0.0722*float64(px[i+2]))
		px[i], px[i+1], px[i+2] = gray, gray, gray
	}
	return px
}

// apply runs a separable box blur over the color channels as a cheap
// approximation of a gaussian.
func (f GaussianBlur) apply(px []byte, width, height int) []byte {
	if width <= 0 || height <= 0 {
		return px
	}
	radius := int(math.Round(math.Min(f.Radius, float64(max(width, height)))))
	if radius <= 0 {
		return px
	}
	tmp := make([]byte, len(px))
	copy(tmp, px)
	boxPass(px, tmp, width, height, radius, 1, 0)
	boxPass(tmp, px, width, height, radius, 0, 1)
	return px
}

// boxPass averages src along (dx, dy) into dst, color channels only.
func boxPass(src, dst []byte, width, height, radius, dx, dy int) {
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum [3]int
			count := 0
			for k := -radius; k <= radius; k++ {
				nx, ny := x+k*dx, y+k*dy
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				j := (ny*width + nx) * 4
				sum[0] += int(src[j])
				sum[1] += int(src[j+1])
				sum[2] += int(src[j+2])
				count++
			}
			i := (y*width + x) * 4
			dst[i] = byte(sum[0] / count)
			dst[i+1] = byte(sum[1] / count)
			dst[i+2] = byte(sum[2] / count)
		}
	}
}
