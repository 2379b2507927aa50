package engine

import (
	"math"

	"github.com/scottdaly/drkr/core"
)

type (
	// StrokePoint is a sampled input position in document coordinates.
	// Pressure is nil when the input device does not report it.
	StrokePoint struct {
		X         float64  `json:"x"`
		Y         float64  `json:"y"`
		Pressure  *float64 `json:"pressure,omitempty"`
		Timestamp uint64   `json:"timestamp"`
	}

	BrushSettings struct {
		Size     float64 `json:"size"`
		Hardness float64 `json:"hardness"` // 0-100
		Opacity  float64 `json:"opacity"`  // 0-100
		Flow     float64 `json:"flow"`     // 0-100
		Spacing  float64 `json:"spacing"`  // percent of size; sampling is left to the client
	}

	BrushColor struct {
		R uint8   `json:"r"`
		G uint8   `json:"g"`
		B uint8   `json:"b"`
		A float64 `json:"a"` // 0-1
	}

	Stroke struct {
		Points   []StrokePoint `json:"points"`
		Settings BrushSettings `json:"settings"`
		Color    BrushColor    `json:"color"`
		Eraser   bool          `json:"isEraser"`
	}
)

// stampAlpha returns the stamp coverage at dist from the center for a brush of
// the given radius. base is opacity*flow*pressure in [0,1].
func stampAlpha(dist, radius, hardness, base float64) float64 {
	if dist > radius {
		return 0
	}
	inner := radius * hardness
	if dist <= inner {
		return base
	}
	falloffRange := radius - inner
	if falloffRange <= 0 {
		return base
	}
	falloff := 1 - (dist-inner)/falloffRange
	return base * falloff * falloff
}

// paintStroke stamps every point of s, in order, into px, a width x height
// buffer whose origin sits at (originX, originY) in document space.
func paintStroke(px []byte, width, height, originX, originY int, s Stroke) {
	for _, p := range s.Points {
		stamp(px, width, height, originX, originY, p, s)
	}
}

func stamp(px []byte, width, height, originX, originY int, p StrokePoint, s Stroke) {
	radius := s.Settings.Size / 2
	if radius <= 0 || width <= 0 || height <= 0 {
		return
	}
	pressure := 1.0
	if p.Pressure != nil {
		pressure = *p.Pressure
	}
	base := (s.Settings.Opacity / 100) * (s.Settings.Flow / 100) * pressure
	if base <= 0 {
		return
	}
	hardness := clampUnit(s.Settings.Hardness / 100)

	cx := p.X - float64(originX)
	cy := p.Y - float64(originY)
	if cx+radius < 0 || cy+radius < 0 || cx-radius > float64(width-1) || cy-radius > float64(height-1) {
		return
	}
	minX := clampInt(int(math.Floor(cx-radius)), 0, width-1)
	maxX := clampInt(int(math.Ceil(cx+radius)), 0, width-1)
	minY := clampInt(int(math.Floor(cy-radius)), 0, height-1)
	maxY := clampInt(int(math.Ceil(cy+radius)), 0, height-1)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			alpha := stampAlpha(math.Sqrt(dx*dx+dy*dy), radius, hardness, base)
			if alpha <= 0 {
				continue
			}
			i := (y*width + x) * 4
			if s.Eraser {
				remaining := float64(px[i+3]) / 255 * (1 - math.Min(alpha, 1))
				px[i+3] = unitToByte(remaining)
				continue
			}
			Over(px[i:i+4], s.Color.R, s.Color.G, s.Color.B, unitToByte(alpha*clampUnit(s.Color.A)))
		}
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func validateStroke(s Stroke) error {
	values := []float64{s.Settings.Size, s.Settings.Hardness, s.Settings.Opacity, s.Settings.Flow, s.Settings.Spacing, s.Color.A}
	for _, p := range s.Points {
		values = append(values, p.X, p.Y)
		if p.Pressure != nil {
			values = append(values, *p.Pressure)
		}
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.InvalidOperation("brush stroke contains a non-finite value")
		}
	}
	if s.Settings.Size > 2*MaxDimension {
		return core.InvalidOperation("brush size %.0f is too large", s.Settings.Size)
	}
	return nil
}
