package engine

import (
	"math"

	"github.com/scottdaly/drkr/core"
)

// Blend composites (r, g, b, a) onto dst using the given layer blend mode,
// following the W3C Compositing and Blending Level 1 formulas:
//
//	co = cs*as*(1-ab) + cb*ab*(1-as) + as*ab*B(cb, cs)
//	ao = as + ab*(1-as)
//
// Normal (and any unrecognised mode) is exactly Over.
func Blend(mode core.BlendMode, dst []byte, r, g, b, a uint8) {
	if a == 0 {
		return
	}
	if dst[3] == 0 {
		Over(dst, r, g, b, a)
		return
	}

	var mix func(cb, cs [3]float64) [3]float64
	if fn, ok := separable[mode]; ok {
		mix = func(cb, cs [3]float64) [3]float64 {
			return [3]float64{fn(cb[0], cs[0]), fn(cb[1], cs[1]), fn(cb[2], cs[2])}
		}
	} else if fn, ok := nonSeparable[mode]; ok {
		mix = fn
	} else {
		Over(dst, r, g, b, a)
		return
	}

	sa := float64(a) / 255
	ba := float64(dst[3]) / 255
	cs := [3]float64{float64(r) / 255, float64(g) / 255, float64(b) / 255}
	cb := [3]float64{float64(dst[0]) / 255, float64(dst[1]) / 255, float64(dst[2]) / 255}
	mixed := mix(cb, cs)

	outA := sa + ba*(1-sa)
	for i := 0; i < 3; i++ {
		co := cs[i]*sa*(1-ba) + cb[i]*ba*(1-sa) + sa*ba*mixed[i]
		dst[i] = unitToByte(co / outA)
	}
	dst[3] = unitToByte(outA)
}

var separable = map[core.BlendMode]func(cb, cs float64) float64{
	core.BlendMultiply: func(cb, cs float64) float64 { return cb * cs },
	core.BlendScreen:   screen,
	core.BlendOverlay:  func(cb, cs float64) float64 { return hardLight(cs, cb) },
	core.BlendDarken:   math.Min,
	core.BlendLighten:  math.Max,
	core.BlendColorDodge: func(cb, cs float64) float64 {
		switch {
		case cb == 0:
			return 0
		case cs >= 1:
			return 1
		}
		return math.Min(1, cb/(1-cs))
	},
	core.BlendColorBurn: func(cb, cs float64) float64 {
		switch {
		case cb >= 1:
			return 1
		case cs <= 0:
			return 0
		}
		return 1 - math.Min(1, (1-cb)/cs)
	},
	core.BlendHardLight: func(cb, cs float64) float64 { return hardLight(cb, cs) },
	core.BlendSoftLight: func(cb, cs float64) float64 {
		if cs <= 0.5 {
			return cb - (1-2*cs)*cb*(1-cb)
		}
		var d float64
		if cb <= 0.25 {
			d = ((16*cb-12)*cb + 4) * cb
		} else {
			d = math.Sqrt(cb)
		}
		return cb + (2*cs-1)*(d-cb)
	},
	core.BlendDifference: func(cb, cs float64) float64 { return math.Abs(cb - cs) },
	core.BlendExclusion:  func(cb, cs float64) float64 { return cb + cs - 2*cb*cs },
}

func screen(cb, cs float64) float64 {
	return cb + cs - cb*cs
}

func hardLight(cb, cs float64) float64 {
	if cs <= 0.5 {
		return cb * 2 * cs
	}
	return screen(cb, 2*cs-1)
}

var nonSeparable = map[core.BlendMode]func(cb, cs [3]float64) [3]float64{
	core.BlendHue: func(cb, cs [3]float64) [3]float64 {
		return setLum(setSat(cs, sat(cb)), lum(cb))
	},
	core.BlendSaturation: func(cb, cs [3]float64) [3]float64 {
		return setLum(setSat(cb, sat(cs)), lum(cb))
	},
	core.BlendColor: func(cb, cs [3]float64) [3]float64 {
		return setLum(cs, lum(cb))
	},
	core.BlendLuminosity: func(cb, cs [3]float64) [3]float64 {
		return setLum(cb, lum(cs))
	},
}

func lum(c [3]float64) float64 {
	return 0.3*c[0] + 0.59*c[1] + 0.11*c[2]
}

func sat(c [3]float64) float64 {
	return math.Max(c[0], math.Max(c[1], c[2])) - math.Min(c[0], math.Min(c[1], c[2]))
}

func clipColor(c [3]float64) [3]float64 {
	l := lum(c)
	n := math.Min(c[0], math.Min(c[1], c[2]))
	x := math.Max(c[0], math.Max(c[1], c[2]))
	if n < 0 {
		for i := range c {
			c[i] = l + (c[i]-l)*l/(l-n)
		}
	}
	if x > 1 {
		for i := range c {
			c[i] = l + (c[i]-l)*(1-l)/(x-l)
		}
	}
	return c
}

func setLum(c [3]float64, l float64) [3]float64 {
	d := l - lum(c)
	return clipColor([3]float64{c[0] + d, c[1] + d, c[2] + d})
}

func setSat(c [3]float64, s float64) [3]float64 {
	lo, mid, hi := 0, 1, 2
	if c[lo] > c[mid] {
		lo, mid = mid, lo
	}
	if c[mid] > c[hi] {
		mid, hi = hi, mid
	}
	if c[lo] > c[mid] {
		lo, mid = mid, lo
	}

	var out [3]float64
	if c[hi] > c[lo] {
		out[mid] = (c[mid] - c[lo]) * s / (c[hi] - c[lo])
		out[hi] = s
	}
	return out
}
