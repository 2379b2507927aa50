package engine

import "math"

// Over composites the straight-alpha color (r, g, b, a) onto the 4-byte pixel
// dst with Porter-Duff source-over. a must already carry any opacity, flow or
// pressure factor. A fully transparent source leaves dst untouched.
func Over(dst []byte, r, g, b, a uint8) {
	if a == 0 {
		return
	}
	if a == 255 {
		dst[0], dst[1], dst[2], dst[3] = r, g, b, 255
		return
	}

	sa := float64(a) / 255
	da := float64(dst[3]) / 255
	outA := sa + da*(1-sa)
	if outA <= 0 {
		dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, 0
		return
	}

	src := [3]uint8{r, g, b}
	for i, c := range src {
		sc := float64(c) / 255
		dc := float64(dst[i]) / 255
		dst[i] = unitToByte((sc*sa + dc*da*(1-sa)) / outA)
	}
	dst[3] = unitToByte(outA)
}

// scaleAlpha multiplies an 8-bit alpha by a 0..100 percentage.
func scaleAlpha(a uint8, percent uint8) uint8 {
	if percent >= 100 {
		return a
	}
	return uint8(math.Round(float64(a) * float64(percent) / 100))
}

func unitToByte(v float64) uint8 {
	v = math.Round(v * 255)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
