package engine

import (
	"bytes"
	"testing"

	"github.com/scottdaly/drkr/core"
)

func TestOver_TransparentSourceLeavesDestination(t *testing.T) {
	dsts := [][]byte{
		{0, 0, 0, 0},
		{12, 200, 99, 255},
		{1, 2, 3, 4},
		{255, 255, 255, 128},
	}
	for _, dst := range dsts {
		got := append([]byte(nil), dst...)
		Over(got, 255, 0, 0, 0)
		if !bytes.Equal(got, dst) {
			t.Errorf("Over with alpha 0 changed %v to %v", dst, got)
		}
	}
}

func TestOver_OpaqueSourceReplacesDestination(t *testing.T) {
	dsts := [][]byte{
		{0, 0, 0, 0},
		{12, 200, 99, 255},
		{255, 255, 255, 128},
	}
	for _, dst := range dsts {
		got := append([]byte(nil), dst...)
		Over(got, 10, 20, 30, 255)
		want := []byte{10, 20, 30, 255}
		if !bytes.Equal(got, want) {
			t.Errorf("Over with alpha 255 on %v = %v, want %v", dst, got, want)
		}
	}
}

func TestOver_HalfAlphaOnOpaque(t *testing.T) {
	dst := []byte{0, 0, 0, 255}
	Over(dst, 255, 255, 255, 128)

	// 128/255 of white over black rounds to 128.
	want := []byte{128, 128, 128, 255}
	if !bytes.Equal(dst, want) {
		t.Errorf("Over() = %v, want %v", dst, want)
	}
}

func TestOver_OntoTransparentKeepsSourceColor(t *testing.T) {
	dst := []byte{0, 0, 0, 0}
	Over(dst, 200, 100, 50, 64)

	want := []byte{200, 100, 50, 64}
	if !bytes.Equal(dst, want) {
		t.Errorf("Over() = %v, want %v", dst, want)
	}
}

func TestScaleAlpha(t *testing.T) {
	tests := []struct {
		a, percent, want uint8
	}{
		{255, 100, 255},
		{255, 0, 0},
		{255, 50, 128},
		{200, 25, 50},
		{10, 120, 10},
	}
	for _, tt := range tests {
		if got := scaleAlpha(tt.a, tt.percent); got != tt.want {
			t.Errorf("scaleAlpha(%d, %d) = %d, want %d", tt.a, tt.percent, got, tt.want)
		}
	}
}

func TestBlend_NormalMatchesOver(t *testing.T) {
	a := []byte{30, 60, 90, 200}
	b := append([]byte(nil), a...)
	Over(a, 250, 10, 100, 77)
	Blend(core.BlendNormal, b, 250, 10, 100, 77)
	if !bytes.Equal(a, b) {
		t.Errorf("Blend(normal) = %v, Over = %v", b, a)
	}
}

func TestBlend_UnknownModeFallsBackToOver(t *testing.T) {
	a := []byte{30, 60, 90, 200}
	b := append([]byte(nil), a...)
	Over(a, 1, 2, 3, 100)
	Blend(core.BlendMode("vivid-light"), b, 1, 2, 3, 100)
	if !bytes.Equal(a, b) {
		t.Errorf("Blend(unknown) = %v, Over = %v", b, a)
	}
}

func TestBlend_OpaqueSeparableModes(t *testing.T) {
	tests := []struct {
		mode core.BlendMode
		dst  [3]byte
		src  [3]byte
		want [3]byte
	}{
		{core.BlendMultiply, [3]byte{255, 128, 0}, [3]byte{128, 128, 128}, [3]byte{128, 64, 0}},
		{core.BlendScreen, [3]byte{0, 255, 128}, [3]byte{0, 0, 0}, [3]byte{0, 255, 128}},
		{core.BlendDarken, [3]byte{10, 200, 30}, [3]byte{20, 100, 40}, [3]byte{10, 100, 30}},
		{core.BlendLighten, [3]byte{10, 200, 30}, [3]byte{20, 100, 40}, [3]byte{20, 200, 40}},
		{core.BlendDifference, [3]byte{200, 50, 0}, [3]byte{50, 200, 0}, [3]byte{150, 150, 0}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			dst := []byte{tt.dst[0], tt.dst[1], tt.dst[2], 255}
			Blend(tt.mode, dst, tt.src[0], tt.src[1], tt.src[2], 255)
			got := [3]byte{dst[0], dst[1], dst[2]}
			if got != tt.want || dst[3] != 255 {
				t.Errorf("Blend(%s) = %v alpha %d, want %v alpha 255", tt.mode, got, dst[3], tt.want)
			}
		})
	}
}

func TestBlend_OntoTransparentIsOver(t *testing.T) {
	for _, mode := range core.BlendModes {
		dst := []byte{0, 0, 0, 0}
		Blend(mode, dst, 90, 80, 70, 255)
		want := []byte{90, 80, 70, 255}
		if !bytes.Equal(dst, want) {
			t.Errorf("Blend(%s) onto transparent = %v, want %v", mode, dst, want)
		}
	}
}

func TestBlend_LuminosityOfGrayKeepsGray(t *testing.T) {
	dst := []byte{100, 100, 100, 255}
	Blend(core.BlendLuminosity, dst, 200, 200, 200, 255)
	if dst[0] != dst[1] || dst[1] != dst[2] || dst[0] != 200 {
		t.Errorf("Blend(luminosity) = %v, want gray 200", dst)
	}
}

func TestFlatten_SkipsHiddenAndScalesOpacity(t *testing.T) {
	doc := NewDocument("flat", 2, 1, 72)
	bg := doc.Layers[0]
	top := NewRasterLayer("top", 2, 1)
	top.Opacity = 50
	hidden := NewRasterLayer("hidden", 2, 1)
	hidden.Visible = false
	doc.Layers = append(doc.Layers, top, hidden)

	pixels := map[string][]byte{
		bg.ID:     {0, 0, 0, 255, 0, 0, 0, 255},
		top.ID:    {255, 255, 255, 255, 0, 0, 0, 0},
		hidden.ID: {9, 9, 9, 255, 9, 9, 9, 255},
	}

	got := Flatten(doc, pixels)
	want := []byte{128, 128, 128, 255, 0, 0, 0, 255}
	if !bytes.Equal(got, want) {
		t.Errorf("Flatten() = %v, want %v", got, want)
	}
}

func TestFlatten_ClipsOffsetLayer(t *testing.T) {
	doc := NewDocument("clip", 2, 2, 72)
	doc.Layers[0].Visible = false
	layer := NewRasterLayer("offset", 2, 2)
	layer.X, layer.Y = 1, -1
	doc.Layers = append(doc.Layers, layer)

	pixels := map[string][]byte{
		layer.ID: bytes.Repeat([]byte{7, 7, 7, 255}, 4),
	}

	got := Flatten(doc, pixels)
	want := []byte{
		0, 0, 0, 0, 7, 7, 7, 255,
		0, 0, 0, 0, 0, 0, 0, 0,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Flatten() = %v, want %v", got, want)
	}
}
