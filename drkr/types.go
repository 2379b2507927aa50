// Package drkr reads and writes DRKR archives: a zip container holding a
// manifest, a document descriptor, per-layer metadata with an image-encoded
// pixel payload, and merged previews.
package drkr

import (
	"strconv"
	"strings"

	"github.com/scottdaly/drkr/core"
)

const (
	MimeType = "application/x-drkr"
	Version  = "1.0"

	// SupportedMajor is the newest manifest major version this package loads.
	SupportedMajor = 1

	GeneratorName    = "Darker"
	GeneratorVersion = "0.1.0"
	GeneratorURL     = "https://github.com/scottdaly/drkr"

	// ThumbnailSize bounds both sides of preview/thumbnail.
	ThumbnailSize = 256

	PixelFormat = "png"
)

const (
	entryMimeType  = "mimetype"
	entryManifest  = "manifest.json"
	entryDocument  = "document.json"
	entryThumbnail = "preview/thumbnail."
	entryMerged    = "preview/merged."
)

func layerMetaPath(id string) string {
	return "layers/" + id + "/meta.json"
}

func layerPixelsPath(id, format string) string {
	return "layers/" + id + "/pixels." + format
}

type Manifest struct {
	DrkrVersion    string               `json:"drkr_version"`
	Generator      Generator            `json:"generator"`
	CreatedAt      string               `json:"created_at"`
	ModifiedAt     string               `json:"modified_at"`
	Files          map[string]FileEntry `json:"files,omitempty"`
	ExtensionsUsed []string             `json:"extensions_used,omitempty"`
}

type Generator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url,omitempty"`
}

type FileEntry struct {
	Offset   uint64 `json:"offset"`
	Size     uint64 `json:"size"`
	Checksum string `json:"checksum,omitempty"`
}

// MajorVersion parses the leading component of DrkrVersion. Anything
// unparseable counts as 0.
func (m Manifest) MajorVersion() int {
	major, _, _ := strings.Cut(m.DrkrVersion, ".")
	n, err := strconv.Atoi(major)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type DocumentJSON struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Resolution *Resolution `json:"resolution,omitempty"`
	Color      ColorConfig `json:"color"`
	Background *Background `json:"background,omitempty"`
	Layers     []LayerRef  `json:"layers"`
	Guides     []Guide     `json:"guides,omitempty"`
	Metadata   *Metadata   `json:"metadata,omitempty"`
}

type Resolution struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

type ColorConfig struct {
	Space   string `json:"space"`
	Depth   int    `json:"depth"`
	Profile string `json:"profile,omitempty"`
}

// Background is either {"type":"transparent"} or {"type":"color","color":"#rrggbb"}.
type Background struct {
	Type  string `json:"type"`
	Color string `json:"color,omitempty"`
}

type LayerRef struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	AdjustmentID string     `json:"adjustment_id,omitempty"`
	Children     []LayerRef `json:"children,omitempty"`
}

type Guide struct {
	Orientation string `json:"orientation"`
	Position    int    `json:"position"`
}

type Metadata struct {
	Author      string         `json:"author,omitempty"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Custom      map[string]any `json:"custom,omitempty"`
}

type LayerMeta struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	Visible      bool     `json:"visible"`
	Locked       bool     `json:"locked"`
	Opacity      uint8    `json:"opacity"`
	BlendMode    string   `json:"blend_mode"`
	Position     Position `json:"position"`
	Size         Size     `json:"size"`
	MaskID       string   `json:"mask_id,omitempty"`
	ClippingMask bool     `json:"clipping_mask"`
	Storage      *Storage `json:"storage,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
	ModifiedAt   string   `json:"modified_at,omitempty"`
}

// layerMetaDefaults is what an absent field in meta.json means.
func layerMetaDefaults() LayerMeta {
	return LayerMeta{
		Visible:   true,
		Opacity:   100,
		BlendMode: "normal",
	}
}

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Storage struct {
	Format   string    `json:"format"`
	Mode     string    `json:"mode"`
	TileSize int       `json:"tile_size,omitempty"`
	Tiles    *TileInfo `json:"tiles,omitempty"`
}

type TileInfo struct {
	Columns    int      `json:"columns"`
	Rows       int      `json:"rows"`
	Sparse     bool     `json:"sparse"`
	EmptyTiles []string `json:"empty_tiles,omitempty"`
}

// blendNames maps internal blend modes to their on-disk spelling.
var blendNames = map[core.BlendMode]string{
	core.BlendNormal:     "normal",
	core.BlendMultiply:   "multiply",
	core.BlendScreen:     "screen",
	core.BlendOverlay:    "overlay",
	core.BlendDarken:     "darken",
	core.BlendLighten:    "lighten",
	core.BlendColorDodge: "color-dodge",
	core.BlendColorBurn:  "color-burn",
	core.BlendHardLight:  "hard-light",
	core.BlendSoftLight:  "soft-light",
	core.BlendDifference: "difference",
	core.BlendExclusion:  "exclusion",
	core.BlendHue:        "hue",
	core.BlendSaturation: "saturation",
	core.BlendColor:      "color",
	core.BlendLuminosity: "luminosity",
}

var blendModes = func() map[string]core.BlendMode {
	out := make(map[string]core.BlendMode, len(blendNames))
	for mode, name := range blendNames {
		out[name] = mode
	}
	return out
}()

func blendName(mode core.BlendMode) string {
	if name, ok := blendNames[mode]; ok {
		return name
	}
	return "normal"
}

// parseBlendMode falls back to normal for names it does not know.
func parseBlendMode(name string) core.BlendMode {
	if mode, ok := blendModes[name]; ok {
		return mode
	}
	return core.BlendNormal
}

// parseLayerType falls back to raster; "ai_generated" layers are raster.
func parseLayerType(name string) core.LayerType {
	t := core.LayerType(name)
	if t.Valid() {
		return t
	}
	return core.LayerRaster
}

// hasPixelPayload reports whether an on-disk layer type carries pixels.
func hasPixelPayload(name string) bool {
	return name == "raster" || name == "ai_generated"
}

func layerMetaFrom(l core.Layer) LayerMeta {
	return LayerMeta{
		ID:        l.ID,
		Type:      string(l.Type),
		Name:      l.Name,
		Visible:   l.Visible,
		Locked:    l.Locked,
		Opacity:   l.Opacity,
		BlendMode: blendName(l.BlendMode),
		Position:  Position{X: l.X, Y: l.Y},
		Size:      Size{Width: l.Width, Height: l.Height},
		Storage:   &Storage{Format: PixelFormat, Mode: "single"},
	}
}

func (m LayerMeta) layer() core.Layer {
	return core.Layer{
		ID:        m.ID,
		Name:      m.Name,
		Type:      parseLayerType(m.Type),
		Visible:   m.Visible,
		Locked:    m.Locked,
		Opacity:   min(m.Opacity, 100),
		BlendMode: parseBlendMode(m.BlendMode),
		X:         m.Position.X,
		Y:         m.Position.Y,
		Width:     m.Size.Width,
		Height:    m.Size.Height,
	}
}

func documentJSONFrom(doc core.Document) DocumentJSON {
	refs := make([]LayerRef, 0, len(doc.Layers))
	for _, l := range doc.Layers {
		refs = append(refs, LayerRef{ID: l.ID, Type: string(l.Type)})
	}
	return DocumentJSON{
		ID:         doc.ID,
		Name:       doc.Name,
		Width:      doc.Width,
		Height:     doc.Height,
		Resolution: &Resolution{Value: doc.Resolution, Unit: "ppi"},
		Color:      ColorConfig{Space: "srgb", Depth: 8},
		Background: &Background{Type: "transparent"},
		Layers:     refs,
	}
}
