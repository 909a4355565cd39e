package tools

import "coco-annotator/internal/wand"

// Scale factors applied to stroke widths so previews keep a constant size on
// screen.
const (
	BBoxScaleFactor    = 3
	PolygonScaleFactor = 3
	BrushScaleFactor   = 3

	// SimplifyTolerance is used when brush strokes are cleaned up.
	SimplifyTolerance = 1.0

	// BrushRadiusStep is the grow/shrink step of the brush size shortcuts.
	BrushRadiusStep = 5
	BrushRadiusMin  = 5
)

type BBoxSettings struct {
	Color string `json:"color" yaml:"color"`
}

type PolygonSettings struct {
	GuidanceOn       bool    `json:"guidanceOn" yaml:"guidanceOn"`
	MinDistance      float64 `json:"minDistance" yaml:"minDistance" validate:"gte=0"`
	CompleteDistance float64 `json:"completeDistance" yaml:"completeDistance" validate:"gte=0"`
	ColorAuto        bool    `json:"colorAuto" yaml:"colorAuto"`
	ColorRadius      float64 `json:"colorRadius" yaml:"colorRadius" validate:"gte=0"`
	StrokeColor      string  `json:"strokeColor" yaml:"strokeColor"`
	StrokeWidth      float64 `json:"strokeWidth" yaml:"strokeWidth" validate:"gt=0"`
}

type BrushSettings struct {
	Radius      float64 `json:"radius" yaml:"radius" validate:"gt=0"`
	StrokeWidth float64 `json:"strokeWidth" yaml:"strokeWidth" validate:"gt=0"`
	Color       string  `json:"color" yaml:"color"`
}

type SelectSettings struct {
	TooltipOn bool    `json:"tooltipOn" yaml:"tooltipOn"`
	Tolerance float64 `json:"tolerance" yaml:"tolerance" validate:"gt=0"`
}

type DextrSettings struct {
	Padding   int `json:"padding" yaml:"padding" validate:"gte=0"`
	Threshold int `json:"threshold" yaml:"threshold" validate:"gte=0,lte=100"`
}

// Preferences is the per-tool settings bundle, exported with every save as
// the user's tool preferences.
type Preferences struct {
	Select  SelectSettings  `json:"select" yaml:"select"`
	BBox    BBoxSettings    `json:"bbox" yaml:"bbox"`
	Polygon PolygonSettings `json:"polygon" yaml:"polygon"`
	Brush   BrushSettings   `json:"brush" yaml:"brush"`
	Eraser  BrushSettings   `json:"eraser" yaml:"eraser"`
	Wand    wand.Settings   `json:"wand" yaml:"wand"`
	Dextr   DextrSettings   `json:"dextr" yaml:"dextr"`
}

// DefaultPreferences returns the initial settings of every tool.
func DefaultPreferences() Preferences {
	return Preferences{
		Select: SelectSettings{TooltipOn: true, Tolerance: 10},
		BBox:   BBoxSettings{Color: "black"},
		Polygon: PolygonSettings{
			GuidanceOn:       true,
			MinDistance:      2,
			CompleteDistance: 5,
			ColorAuto:        true,
			ColorRadius:      10,
			StrokeColor:      "black",
			StrokeWidth:      1,
		},
		Brush:  BrushSettings{Radius: 30, StrokeWidth: 1, Color: "white"},
		Eraser: BrushSettings{Radius: 30, StrokeWidth: 1, Color: "white"},
		Wand:   wand.DefaultSettings(),
		Dextr:  DextrSettings{Padding: 50, Threshold: 80},
	}
}

// Merge overlays the non-zero fields of other onto p. Saved preferences may
// be partial; missing values keep their defaults.
func (p Preferences) Merge(other Preferences) Preferences {
	if other.Select.Tolerance > 0 {
		p.Select = other.Select
	}
	if other.BBox.Color != "" {
		p.BBox.Color = other.BBox.Color
	}
	if other.Polygon.StrokeWidth > 0 {
		p.Polygon = other.Polygon
	}
	if other.Brush.Radius > 0 {
		p.Brush = mergeBrush(p.Brush, other.Brush)
	}
	if other.Eraser.Radius > 0 {
		p.Eraser = mergeBrush(p.Eraser, other.Eraser)
	}
	if other.Wand.Threshold > 0 {
		p.Wand.Threshold = other.Wand.Threshold
	}
	if other.Wand.Blur > 0 {
		p.Wand.Blur = other.Wand.Blur
	}
	if other.Dextr.Padding > 0 {
		p.Dextr.Padding = other.Dextr.Padding
	}
	if other.Dextr.Threshold > 0 {
		p.Dextr.Threshold = other.Dextr.Threshold
	}
	return p
}

func mergeBrush(base, other BrushSettings) BrushSettings {
	base.Radius = other.Radius
	if other.StrokeWidth > 0 {
		base.StrokeWidth = other.StrokeWidth
	}
	if other.Color != "" {
		base.Color = other.Color
	}
	return base
}
