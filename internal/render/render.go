// Package render rasterises the annotation overlay: background image,
// annotation fills and outlines, keypoints and the active tool's preview.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"coco-annotator/internal/scene"
	"coco-annotator/internal/tools"
	"coco-annotator/internal/viewport"
	"coco-annotator/pkg/colorutil"
	"coco-annotator/pkg/geometry"

	"github.com/gogpu/gg"
	"go.uber.org/zap"
)

// Style holds the drawing constants of the overlay.
type Style struct {
	FillOpacity     float64
	StrokeWidth     float64
	ActiveWidth     float64
	KeypointRadius  float64
	EdgeWidth       float64
	Background      color.RGBA
	DefaultColor    color.RGBA
	ActiveHighlight color.RGBA
}

// DefaultStyle returns the standard overlay style.
func DefaultStyle() Style {
	return Style{
		FillOpacity:     0.4,
		StrokeWidth:     1,
		ActiveWidth:     2.5,
		KeypointRadius:  4,
		EdgeWidth:       2,
		Background:      color.RGBA{R: 48, G: 48, B: 48, A: 255},
		DefaultColor:    color.RGBA{R: 0, G: 128, B: 255, A: 255},
		ActiveHighlight: color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}
}

// Source is what the renderer reads from the canvas controller.
type Source interface {
	Viewport() *viewport.Viewport
	Graph() *scene.Graph
	Preview() tools.Preview
	EditingShape() (geometry.CompoundShape, bool)
}

// Renderer draws frames. The background image buffer is cached between
// frames and rebuilt when the raster changes.
type Renderer struct {
	Style  Style
	Logger *zap.Logger

	bgSource image.Image
	bg       *gg.ImageBuf

	// density is frame pixels per view unit; above 1 on HiDPI screens.
	density float64
	// frameErr is the first drawing error of the current frame.
	frameErr error
}

// New creates a renderer with the default style.
func New() *Renderer {
	return &Renderer{Style: DefaultStyle()}
}

// ParseColor reads a backend colour, falling back to def.
func ParseColor(s string, def color.RGBA) color.RGBA {
	return colorutil.ParseHexOr(s, def)
}

// Frame renders one view-sized frame.
func (r *Renderer) Frame(src Source, width, height int) *image.RGBA {
	if width <= 0 || height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	dc := gg.NewContext(width, height)
	defer dc.Close()
	r.frameErr = nil
	defer r.endFrame()
	dc.ClearWithColor(gg.FromColor(r.Style.Background))

	view := src.Viewport()
	r.density = 1
	if vw, _ := view.ViewSize(); vw > 0 {
		r.density = float64(width) / vw
	}
	r.drawBackground(dc, view)

	g := src.Graph()
	editing, hasEditing := src.EditingShape()
	for _, ag := range g.VisibleAnnotations() {
		shape := ag.Shape.CompoundShape
		if ag.Active && hasEditing {
			shape = editing
		}
		col := r.annotationColor(g, ag)
		r.drawShape(dc, view, shape, col, ag.Active)
		r.drawKeypoints(dc, view, g, ag, col)
	}
	r.drawPreview(dc, view, src.Preview())

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	img := dc.Image()
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

func (r *Renderer) drawBackground(dc *gg.Context, view *viewport.Viewport) {
	raster := view.Raster()
	if raster == nil {
		r.bgSource, r.bg = nil, nil
		return
	}
	if r.bgSource != raster.Image {
		r.bgSource = raster.Image
		r.bg = gg.ImageBufFromImage(raster.Image)
	}
	size := raster.Size()
	tl := r.toView(view, geometry.Point2D{X: -size.Width / 2, Y: -size.Height / 2})
	br := r.toView(view, geometry.Point2D{X: size.Width / 2, Y: size.Height / 2})
	dc.DrawImageEx(r.bg, gg.DrawImageOptions{
		X:             tl.X,
		Y:             tl.Y,
		DstWidth:      br.X - tl.X,
		DstHeight:     br.Y - tl.Y,
		Interpolation: gg.InterpNearest,
		Opacity:       1,
	})
}

func (r *Renderer) annotationColor(g *scene.Graph, ag *scene.AnnotationGroup) color.RGBA {
	if ag.Color != "" {
		return ParseColor(ag.Color, r.Style.DefaultColor)
	}
	if cg, ok := g.FindCategoryGroup(ag.CategoryID); ok && cg.Color != "" {
		return ParseColor(cg.Color, r.Style.DefaultColor)
	}
	return r.Style.DefaultColor
}

func (r *Renderer) toView(view *viewport.Viewport, p geometry.Point2D) geometry.Point2D {
	return view.SceneToView(p).Scale(r.density)
}

// tracePath adds every ring as a closed sub-path in view coordinates.
func (r *Renderer) tracePath(dc *gg.Context, view *viewport.Viewport, rings []geometry.Ring, closed bool) bool {
	drawn := false
	for _, ring := range rings {
		if len(ring) < 2 {
			continue
		}
		for i, p := range ring {
			v := r.toView(view, p)
			if i == 0 {
				dc.MoveTo(v.X, v.Y)
			} else {
				dc.LineTo(v.X, v.Y)
			}
		}
		if closed {
			dc.ClosePath()
		}
		drawn = true
	}
	return drawn
}

func (r *Renderer) drawShape(dc *gg.Context, view *viewport.Viewport, shape geometry.CompoundShape, col color.RGBA, active bool) {
	if !r.tracePath(dc, view, shape.Rings, true) {
		return
	}
	// Holes are separate rings of a compound shape.
	dc.SetFillRule(gg.FillRuleEvenOdd)
	setColor(dc, col, r.Style.FillOpacity)
	r.check(dc.FillPreserve())

	width := r.Style.StrokeWidth
	stroke := col
	if active {
		width = r.Style.ActiveWidth
		stroke = r.Style.ActiveHighlight
	}
	dc.SetLineWidth(width * r.density)
	dc.SetColor(stroke)
	r.check(dc.Stroke())
}

func (r *Renderer) drawKeypoints(dc *gg.Context, view *viewport.Viewport, g *scene.Graph, ag *scene.AnnotationGroup, col color.RGBA) {
	if ag.Keypoints == nil || ag.Keypoints.Len() == 0 {
		return
	}
	var schema scene.KeypointSchema
	if cg, ok := g.FindCategoryGroup(ag.CategoryID); ok {
		schema = cg.Keypoint
	}

	dc.SetLineWidth(r.Style.EdgeWidth * r.density)
	dc.SetColor(col)
	for _, e := range ag.Keypoints.Edges() {
		a, okA := ag.Keypoints.Find(e[0])
		b, okB := ag.Keypoints.Find(e[1])
		if !okA || !okB {
			continue
		}
		va, vb := r.toView(view, a.Pos()), r.toView(view, b.Pos())
		dc.DrawLine(va.X, va.Y, vb.X, vb.Y)
		r.check(dc.Stroke())
	}

	for _, kp := range ag.Keypoints.Points() {
		fill := col
		if i := kp.Label - 1; i >= 0 && i < len(schema.Colors) {
			fill = ParseColor(schema.Colors[i], col)
		}
		v := r.toView(view, kp.Pos())
		dc.DrawCircle(v.X, v.Y, r.Style.KeypointRadius*r.density)
		if kp.Visible {
			dc.SetColor(fill)
			r.check(dc.FillPreserve())
		}
		dc.SetLineWidth(1)
		dc.SetColor(r.Style.ActiveHighlight)
		r.check(dc.Stroke())
	}
}

func (r *Renderer) drawPreview(dc *gg.Context, view *viewport.Viewport, p tools.Preview) {
	zoom := view.Zoom() * r.density
	stroke := ParseColor(p.StrokeColor, color.RGBA{A: 255})

	if len(p.Path) > 1 && r.tracePath(dc, view, []geometry.Ring{p.Path}, p.Closed) {
		dc.SetLineWidth(p.StrokeWidth * zoom)
		dc.SetColor(stroke)
		r.check(dc.Stroke())
	}
	for _, c := range p.Circles {
		v := r.toView(view, c.Center)
		dc.DrawCircle(v.X, v.Y, c.Radius*zoom)
		if c.Fill {
			setColor(dc, stroke, 0.5)
			r.check(dc.FillPreserve())
		}
		dc.SetLineWidth(maxf(p.StrokeWidth*zoom, 1))
		dc.SetColor(stroke)
		r.check(dc.Stroke())
	}
}

// check keeps the first drawing error of a frame; later ones are usually
// the same failure repeated.
func (r *Renderer) check(err error) {
	if err != nil && r.frameErr == nil {
		r.frameErr = err
	}
}

func (r *Renderer) endFrame() {
	if r.frameErr == nil {
		return
	}
	if r.Logger != nil {
		r.Logger.Warn("overlay draw failed", zap.Error(r.frameErr))
	}
	r.frameErr = nil
}

// setColor sets a straight-alpha colour with the given opacity.
func setColor(dc *gg.Context, c color.RGBA, opacity float64) {
	dc.SetRGBA(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, opacity)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
