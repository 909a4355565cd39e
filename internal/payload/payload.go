// Package payload converts between the persisted annotation format (flat
// pixel rings, origin top-left) and the scene graph (origin at the image
// centre).
package payload

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"coco-annotator/internal/scene"
	"coco-annotator/pkg/geometry"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrInvalid is returned for payloads failing validation.
var ErrInvalid = errors.New("invalid payload")

var validate = validator.New()

// Import is the data the canvas is built from.
type Import struct {
	ImageID     int              `json:"imageId" validate:"gte=0"`
	Width       float64          `json:"width" validate:"gt=0"`
	Height      float64          `json:"height" validate:"gt=0"`
	Categories  []CategoryData   `json:"categories" validate:"dive"`
	Annotations []AnnotationData `json:"annotations" validate:"dive"`
}

// CategoryData is one category of an Import.
type CategoryData struct {
	ID             int              `json:"id" validate:"gt=0"`
	Name           string           `json:"name"`
	Color          string           `json:"color"`
	Metadata       []scene.MetaPair `json:"metadata,omitempty"`
	KeypointLabels []string         `json:"keypointLabels,omitempty"`
	KeypointEdges  []scene.Edge     `json:"keypointEdges,omitempty"`
	KeypointColors []string         `json:"keypointColors,omitempty"`
}

// AnnotationData is one annotation of an Import.
type AnnotationData struct {
	ID            int              `json:"id" validate:"gt=0"`
	CategoryID    int              `json:"categoryId" validate:"gt=0"`
	Name          string           `json:"name,omitempty"`
	Color         string           `json:"color,omitempty"`
	Metadata      []scene.MetaPair `json:"metadata,omitempty"`
	Segmentation  [][]float64      `json:"segmentation"`
	IsBBox        bool             `json:"isBBox"`
	Keypoints     []scene.Keypoint `json:"keypoints,omitempty"`
	KeypointEdges []scene.Edge     `json:"keypointEdges,omitempty"`
}

// Size returns the image size.
func (p Import) Size() geometry.Size {
	return geometry.NewSize(p.Width, p.Height)
}

// Validate checks the structural constraints of a payload.
func Validate(p Import) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, formatValidationError(err))
	}
	return nil
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// RingFromFlat converts a flat [x0, y0, x1, y1, ...] pixel ring to scene
// coordinates.
func RingFromFlat(flat []float64, size geometry.Size) (geometry.Ring, error) {
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("%w: odd coordinate count %d", ErrInvalid, len(flat))
	}
	if len(flat) < 6 {
		return nil, fmt.Errorf("%w: ring needs three points, got %d", ErrInvalid, len(flat)/2)
	}
	ring := make(geometry.Ring, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		ring = append(ring, geometry.Point2D{X: flat[i] - size.Width/2, Y: flat[i+1] - size.Height/2})
	}
	return ring, nil
}

// FlatFromRing converts a scene ring back to flat pixel coordinates truncated
// to one decimal.
func FlatFromRing(r geometry.Ring, size geometry.Size) []float64 {
	flat := make([]float64, 0, len(r)*2)
	for _, p := range r {
		flat = append(flat, truncate1(p.X+size.Width/2), truncate1(p.Y+size.Height/2))
	}
	return flat
}

// truncate1 truncates toward zero to one decimal. The epsilon absorbs binary
// representation error (2.3*10 is 22.999...).
func truncate1(v float64) float64 {
	const eps = 1e-9
	if v < 0 {
		return -math.Floor(-v*10+eps) / 10
	}
	return math.Floor(v*10+eps) / 10
}

// ShapeFromSegmentation converts all rings of a segmentation.
func ShapeFromSegmentation(seg [][]float64, size geometry.Size, isBBox bool) (geometry.CompoundShape, error) {
	shape := geometry.CompoundShape{IsBBox: isBBox}
	for i, flat := range seg {
		ring, err := RingFromFlat(flat, size)
		if err != nil {
			return geometry.CompoundShape{}, fmt.Errorf("ring %d: %w", i, err)
		}
		shape.Rings = append(shape.Rings, ring)
	}
	return shape, nil
}

// SegmentationFromShape converts a shape to flat pixel rings.
func SegmentationFromShape(s geometry.CompoundShape, size geometry.Size) [][]float64 {
	seg := make([][]float64, 0, len(s.Rings))
	for _, r := range s.Rings {
		if len(r) == 0 {
			continue
		}
		seg = append(seg, FlatFromRing(r, size))
	}
	return seg
}

// BuildScene replaces the content of g with the payload. Annotations with
// malformed geometry are kept with an empty shape.
func BuildScene(p Import, g *scene.Graph, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := Validate(p); err != nil {
		return err
	}
	size := p.Size()
	g.Clear()

	for _, c := range p.Categories {
		g.AddCategory(scene.Category{
			ID:      c.ID,
			Name:    c.Name,
			Color:   c.Color,
			Visible: true,
			Keypoint: scene.KeypointSchema{
				Labels: c.KeypointLabels,
				Edges:  c.KeypointEdges,
				Colors: c.KeypointColors,
			},
		})
	}

	for _, a := range p.Annotations {
		shape, err := ShapeFromSegmentation(a.Segmentation, size, a.IsBBox)
		if err != nil {
			logger.Warn("malformed segmentation, using empty geometry",
				zap.Int("annotationId", a.ID), zap.Error(err))
			shape = geometry.CompoundShape{}
		}
		if len(a.Segmentation) == 0 {
			logger.Debug("annotation without segmentation", zap.Int("annotationId", a.ID))
		}
		ag := g.AddAnnotation(a.CategoryID, scene.Annotation{
			ID:       a.ID,
			Name:     a.Name,
			Color:    a.Color,
			Metadata: a.Metadata,
		}, shape)
		ag.Keypoints.Import(keypointsToScene(a.Keypoints, size), a.KeypointEdges)
	}

	// A category is enabled when it has annotations.
	for _, cg := range g.Categories() {
		cg.Enabled = len(cg.Annotations()) > 0
	}
	return nil
}

// Export serialises the scene graph back to an Import.
func Export(g *scene.Graph, imageID int, size geometry.Size) Import {
	out := Import{ImageID: imageID, Width: size.Width, Height: size.Height}
	for _, cg := range g.Categories() {
		out.Categories = append(out.Categories, CategoryData{
			ID:             cg.ID,
			Name:           cg.Name,
			Color:          cg.Color,
			KeypointLabels: cg.Keypoint.Labels,
			KeypointEdges:  cg.Keypoint.Edges,
			KeypointColors: cg.Keypoint.Colors,
		})
		for _, ag := range cg.Annotations() {
			out.Annotations = append(out.Annotations, AnnotationData{
				ID:            ag.ID,
				CategoryID:    cg.ID,
				Name:          ag.Name,
				Color:         ag.Color,
				Metadata:      ag.Metadata,
				Segmentation:  SegmentationFromShape(ag.Shape.CompoundShape, size),
				IsBBox:        ag.Shape.IsBBox,
				Keypoints:     keypointsToPixels(ag.Keypoints.Points(), size),
				KeypointEdges: ag.Keypoints.Edges(),
			})
		}
	}
	return out
}

// Keypoints are persisted in pixel coordinates like the segmentation.
func keypointsToScene(kps []scene.Keypoint, size geometry.Size) []scene.Keypoint {
	out := make([]scene.Keypoint, len(kps))
	for i, k := range kps {
		k.X -= size.Width / 2
		k.Y -= size.Height / 2
		out[i] = k
	}
	return out
}

func keypointsToPixels(kps []scene.Keypoint, size geometry.Size) []scene.Keypoint {
	out := make([]scene.Keypoint, len(kps))
	for i, k := range kps {
		k.X = truncate1(k.X + size.Width/2)
		k.Y = truncate1(k.Y + size.Height/2)
		out[i] = k
	}
	return out
}
