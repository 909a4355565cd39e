package payload

import (
	"encoding/json"

	"coco-annotator/internal/scene"
	"coco-annotator/internal/tools"
	"coco-annotator/pkg/geometry"
)

const (
	ModeSegment = "segment"
	ModeLabel   = "label"
)

// Selection names the selected category and annotation; nil means none.
type Selection struct {
	CategoryID   *int `json:"categoryId"`
	AnnotationID *int `json:"annotationId"`
}

// ExportObject is the body posted when saving an image.
type ExportObject struct {
	Mode        string            `json:"mode" validate:"oneof=segment label"`
	User        tools.Preferences `json:"user"`
	Dataset     json.RawMessage   `json:"dataset,omitempty"`
	Image       ExportImage       `json:"image"`
	CategoryIDs []int             `json:"category_ids"`
	Settings    ExportSettings    `json:"settings"`
	Categories  []ExportCategory  `json:"categories"`
}

type ExportImage struct {
	ID       int       `json:"id"`
	Settings Selection `json:"settings"`
}

type ExportSettings struct {
	ActiveTool tools.Tool `json:"activeTool"`
	Zoom       float64    `json:"zoom"`
}

type ExportCategory struct {
	ID             int                `json:"id"`
	Name           string             `json:"name"`
	Show           bool               `json:"show"`
	Visualize      bool               `json:"visualize"`
	Color          string             `json:"color"`
	Annotations    []ExportAnnotation `json:"annotations"`
	KeypointLabels []string           `json:"keypoint_labels"`
	KeypointEdges  []scene.Edge       `json:"keypoint_edges"`
}

type ExportAnnotation struct {
	ID           int               `json:"id"`
	Color        string            `json:"color"`
	IsBBox       bool              `json:"isbbox"`
	Segmentation [][]float64       `json:"segmentation"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Keypoints    ExportKeypoints   `json:"keypoints"`
}

type ExportKeypoints struct {
	Keypoints []scene.Keypoint `json:"keypoints"`
	Edges     []scene.Edge     `json:"edges"`
}

// ExportOptions carries the session state that goes into an ExportObject.
type ExportOptions struct {
	ImageID     int
	Size        geometry.Size
	Dataset     json.RawMessage
	SegmentOn   bool
	ActiveTool  tools.Tool
	Zoom        float64
	Selection   Selection
	Preferences tools.Preferences
}

// BuildExportObject assembles the save body from the scene graph.
func BuildExportObject(g *scene.Graph, opts ExportOptions) ExportObject {
	obj := ExportObject{
		Mode:        ModeLabel,
		User:        opts.Preferences,
		Dataset:     opts.Dataset,
		Image:       ExportImage{ID: opts.ImageID, Settings: opts.Selection},
		CategoryIDs: []int{},
		Settings:    ExportSettings{ActiveTool: opts.ActiveTool, Zoom: opts.Zoom},
		Categories:  []ExportCategory{},
	}
	if opts.SegmentOn {
		obj.Mode = ModeSegment
	}

	for _, cg := range g.Categories() {
		obj.CategoryIDs = append(obj.CategoryIDs, cg.ID)
		ec := ExportCategory{
			ID:             cg.ID,
			Name:           cg.Name,
			Show:           true,
			Visualize:      cg.Enabled,
			Color:          cg.Color,
			Annotations:    []ExportAnnotation{},
			KeypointLabels: nonNil(cg.Keypoint.Labels),
			KeypointEdges:  cg.Keypoint.Edges,
		}
		if ec.KeypointEdges == nil {
			ec.KeypointEdges = []scene.Edge{}
		}
		for _, ag := range cg.Annotations() {
			ec.Annotations = append(ec.Annotations, ExportAnnotation{
				ID:           ag.ID,
				Color:        ag.Color,
				IsBBox:       ag.Shape.IsBBox,
				Segmentation: SegmentationFromShape(ag.Shape.CompoundShape, opts.Size),
				Metadata:     metadataMap(ag.Metadata),
				Keypoints: ExportKeypoints{
					Keypoints: keypointsToPixels(ag.Keypoints.Points(), opts.Size),
					Edges:     ag.Keypoints.Edges(),
				},
			})
		}
		obj.Categories = append(obj.Categories, ec)
	}
	return obj
}

// metadataMap flattens metadata; empty keys are dropped and a later pair
// wins over an earlier one with the same key.
func metadataMap(pairs []scene.MetaPair) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if p.Key == "" {
			continue
		}
		m[p.Key] = p.Value
	}
	return m
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
