package payload

import (
	"encoding/json"
	"errors"
	"testing"

	"coco-annotator/internal/scene"
	"coco-annotator/internal/tools"
	"coco-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Import {
	return Import{
		ImageID: 7,
		Width:   200,
		Height:  100,
		Categories: []CategoryData{
			{ID: 1, Name: "cat", Color: "#ff0000"},
			{ID: 2, Name: "empty", Color: "#00ff00"},
		},
		Annotations: []AnnotationData{
			{
				ID:           10,
				CategoryID:   1,
				Metadata:     []scene.MetaPair{{Key: "name", Value: "tabby"}},
				Segmentation: [][]float64{{10.5, 20.25, 50, 20.25, 50, 60.75}},
				Keypoints:    []scene.Keypoint{{PointID: 1, X: 100, Y: 50, Visible: true}, {PointID: 3, X: 110, Y: 40, Visible: true}},
				KeypointEdges: []scene.Edge{{1, 3}},
			},
			{
				ID:           11,
				CategoryID:   1,
				Segmentation: [][]float64{{0, 0, 20, 0, 20, 20, 0, 20, 0, 0}},
				IsBBox:       true,
			},
		},
	}
}

func TestBuildSceneRecentres(t *testing.T) {
	g := scene.New(nil, nil)
	require.NoError(t, BuildScene(sample(), g, nil))

	ag, ok := g.FindAnnotationGroup(1, 10)
	require.True(t, ok)
	assert.Equal(t, geometry.Point2D{X: -89.5, Y: -29.75}, ag.Shape.Rings[0][0])
	assert.Equal(t, "tabby", ag.DisplayName())

	kp, ok := ag.Keypoints.Find(1)
	require.True(t, ok)
	assert.Equal(t, geometry.Point2D{}, kp.Pos())
	assert.True(t, ag.Keypoints.Linked(1, 3))
	assert.Equal(t, 4, ag.Keypoints.NextID())

	bbox, ok := g.FindAnnotationGroup(1, 11)
	require.True(t, ok)
	assert.True(t, bbox.Shape.IsBBox)

	cat, _ := g.FindCategoryGroup(1)
	assert.True(t, cat.Enabled)
	empty, _ := g.FindCategoryGroup(2)
	assert.False(t, empty.Enabled)
}

func TestRoundTripTruncates(t *testing.T) {
	in := sample()
	g := scene.New(nil, nil)
	require.NoError(t, BuildScene(in, g, nil))

	out := Export(g, in.ImageID, in.Size())
	require.Len(t, out.Annotations, 2)
	assert.Equal(t, []float64{10.5, 20.2, 50, 20.2, 50, 60.7}, out.Annotations[0].Segmentation[0])
	assert.Equal(t, in.Annotations[1].Segmentation, out.Annotations[1].Segmentation)
	assert.Equal(t, in.Annotations[0].Keypoints, out.Annotations[0].Keypoints)
	assert.Equal(t, in.Annotations[0].KeypointEdges, out.Annotations[0].KeypointEdges)

	for i, a := range out.Annotations {
		for j, ring := range a.Segmentation {
			for k, v := range ring {
				assert.InDelta(t, in.Annotations[i].Segmentation[j][k], v, 0.1)
			}
		}
	}
}

func TestMalformedSegmentationBecomesEmpty(t *testing.T) {
	in := sample()
	in.Annotations[0].Segmentation = [][]float64{{1, 2, 3}}
	g := scene.New(nil, nil)
	require.NoError(t, BuildScene(in, g, nil))

	ag, ok := g.FindAnnotationGroup(1, 10)
	require.True(t, ok)
	assert.True(t, ag.Shape.IsEmpty())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(sample()))

	bad := sample()
	bad.Width = 0
	err := Validate(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "Width")

	bad = sample()
	bad.Annotations[0].CategoryID = 0
	assert.ErrorIs(t, BuildScene(bad, scene.New(nil, nil), nil), ErrInvalid)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, 2.3, truncate1(2.3))
	assert.Equal(t, 2.3, truncate1(2.39))
	assert.Equal(t, -2.3, truncate1(-2.39))
	assert.Equal(t, 0.0, truncate1(0.05))
}

func TestRingFromFlat(t *testing.T) {
	_, err := RingFromFlat([]float64{1, 2, 3, 4, 5}, geometry.NewSize(10, 10))
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = RingFromFlat([]float64{1, 2, 3, 4}, geometry.NewSize(10, 10))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestBuildExportObject(t *testing.T) {
	g := scene.New(nil, nil)
	require.NoError(t, BuildScene(sample(), g, nil))

	cat, ann := 1, 10
	obj := BuildExportObject(g, ExportOptions{
		ImageID:     7,
		Size:        geometry.NewSize(200, 100),
		SegmentOn:   true,
		ActiveTool:  tools.Polygon,
		Selection:   Selection{CategoryID: &cat, AnnotationID: &ann},
		Preferences: tools.DefaultPreferences(),
	})

	assert.Equal(t, ModeSegment, obj.Mode)
	assert.Equal(t, []int{1, 2}, obj.CategoryIDs)
	require.Len(t, obj.Categories, 2)
	assert.True(t, obj.Categories[0].Visualize)
	assert.False(t, obj.Categories[1].Visualize)
	assert.Empty(t, obj.Categories[1].Annotations)
	assert.Equal(t, map[string]string{"name": "tabby"}, obj.Categories[0].Annotations[0].Metadata)
	assert.True(t, obj.Categories[0].Annotations[1].IsBBox)

	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "POLYGON", generic["settings"].(map[string]any)["activeTool"])
	assert.Contains(t, generic, "category_ids")
	image := generic["image"].(map[string]any)
	assert.Equal(t, 10.0, image["settings"].(map[string]any)["annotationId"])
	assert.NotContains(t, generic, "dataset")
}
