package backend

import (
	"encoding/json"
	"fmt"
	"sort"

	"coco-annotator/internal/payload"
	"coco-annotator/internal/scene"
	"coco-annotator/internal/tools"
)

// Image is the image record of a data response.
type Image struct {
	ID        int    `json:"id"`
	FileName  string `json:"file_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	DatasetID int    `json:"dataset_id,omitempty"`
	Next      *int   `json:"next"`
	Previous  *int   `json:"previous"`
}

type Permissions struct {
	Dataset map[string]bool `json:"dataset,omitempty"`
	Image   map[string]bool `json:"image,omitempty"`
}

// Category is a category as the backend sends it, annotations nested.
type Category struct {
	ID             int            `json:"id"`
	Name           string         `json:"name"`
	Color          string         `json:"color"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	KeypointLabels []string       `json:"keypoints,omitempty"`
	Skeleton       []scene.Edge   `json:"skeleton,omitempty"`
	KeypointColors []string       `json:"keypoint_colors,omitempty"`
	Annotations    []Annotation   `json:"annotations"`
}

// Annotation is an annotation as the backend sends it.
type Annotation struct {
	ID           int             `json:"id"`
	ImageID      int             `json:"image_id"`
	CategoryID   int             `json:"category_id"`
	Name         string          `json:"name,omitempty"`
	Color        string          `json:"color,omitempty"`
	Segmentation [][]float64     `json:"segmentation"`
	IsBBox       bool            `json:"isbbox"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	Keypoints    json.RawMessage `json:"keypoints,omitempty"`
}

// DataResponse is the body of GET /annotator/data/{imageId}.
type DataResponse struct {
	Categories  []Category      `json:"categories"`
	Dataset     json.RawMessage `json:"dataset,omitempty"`
	Preferences json.RawMessage `json:"preferences,omitempty"`
	Permissions *Permissions    `json:"permissions,omitempty"`
	Image       Image           `json:"image"`
}

// Data is a decoded data response.
type Data struct {
	Import      payload.Import
	Image       Image
	Dataset     json.RawMessage
	Preferences *tools.Preferences
	Permissions *Permissions
}

type createAnnotationRequest struct {
	ImageID    int `json:"image_id"`
	CategoryID int `json:"category_id"`
}

type copyRequest struct {
	CategoryIDs []int `json:"category_ids"`
}

// dextrResponse accepts the segmentation under either spelling; older servers
// send "segmentaiton".
type dextrResponse struct {
	Disabled     bool        `json:"disabled"`
	Segmentation [][]float64 `json:"segmentation"`
	Misspelled   [][]float64 `json:"segmentaiton"`
}

func (r dextrResponse) rings() [][]float64 {
	if len(r.Segmentation) > 0 {
		return r.Segmentation
	}
	return r.Misspelled
}

// decodeKeypoints reads either the COCO flat form [x, y, v, ...] or the
// {keypoints, edges} object the annotator itself exports.
func decodeKeypoints(raw json.RawMessage) ([]scene.Keypoint, []scene.Edge, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil, nil
	}
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		if len(flat)%3 != 0 {
			return nil, nil, fmt.Errorf("flat keypoints: length %d is not a multiple of 3", len(flat))
		}
		var kps []scene.Keypoint
		for i := 0; i < len(flat); i += 3 {
			v := flat[i+2]
			if v == 0 {
				continue
			}
			id := i/3 + 1
			kps = append(kps, scene.Keypoint{PointID: id, X: flat[i], Y: flat[i+1], Visible: v == 2, Label: id})
		}
		return kps, nil, nil
	}
	var obj struct {
		Keypoints []scene.Keypoint `json:"keypoints"`
		Edges     []scene.Edge     `json:"edges"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, nil, fmt.Errorf("keypoints: %w", err)
	}
	return obj.Keypoints, obj.Edges, nil
}

// metaPairs flattens a metadata object into pairs sorted by key.
func metaPairs(m map[string]any) []scene.MetaPair {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]scene.MetaPair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, scene.MetaPair{Key: k, Value: fmt.Sprint(m[k])})
	}
	return pairs
}

// toData translates the wire response into the canvas import payload.
func (r DataResponse) toData() (*Data, error) {
	d := &Data{
		Image:       r.Image,
		Dataset:     r.Dataset,
		Permissions: r.Permissions,
		Import: payload.Import{
			ImageID: r.Image.ID,
			Width:   float64(r.Image.Width),
			Height:  float64(r.Image.Height),
		},
	}
	if len(r.Preferences) > 0 && string(r.Preferences) != "null" {
		var prefs tools.Preferences
		if err := json.Unmarshal(r.Preferences, &prefs); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
		d.Preferences = &prefs
	}
	for _, c := range r.Categories {
		d.Import.Categories = append(d.Import.Categories, payload.CategoryData{
			ID:             c.ID,
			Name:           c.Name,
			Color:          c.Color,
			Metadata:       metaPairs(c.Metadata),
			KeypointLabels: c.KeypointLabels,
			KeypointEdges:  c.Skeleton,
			KeypointColors: c.KeypointColors,
		})
		for _, a := range c.Annotations {
			kps, edges, err := decodeKeypoints(a.Keypoints)
			if err != nil {
				return nil, fmt.Errorf("annotation %d: %w", a.ID, err)
			}
			categoryID := a.CategoryID
			if categoryID == 0 {
				categoryID = c.ID
			}
			d.Import.Annotations = append(d.Import.Annotations, payload.AnnotationData{
				ID:            a.ID,
				CategoryID:    categoryID,
				Name:          a.Name,
				Color:         a.Color,
				Metadata:      metaPairs(a.Metadata),
				Segmentation:  a.Segmentation,
				IsBBox:        a.IsBBox,
				Keypoints:     kps,
				KeypointEdges: edges,
			})
		}
	}
	return d, nil
}

// MetaPairs returns the annotation metadata as sorted pairs.
func (a Annotation) MetaPairs() []scene.MetaPair {
	return metaPairs(a.Metadata)
}
