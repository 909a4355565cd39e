package session

import (
	"context"
	"fmt"

	"coco-annotator/internal/backend"
	"coco-annotator/internal/payload"
	"coco-annotator/internal/scene"
	"coco-annotator/internal/tools"

	"go.uber.org/zap"
)

// loaded is everything fetched for one image.
type loaded struct {
	data  *backend.Data
	image []byte
}

func (s *Session) fetch(ctx context.Context, imageID int) (*loaded, error) {
	if s.backend == nil {
		return nil, fmt.Errorf("load image %d: no backend", imageID)
	}
	data, err := s.backend.GetData(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("load image %d: %w", imageID, err)
	}
	img, err := s.backend.ImageBytes(ctx, imageID)
	if err != nil {
		// The annotations are still usable without the picture.
		s.logger.Warn("image download failed", zap.Int("imageId", imageID), zap.Error(err))
	}
	return &loaded{data: data, image: img}, nil
}

// Load fetches an image and rebuilds the canvas from it.
func (s *Session) Load(ctx context.Context, imageID int) error {
	l, err := s.fetch(ctx, imageID)
	if err != nil {
		return err
	}
	return s.apply(l)
}

// LoadAsync is Load run through the async runner.
func (s *Session) LoadAsync(imageID int) {
	s.runAsync("load image", func(ctx context.Context) (func() error, error) {
		l, err := s.fetch(ctx, imageID)
		if err != nil {
			return nil, err
		}
		return func() error { return s.apply(l) }, nil
	})
}

// apply tears the scene down and rebuilds it from a fetched image.
func (s *Session) apply(l *loaded) error {
	s.setTool(tools.None)
	s.tools.ResetAll()
	s.stash.Clear()
	s.CloseModal()

	if err := payload.BuildScene(l.data.Import, s.graph, s.logger); err != nil {
		s.hasImage = false
		return fmt.Errorf("build scene: %w", err)
	}
	s.imageID = l.data.Image.ID
	s.image = l.data.Image
	s.dataset = l.data.Dataset
	s.size = l.data.Import.Size()
	s.hasImage = true
	s.categoryID, s.annotationID = 0, 0
	s.view.Init(s.raster(l.image))

	if l.data.Preferences != nil {
		s.tools.Apply(s.tools.Preferences().Merge(*l.data.Preferences))
	}
	s.rebuildInfo()
	s.SetModified(false)
	s.logger.Info("image loaded",
		zap.Int("imageId", s.imageID),
		zap.Int("categories", len(l.data.Import.Categories)),
		zap.Int("annotations", len(l.data.Import.Annotations)))
	s.Emit(EventLoaded, s.image)
	return nil
}

// ExportObject builds the save body from the current state.
func (s *Session) ExportObject() payload.ExportObject {
	opts := payload.ExportOptions{
		ImageID:     s.imageID,
		Size:        s.size,
		Dataset:     s.dataset,
		SegmentOn:   s.segmentOn,
		ActiveTool:  s.activeTool,
		Zoom:        s.view.Zoom(),
		Preferences: s.tools.Preferences(),
	}
	if s.categoryID != 0 {
		id := s.categoryID
		opts.Selection.CategoryID = &id
	}
	if s.annotationID != 0 {
		id := s.annotationID
		opts.Selection.AnnotationID = &id
	}
	return payload.BuildExportObject(s.graph, opts)
}

// beginSave claims the single save slot and snapshots the export body.
func (s *Session) beginSave() (payload.ExportObject, error) {
	if !s.hasImage || s.backend == nil {
		return payload.ExportObject{}, ErrNoImage
	}
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		s.metrics.Save("busy")
		return payload.ExportObject{}, ErrSaveInProgress
	}
	s.saving = true
	s.mu.Unlock()
	return s.ExportObject(), nil
}

func (s *Session) endSave(err error) error {
	s.mu.Lock()
	s.saving = false
	s.mu.Unlock()
	if err != nil {
		s.metrics.Save("error")
		return fmt.Errorf("save image %d: %w", s.imageID, err)
	}
	s.metrics.Save("ok")
	s.SetModified(false)
	s.Emit(EventSaved, s.imageID)
	return nil
}

// Saving reports whether a save is in flight.
func (s *Session) Saving() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saving
}

// Save posts the current annotations. While a save is in flight further
// calls return ErrSaveInProgress.
func (s *Session) Save(ctx context.Context) error {
	obj, err := s.beginSave()
	if err != nil {
		return err
	}
	return s.endSave(s.backend.SaveData(ctx, obj))
}

// SaveAsync is Save run through the async runner. A busy save is reported
// as a notification.
func (s *Session) SaveAsync() {
	obj, err := s.beginSave()
	if err != nil {
		s.notify(LevelWarning, "save skipped", err)
		return
	}
	s.runAsync("save", func(ctx context.Context) (func() error, error) {
		err := s.backend.SaveData(ctx, obj)
		return func() error { return s.endSave(err) }, nil
	})
}

// CreateAnnotation asks the backend for a new annotation in the current
// category and selects it.
func (s *Session) CreateAnnotation() {
	if !s.hasImage || s.backend == nil {
		s.notify(LevelWarning, "cannot add annotation", ErrNoImage)
		return
	}
	if s.categoryID == 0 {
		s.notify(LevelWarning, "cannot add annotation", ErrNoCategory)
		return
	}
	imageID, categoryID := s.imageID, s.categoryID
	s.runAsync("add annotation", func(ctx context.Context) (func() error, error) {
		a, err := s.backend.CreateAnnotation(ctx, imageID, categoryID)
		if err != nil {
			return nil, err
		}
		return func() error {
			if s.imageID != imageID {
				return nil
			}
			return s.addAnnotation(categoryID, a)
		}, nil
	})
}

func (s *Session) addAnnotation(categoryID int, a backend.Annotation) error {
	shape, err := payload.ShapeFromSegmentation(a.Segmentation, s.size, a.IsBBox)
	if err != nil {
		s.logger.Warn("new annotation geometry ignored", zap.Int("annotationId", a.ID), zap.Error(err))
	}
	ag := s.graph.AddAnnotation(categoryID, scene.Annotation{
		ID:       a.ID,
		Name:     a.Name,
		Color:    a.Color,
		Metadata: a.MetaPairs(),
	}, shape)
	if err := s.UpdateInfo(InfoUpdate{
		Kind:       InfoAddAnnotation,
		CategoryID: categoryID,
		Annotation: AnnotationInfo{ID: ag.ID, Name: ag.Name, Color: ag.Color, Enabled: true, Metadata: ag.Metadata},
	}); err != nil {
		return err
	}
	if err := s.UpdateInfo(InfoUpdate{Kind: InfoCategoryExpanded, CategoryID: categoryID, Expanded: true}); err != nil {
		return err
	}
	return s.SelectAnnotation(categoryID, ag.ID)
}

// DeleteAnnotation removes an annotation on the backend and from the canvas.
func (s *Session) DeleteAnnotation(categoryID, annotationID int) {
	if s.backend == nil {
		return
	}
	imageID := s.imageID
	s.runAsync("delete annotation", func(ctx context.Context) (func() error, error) {
		if err := s.backend.DeleteAnnotation(ctx, annotationID); err != nil {
			return nil, err
		}
		return func() error {
			if s.imageID != imageID {
				return nil
			}
			return s.removeAnnotation(categoryID, annotationID)
		}, nil
	})
}

func (s *Session) removeAnnotation(categoryID, annotationID int) error {
	if err := s.graph.RemoveAnnotation(categoryID, annotationID); err != nil {
		return err
	}
	if err := s.UpdateInfo(InfoUpdate{Kind: InfoRemoveAnnotation, CategoryID: categoryID, AnnotationID: annotationID}); err != nil {
		return err
	}
	if s.annotationID == annotationID {
		return s.SelectCategory(categoryID)
	}
	return nil
}

// CopyAnnotations copies the annotations of the given categories from
// another image into this one, then reloads.
func (s *Session) CopyAnnotations(sourceImageID int, categoryIDs []int) {
	if !s.hasImage || s.backend == nil {
		s.notify(LevelWarning, "cannot copy annotations", ErrNoImage)
		return
	}
	imageID := s.imageID
	s.runAsync("copy annotations", func(ctx context.Context) (func() error, error) {
		if err := s.backend.CopyAnnotations(ctx, sourceImageID, imageID, categoryIDs); err != nil {
			return nil, err
		}
		l, err := s.fetch(ctx, imageID)
		if err != nil {
			return nil, err
		}
		return func() error { return s.apply(l) }, nil
	})
}
