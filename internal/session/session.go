// Package session is the controller of the annotation canvas. It owns the
// scene graph, the undo stash, the viewport and the state of every tool, and
// is the single gateway through which tools change annotations.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"coco-annotator/internal/backend"
	annimage "coco-annotator/internal/image"
	"coco-annotator/internal/metrics"
	"coco-annotator/internal/payload"
	"coco-annotator/internal/scene"
	"coco-annotator/internal/tools"
	"coco-annotator/internal/undo"
	"coco-annotator/internal/viewport"
	"coco-annotator/pkg/geometry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSaveInProgress = errors.New("save already in progress")
	ErrModalOpen      = errors.New("another dialog is open")
	ErrNoImage        = errors.New("no image loaded")
	ErrNoCategory     = errors.New("no category selected")
)

// Backend is what the session needs from the dataset backend.
type Backend interface {
	tools.Segmenter
	GetData(ctx context.Context, imageID int) (*backend.Data, error)
	SaveData(ctx context.Context, obj payload.ExportObject) error
	CreateAnnotation(ctx context.Context, imageID, categoryID int) (backend.Annotation, error)
	DeleteAnnotation(ctx context.Context, annotationID int) error
	CopyAnnotations(ctx context.Context, sourceImageID, imageID int, categoryIDs []int) error
	ImageBytes(ctx context.Context, imageID int) ([]byte, error)
}

// EventType identifies session events.
type EventType int

const (
	EventLoaded EventType = iota
	EventSaved
	EventModified
	EventSelectionChanged
	EventToolChanged
	EventModalChanged
	EventInfoChanged
	EventViewChanged
	EventNotification
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Level grades a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// Notification is the payload of EventNotification.
type Notification struct {
	Level   Level
	Message string
	Err     error
}

// Options configures a Session.
type Options struct {
	Backend     Backend
	Logger      *zap.Logger
	Metrics     *metrics.Collector
	ViewWidth   float64
	ViewHeight  float64
	MarginX     float64
	MarginY     float64
	UndoMax     int
	Preferences tools.Preferences
	Shortcuts   map[string]string
	// Async runs backend work off the event loop and applies the result on
	// it. Nil runs everything inline.
	Async tools.AsyncFunc
}

// Session is the canvas controller. Apart from Save and the listener
// registry, methods are meant to be called from the UI event loop.
type Session struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventListener
	modified  bool
	saving    bool

	id      string
	backend Backend
	logger  *zap.Logger
	metrics *metrics.Collector
	async   tools.AsyncFunc

	graph     *scene.Graph
	stash     *undo.Stash
	view      *viewport.Viewport
	tools     *tools.Set
	shortcuts *Shortcuts

	imageID   int
	image     backend.Image
	dataset   json.RawMessage
	size      geometry.Size
	hasImage  bool
	segmentOn bool

	activeTool   tools.Tool
	categoryID   int
	annotationID int
	modal        Modal

	info   []CategoryInfo
	filter string
}

// New creates a session.
func New(opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	shortcuts, err := NewShortcuts(opts.Shortcuts)
	if err != nil {
		return nil, err
	}
	prefs := tools.DefaultPreferences().Merge(opts.Preferences)

	s := &Session{
		listeners: make(map[EventType][]EventListener),
		id:        uuid.New().String(),
		backend:   opts.Backend,
		metrics:   opts.Metrics,
		async:     opts.Async,
		stash:     undo.New(opts.UndoMax),
		view:      viewport.New(opts.ViewWidth, opts.ViewHeight),
		tools:     tools.NewSet(prefs),
		shortcuts: shortcuts,
		segmentOn: true,
	}
	s.logger = logger.With(zap.String("session", s.id))
	s.graph = scene.New(s.stash, s.logger)
	s.view.SetMargins(opts.MarginX, opts.MarginY)
	s.view.OnChange(func() { s.Emit(EventViewChanged, nil) })
	s.stash.OnChange(func(depth int) { s.metrics.SetUndoDepth(depth) })
	return s, nil
}

// On registers an event listener for the specified event type.
func (s *Session) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *Session) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the image as modified and emits an event.
func (s *Session) SetModified(modified bool) {
	s.mu.Lock()
	s.modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// Modified reports unsaved changes.
func (s *Session) Modified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

func (s *Session) notify(level Level, msg string, err error) {
	switch level {
	case LevelError:
		s.logger.Error(msg, zap.Error(err))
	case LevelWarning:
		s.logger.Warn(msg, zap.Error(err))
	default:
		s.logger.Info(msg)
	}
	s.Emit(EventNotification, Notification{Level: level, Message: msg, Err: err})
}

// runAsync runs backend work through the configured runner. Failures become
// notifications; scene state is only touched by the apply step.
func (s *Session) runAsync(what string, work func(ctx context.Context) (func() error, error)) {
	report := func(err error) {
		if err != nil && !errors.Is(err, context.Canceled) {
			s.notify(LevelError, what+" failed", err)
		}
	}
	if s.async != nil {
		s.async(func(ctx context.Context) (func() error, error) {
			apply, err := work(ctx)
			if err != nil {
				return func() error {
					report(err)
					return nil
				}, nil
			}
			if apply == nil {
				return nil, nil
			}
			return func() error {
				err := apply()
				report(err)
				return nil
			}, nil
		})
		return
	}
	apply, err := work(context.Background())
	if err == nil && apply != nil {
		err = apply()
	}
	report(err)
}

// ID returns the session id attached to log lines.
func (s *Session) ID() string { return s.id }

// Graph returns the scene graph.
func (s *Session) Graph() *scene.Graph { return s.graph }

// Viewport returns the viewport.
func (s *Session) Viewport() *viewport.Viewport { return s.view }

// UndoStash returns the undo stash.
func (s *Session) UndoStash() *undo.Stash { return s.stash }

// Tools returns the tool states.
func (s *Session) Tools() *tools.Set { return s.tools }

// Shortcuts returns the shortcut table.
func (s *Session) Shortcuts() *Shortcuts { return s.shortcuts }

// Image returns the loaded image record.
func (s *Session) Image() (backend.Image, bool) { return s.image, s.hasImage }

// ImageID returns the loaded image id.
func (s *Session) ImageID() int { return s.imageID }

// SetSegmentMode switches the export mode between segment and label.
func (s *Session) SetSegmentMode(on bool) { s.segmentOn = on }

// SegmentMode reports the export mode.
func (s *Session) SegmentMode() bool { return s.segmentOn }

// ApplyPreferences installs new tool settings, e.g. after a config reload.
func (s *Session) ApplyPreferences(p tools.Preferences) {
	s.tools.Apply(tools.DefaultPreferences().Merge(p))
	s.Emit(EventToolChanged, s.activeTool)
}

// Preferences returns the current tool settings.
func (s *Session) Preferences() tools.Preferences {
	return s.tools.Preferences()
}

// env is what the active tool sees of the session.
func (s *Session) env() *tools.Env {
	var seg tools.Segmenter
	if s.backend != nil {
		seg = s.backend
	}
	return &tools.Env{
		Gateway:   s,
		Scale:     s.view.Scale(),
		Raster:    s.view.Raster(),
		ImageID:   s.imageID,
		Segmenter: seg,
		Async:     s.toolAsync,
		Logger:    s.logger,
	}
}

// toolAsync runs a tool's background request so that failures reach the
// user as notifications.
func (s *Session) toolAsync(work func(ctx context.Context) (func() error, error)) {
	s.runAsync(string(s.activeTool), work)
}

// raster decodes image bytes; failures leave the canvas without an image.
func (s *Session) raster(data []byte) *annimage.Raster {
	if len(data) == 0 {
		return nil
	}
	r, err := annimage.DecodeBytes(data)
	if err != nil {
		s.notify(LevelWarning, "image could not be decoded", err)
		return nil
	}
	return r
}
