// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"

	"coco-annotator/internal/backend"
	"coco-annotator/internal/session"
	"coco-annotator/internal/version"
	"coco-annotator/pkg/geometry"
	"coco-annotator/ui/canvas"
	"coco-annotator/ui/dialogs"
	"coco-annotator/ui/panels"
	"coco-annotator/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"
)

const (
	appTitle          = "COCO Annotator"
	defaultWidth      = 1280
	defaultHeight     = 800
	defaultPanelSplit = 0.25
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app     fyne.App
	session *session.Session
	loop    *canvas.Loop
	prefs   *prefs.Prefs
	logger  *zap.Logger

	canvas    *canvas.AnnotationCanvas
	sidePanel *panels.SidePanel
	split     *container.Split
	statusBar *widget.Label
	pointer   *widget.Label

	// registered holds the modifier shortcuts currently added to the canvas.
	registered []fyne.Shortcut
}

// New creates the main window.
func New(fyneApp fyne.App, s *session.Session, loop *canvas.Loop, p *prefs.Prefs, logger *zap.Logger) *MainWindow {
	if logger == nil {
		logger = zap.NewNop()
	}
	mw := &MainWindow{
		Window:  fyneApp.NewWindow(appTitle),
		app:     fyneApp,
		session: s,
		loop:    loop,
		prefs:   p,
		logger:  logger,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupKeys()
	mw.setupEventHandlers()
	mw.restoreGeometry()

	mw.SetCloseIntercept(mw.onClose)
	return mw
}

func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewAnnotationCanvas(mw.session, mw.loop, mw.logger)

	mw.sidePanel = panels.NewSidePanel(mw.session, mw.loop)
	mw.sidePanel.SetWindow(mw.Window)

	mw.statusBar = widget.NewLabel("Ready")
	mw.pointer = widget.NewLabel("")
	mw.canvas.OnPointer(func(p geometry.Point2D) {
		mw.pointer.SetText(fmt.Sprintf("%.1f, %.1f", p.X, p.Y))
	})

	mw.split = container.NewHSplit(mw.sidePanel.Container(), mw.canvas)
	mw.split.SetOffset(defaultPanelSplit)

	content := container.NewBorder(
		nil,
		container.NewPadded(container.NewBorder(nil, nil, nil, mw.pointer, mw.statusBar)),
		nil,
		nil,
		mw.split,
	)
	mw.SetContent(content)
}

func (mw *MainWindow) setupMenus() {
	do := func(a session.Action) func() {
		return func() { mw.run(a) }
	}

	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Image...", mw.onOpenImage),
		fyne.NewMenuItem("Next Image", do(session.ActionImageNext)),
		fyne.NewMenuItem("Previous Image", do(session.ActionImagePrev)),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save", do(session.ActionSave)),
	)
	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", do(session.ActionUndo)),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("New Annotation", do(session.ActionAnnotationAdd)),
		fyne.NewMenuItem("Delete Annotation", do(session.ActionAnnotationRemove)),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Shortcuts...", mw.onShortcuts),
	)
	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Center Image", do(session.ActionImageCenter)),
	)
	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)
	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu, helpMenu))
}

// setupKeys routes keyboard input that no focused widget consumed to the
// session's shortcut table.
func (mw *MainWindow) setupKeys() {
	c := mw.Canvas()
	c.SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if key, ok := KeyFromEvent(ev); ok {
			mw.handleKey(key)
		}
	})
	c.SetOnTypedRune(func(r rune) {
		if key, ok := KeyFromRune(r); ok {
			mw.handleKey(key)
		}
	})
	mw.SyncShortcuts()
}

// SyncShortcuts registers the current modifier bindings with the window.
// Call it after the binding table changes.
func (mw *MainWindow) SyncShortcuts() {
	c := mw.Canvas()
	for _, sc := range mw.registered {
		c.RemoveShortcut(sc)
	}
	mw.registered = mw.registered[:0]
	for _, key := range mw.session.Shortcuts().Bindings() {
		sc, ok := ParseShortcut(key)
		if !ok {
			continue
		}
		c.AddShortcut(sc, func(s fyne.Shortcut) {
			if cs, ok := s.(*desktop.CustomShortcut); ok {
				mw.handleKey(KeyFromShortcut(cs))
			}
		})
		mw.registered = append(mw.registered, sc)
	}
}

func (mw *MainWindow) handleKey(key string) {
	mw.loop.Do(func() {
		if _, err := mw.session.HandleKey(key); err != nil {
			mw.logger.Debug("shortcut failed", zap.String("key", key), zap.Error(err))
		}
	})
}

func (mw *MainWindow) run(a session.Action) {
	mw.loop.Do(func() {
		if err := mw.session.Do(a); err != nil {
			mw.logger.Debug("action failed", zap.String("action", string(a)), zap.Error(err))
		}
	})
}

func (mw *MainWindow) setupEventHandlers() {
	mw.session.On(session.EventLoaded, func(data interface{}) {
		img, ok := data.(backend.Image)
		if !ok {
			return
		}
		mw.updateTitle(img.FileName, false)
		mw.updateStatus(fmt.Sprintf("Loaded image %d", img.ID))
		mw.prefs.SetInt(prefs.KeyLastImage, img.ID)
	})

	mw.session.On(session.EventModified, func(data interface{}) {
		modified, _ := data.(bool)
		if img, ok := mw.session.Image(); ok {
			mw.updateTitle(img.FileName, modified)
		}
	})

	mw.session.On(session.EventSaved, func(data interface{}) {
		mw.updateStatus(fmt.Sprintf("Saved image %v", data))
	})

	// Notifications may arrive from background work, so this handler only
	// touches widgets.
	mw.session.On(session.EventNotification, func(data interface{}) {
		n, ok := data.(session.Notification)
		if !ok {
			return
		}
		text := n.Message
		if n.Err != nil {
			text = fmt.Sprintf("%s: %v", n.Message, n.Err)
		}
		mw.updateStatus(text)
		if n.Level == session.LevelError {
			dialog.ShowError(fmt.Errorf("%s", text), mw.Window)
		}
	})
}

func (mw *MainWindow) updateTitle(fileName string, modified bool) {
	title := appTitle
	if fileName != "" {
		title += " - " + fileName
	}
	if modified {
		title += " *"
	}
	mw.SetTitle(title)
}

func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) restoreGeometry() {
	w := mw.prefs.FloatWithFallback(prefs.KeyWindowWidth, defaultWidth)
	h := mw.prefs.FloatWithFallback(prefs.KeyWindowHeight, defaultHeight)
	mw.Resize(fyne.NewSize(float32(w), float32(h)))
	mw.split.SetOffset(mw.prefs.FloatWithFallback(prefs.KeySidePanel, defaultPanelSplit))
	tooltips := mw.prefs.Bool(prefs.KeyTooltips, true)
	mw.loop.Do(func() {
		p := mw.session.Preferences()
		p.Select.TooltipOn = tooltips
		mw.session.ApplyPreferences(p)
	})
}

// SavePreferences stores the window geometry and display toggles.
func (mw *MainWindow) SavePreferences() {
	size := mw.Canvas().Size()
	mw.prefs.SetFloat(prefs.KeyWindowWidth, float64(size.Width))
	mw.prefs.SetFloat(prefs.KeyWindowHeight, float64(size.Height))
	mw.prefs.SetFloat(prefs.KeySidePanel, mw.split.Offset)
	var tooltips bool
	mw.loop.Do(func() { tooltips = mw.session.Preferences().Select.TooltipOn })
	mw.prefs.SetBool(prefs.KeyTooltips, tooltips)
	if err := mw.prefs.Save(); err != nil {
		mw.logger.Warn("save preferences", zap.Error(err))
	}
}

// LastImage returns the image shown when the window was last closed.
func (mw *MainWindow) LastImage() (int, bool) {
	return mw.prefs.Int(prefs.KeyLastImage)
}

func (mw *MainWindow) onClose() {
	mw.SavePreferences()
	if !mw.session.Modified() {
		mw.Close()
		return
	}
	dialog.ShowConfirm("Unsaved changes", "Discard unsaved annotations and quit?", func(quit bool) {
		if quit {
			mw.Close()
		}
	}, mw.Window)
}

func (mw *MainWindow) onOpenImage() {
	entry := widget.NewEntry()
	entry.SetPlaceHolder("Image id")
	entry.Validator = func(s string) error {
		_, err := dialogs.ParseImageID(s)
		return err
	}
	dialog.ShowForm("Open Image", "Open", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Image", entry)},
		func(ok bool) {
			if !ok {
				return
			}
			id, err := dialogs.ParseImageID(entry.Text)
			if err != nil {
				return
			}
			mw.loop.Do(func() { mw.session.LoadAsync(id) })
		}, mw.Window)
}

func (mw *MainWindow) onShortcuts() {
	var err error
	mw.loop.Do(func() { err = mw.session.OpenModal(session.ModalSettings) })
	if err != nil {
		mw.updateStatus(err.Error())
		return
	}
	dialogs.ShowShortcutsDialog(mw.Window, mw.session.Shortcuts(), func() {
		mw.loop.Do(mw.session.CloseModal)
		mw.SyncShortcuts()
	})
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s %s\n\nInteractive image annotation for COCO datasets.",
			appTitle, version.String()),
		mw.Window)
}
