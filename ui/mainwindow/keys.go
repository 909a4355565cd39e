package mainwindow

import (
	"strings"

	"coco-annotator/internal/session"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
)

// namedKeys maps fyne key names to shortcut key names. Printable keys arrive
// as runes instead.
var namedKeys = map[fyne.KeyName]string{
	fyne.KeyUp:        "ArrowUp",
	fyne.KeyDown:      "ArrowDown",
	fyne.KeyLeft:      "ArrowLeft",
	fyne.KeyRight:     "ArrowRight",
	fyne.KeySpace:     "Space",
	fyne.KeyBackspace: "Backspace",
	fyne.KeyDelete:    "Delete",
	fyne.KeyReturn:    "Enter",
	fyne.KeyEnter:     "Enter",
	fyne.KeyEscape:    "Escape",
	fyne.KeyTab:       "Tab",
}

var modifierNames = []struct {
	mod  fyne.KeyModifier
	name string
}{
	{fyne.KeyModifierAlt, "Alt"},
	{fyne.KeyModifierControl, "Control"},
	{fyne.KeyModifierShift, "Shift"},
	{fyne.KeyModifierSuper, "Super"},
}

// KeyFromEvent returns the shortcut name of a non-printable key.
func KeyFromEvent(ev *fyne.KeyEvent) (string, bool) {
	if ev == nil {
		return "", false
	}
	k, ok := namedKeys[ev.Name]
	return k, ok
}

// KeyFromRune returns the shortcut name of a typed character. Space is
// delivered as a named key.
func KeyFromRune(r rune) (string, bool) {
	if r == ' ' {
		return "", false
	}
	return string(r), true
}

// KeyFromShortcut names a modifier combination, e.g. "Control+z".
func KeyFromShortcut(sc *desktop.CustomShortcut) string {
	var parts []string
	for _, m := range modifierNames {
		if sc.Modifier&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	key := string(sc.KeyName)
	for name, k := range namedKeys {
		if name == sc.KeyName {
			key = k
			break
		}
	}
	if len(key) == 1 {
		key = strings.ToLower(key)
	}
	return session.NormalizeKey(strings.Join(append(parts, key), "+"))
}

// ParseShortcut turns a binding with modifiers into a desktop shortcut. Keys
// without modifiers are handled by the typed key callbacks and return false.
func ParseShortcut(key string) (*desktop.CustomShortcut, bool) {
	parts := strings.Split(session.NormalizeKey(key), "+")
	if len(parts) < 2 || key == "+" {
		return nil, false
	}
	sc := &desktop.CustomShortcut{}
	for _, p := range parts[:len(parts)-1] {
		found := false
		for _, m := range modifierNames {
			if m.name == p {
				sc.Modifier |= m.mod
				found = true
			}
		}
		if !found {
			return nil, false
		}
	}
	last := parts[len(parts)-1]
	sc.KeyName = fyne.KeyName(strings.ToUpper(last))
	for name, k := range namedKeys {
		if k == last {
			sc.KeyName = name
			break
		}
	}
	return sc, true
}
