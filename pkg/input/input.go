// Package input delivers keyboard, mouse button and cursor events from the
// window layer to host callbacks.
package input

import (
	"log/slog"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
)

// Action is the kind of a key or button transition.
type Action int

const (
	Release Action = iota
	Press
)

func (a Action) String() string {
	switch a {
	case Press:
		return "Press"
	case Release:
		return "Release"
	default:
		return "Unknown"
	}
}

// ModifierKey is a bitset of modifier keys held during an event.
type ModifierKey int

const (
	ModShift ModifierKey = 1 << iota
	ModControl
	ModAlt
	ModSuper
)

func (m ModifierKey) String() string {
	if m == 0 {
		return "None"
	}
	var names []string
	for _, mod := range []struct {
		bit  ModifierKey
		name string
	}{
		{ModShift, "Shift"},
		{ModControl, "Control"},
		{ModAlt, "Alt"},
		{ModSuper, "Super"},
	} {
		if m&mod.bit != 0 {
			names = append(names, mod.name)
		}
	}
	return strings.Join(names, "+")
}

// Handler receives input events. Implementations must not block: they run on
// the main thread inside the frame update.
// scancode is 0 when the source has no hardware codes; ebiten does not expose them.
type Handler interface {
	OnKey(key ebiten.Key, scancode int, action Action, mods ModifierKey)
	OnMouseButton(button ebiten.MouseButton, action Action, mods ModifierKey)
	OnCursor(x, y float64)
}

// NopHandler ignores every event.
type NopHandler struct{}

func (NopHandler) OnKey(ebiten.Key, int, Action, ModifierKey) {}

func (NopHandler) OnMouseButton(ebiten.MouseButton, Action, ModifierKey) {}

func (NopHandler) OnCursor(float64, float64) {}

// LogHandler writes one debug line per event.
type LogHandler struct {
	Log *slog.Logger
}

func (h LogHandler) OnKey(key ebiten.Key, scancode int, action Action, mods ModifierKey) {
	h.Log.Debug("key", "key", key.String(), "scancode", scancode, "action", action, "mods", mods)
}

func (h LogHandler) OnMouseButton(button ebiten.MouseButton, action Action, mods ModifierKey) {
	h.Log.Debug("mouse button", "button", int(button), "action", action, "mods", mods)
}

func (h LogHandler) OnCursor(x, y float64) {
	h.Log.Debug("cursor", "x", x, "y", y)
}

// NewHandler returns a LogHandler when logInput is set, otherwise a NopHandler.
func NewHandler(logInput bool, log *slog.Logger) Handler {
	if !logInput || log == nil {
		return NopHandler{}
	}
	return LogHandler{Log: log}
}

// Funcs adapts plain functions to Handler. Nil fields are skipped.
type Funcs struct {
	Key         func(key ebiten.Key, scancode int, action Action, mods ModifierKey)
	MouseButton func(button ebiten.MouseButton, action Action, mods ModifierKey)
	Cursor      func(x, y float64)
}

func (f Funcs) OnKey(key ebiten.Key, scancode int, action Action, mods ModifierKey) {
	if f.Key != nil {
		f.Key(key, scancode, action, mods)
	}
}

func (f Funcs) OnMouseButton(button ebiten.MouseButton, action Action, mods ModifierKey) {
	if f.MouseButton != nil {
		f.MouseButton(button, action, mods)
	}
}

func (f Funcs) OnCursor(x, y float64) {
	if f.Cursor != nil {
		f.Cursor(x, y)
	}
}

// Multi forwards every event to each handler in order.
type Multi []Handler

func (m Multi) OnKey(key ebiten.Key, scancode int, action Action, mods ModifierKey) {
	for _, h := range m {
		h.OnKey(key, scancode, action, mods)
	}
}

func (m Multi) OnMouseButton(button ebiten.MouseButton, action Action, mods ModifierKey) {
	for _, h := range m {
		h.OnMouseButton(button, action, mods)
	}
}

func (m Multi) OnCursor(x, y float64) {
	for _, h := range m {
		h.OnCursor(x, y)
	}
}
