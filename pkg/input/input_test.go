package input

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

// fakeSource は1フレーム分の入力状態を保持するテスト用Source
type fakeSource struct {
	pressed         []ebiten.Key
	released        []ebiten.Key
	held            map[ebiten.Key]bool
	buttonsPressed  map[ebiten.MouseButton]bool
	buttonsReleased map[ebiten.MouseButton]bool
	x, y            int
}

func (f *fakeSource) AppendJustPressedKeys(keys []ebiten.Key) []ebiten.Key {
	return append(keys, f.pressed...)
}

func (f *fakeSource) AppendJustReleasedKeys(keys []ebiten.Key) []ebiten.Key {
	return append(keys, f.released...)
}

func (f *fakeSource) IsMouseButtonJustPressed(b ebiten.MouseButton) bool {
	return f.buttonsPressed[b]
}

func (f *fakeSource) IsMouseButtonJustReleased(b ebiten.MouseButton) bool {
	return f.buttonsReleased[b]
}

func (f *fakeSource) IsKeyPressed(k ebiten.Key) bool {
	return f.held[k]
}

func (f *fakeSource) CursorPosition() (int, int) {
	return f.x, f.y
}

// nextFrame clears the just-pressed/released state.
func (f *fakeSource) nextFrame() {
	f.pressed = nil
	f.released = nil
	f.buttonsPressed = nil
	f.buttonsReleased = nil
}

type event struct {
	kind     string
	key      ebiten.Key
	scancode int
	button   ebiten.MouseButton
	action   Action
	mods     ModifierKey
	x, y     float64
}

type recorder struct {
	events []event
}

func (r *recorder) OnKey(key ebiten.Key, scancode int, action Action, mods ModifierKey) {
	r.events = append(r.events, event{kind: "key", key: key, scancode: scancode, action: action, mods: mods})
}

func (r *recorder) OnMouseButton(button ebiten.MouseButton, action Action, mods ModifierKey) {
	r.events = append(r.events, event{kind: "button", button: button, action: action, mods: mods})
}

func (r *recorder) OnCursor(x, y float64) {
	r.events = append(r.events, event{kind: "cursor", x: x, y: y})
}

func TestPoller_KeyOrder(t *testing.T) {
	src := &fakeSource{
		pressed:  []ebiten.Key{ebiten.KeySpace, ebiten.KeyL},
		released: []ebiten.Key{ebiten.KeyS},
	}
	rec := &recorder{}
	p := NewPoller(src, rec)

	p.Poll()

	want := []event{
		{kind: "key", key: ebiten.KeyS, action: Release},
		{kind: "key", key: ebiten.KeySpace, action: Press},
		{kind: "key", key: ebiten.KeyL, action: Press},
		{kind: "cursor"},
	}
	if len(rec.events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(rec.events), rec.events)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, rec.events[i], want[i])
		}
	}
}

func TestPoller_NoScancode(t *testing.T) {
	src := &fakeSource{
		pressed:  []ebiten.Key{ebiten.KeyEscape},
		released: []ebiten.Key{ebiten.KeyZ},
	}
	rec := &recorder{}
	NewPoller(src, rec).Poll()

	for _, e := range rec.events {
		if e.kind == "key" && e.scancode != 0 {
			t.Errorf("%v: scancode = %d, want 0", e.key, e.scancode)
		}
	}
}

func TestPoller_Modifiers(t *testing.T) {
	src := &fakeSource{
		pressed: []ebiten.Key{ebiten.KeyA},
		held:    map[ebiten.Key]bool{ebiten.KeyShift: true, ebiten.KeyControl: true},
		buttonsPressed: map[ebiten.MouseButton]bool{
			ebiten.MouseButtonLeft: true,
		},
	}
	rec := &recorder{}
	NewPoller(src, rec).Poll()

	wantMods := ModShift | ModControl
	var sawKey, sawButton bool
	for _, e := range rec.events {
		switch e.kind {
		case "key":
			sawKey = true
			if e.mods != wantMods {
				t.Errorf("key mods = %v, want %v", e.mods, wantMods)
			}
		case "button":
			sawButton = true
			if e.button != ebiten.MouseButtonLeft || e.action != Press {
				t.Errorf("unexpected button event %+v", e)
			}
			if e.mods != wantMods {
				t.Errorf("button mods = %v, want %v", e.mods, wantMods)
			}
		}
	}
	if !sawKey || !sawButton {
		t.Errorf("missing events: %+v", rec.events)
	}
}

func TestPoller_MouseRelease(t *testing.T) {
	src := &fakeSource{
		buttonsReleased: map[ebiten.MouseButton]bool{ebiten.MouseButtonRight: true},
	}
	rec := &recorder{}
	NewPoller(src, rec).Poll()

	if len(rec.events) != 2 {
		t.Fatalf("expected button and cursor events, got %+v", rec.events)
	}
	if e := rec.events[0]; e.kind != "button" || e.button != ebiten.MouseButtonRight || e.action != Release {
		t.Errorf("unexpected event %+v", e)
	}
}

func TestPoller_CursorOnlyWhenMoved(t *testing.T) {
	src := &fakeSource{x: 10, y: 20}
	rec := &recorder{}
	p := NewPoller(src, rec)

	p.Poll()
	p.Poll()
	src.x = 11
	p.Poll()
	src.nextFrame()
	p.Poll()

	want := []event{
		{kind: "cursor", x: 10, y: 20},
		{kind: "cursor", x: 11, y: 20},
	}
	if len(rec.events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), rec.events)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, rec.events[i], want[i])
		}
	}
}

func TestPoller_NilHandler(t *testing.T) {
	src := &fakeSource{pressed: []ebiten.Key{ebiten.KeySpace}}
	// パニックしないこと
	NewPoller(src, nil).Poll()
}

func TestFuncs(t *testing.T) {
	var gotKey ebiten.Key
	var gotCursor bool
	h := Funcs{
		Key: func(key ebiten.Key, scancode int, action Action, mods ModifierKey) {
			gotKey = key
		},
		Cursor: func(x, y float64) {
			gotCursor = true
		},
	}

	h.OnKey(ebiten.KeyEnter, 0, Press, 0)
	h.OnMouseButton(ebiten.MouseButtonLeft, Press, 0) // nil field is skipped
	h.OnCursor(1, 2)

	if gotKey != ebiten.KeyEnter {
		t.Errorf("key = %v, want Enter", gotKey)
	}
	if !gotCursor {
		t.Error("cursor callback not called")
	}
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, NopHandler{}, b}

	m.OnKey(ebiten.KeyA, 0, Press, ModAlt)
	m.OnMouseButton(ebiten.MouseButtonMiddle, Release, 0)
	m.OnCursor(3, 4)

	for _, r := range []*recorder{a, b} {
		if len(r.events) != 3 {
			t.Errorf("expected 3 events, got %d", len(r.events))
		}
	}
}

func TestNewHandler(t *testing.T) {
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	if _, ok := NewHandler(false, log).(NopHandler); !ok {
		t.Error("NewHandler(false) should return NopHandler")
	}
	if _, ok := NewHandler(true, nil).(NopHandler); !ok {
		t.Error("NewHandler(true, nil) should return NopHandler")
	}
	if _, ok := NewHandler(true, log).(LogHandler); !ok {
		t.Error("NewHandler(true) should return LogHandler")
	}
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := NewHandler(true, log)

	h.OnKey(ebiten.KeySpace, 0, Press, ModShift)
	h.OnMouseButton(ebiten.MouseButtonLeft, Release, 0)
	h.OnCursor(12, 34)

	out := buf.String()
	for _, want := range []string{
		"msg=key", "key=Space", "scancode=0", "action=Press", "mods=Shift",
		`msg="mouse button"`, "action=Release", "mods=None",
		"msg=cursor", "x=12", "y=34",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestActionString(t *testing.T) {
	if Press.String() != "Press" || Release.String() != "Release" {
		t.Error("unexpected Action strings")
	}
	if Action(9).String() != "Unknown" {
		t.Error("unknown Action should print Unknown")
	}
}

func TestModifierKeyString(t *testing.T) {
	tests := []struct {
		mods ModifierKey
		want string
	}{
		{0, "None"},
		{ModShift, "Shift"},
		{ModControl | ModAlt, "Control+Alt"},
		{ModShift | ModControl | ModAlt | ModSuper, "Shift+Control+Alt+Super"},
	}
	for _, tt := range tests {
		if got := tt.mods.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.mods, got, tt.want)
		}
	}
}
