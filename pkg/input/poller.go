package input

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Source reports the input state of the current frame.
type Source interface {
	AppendJustPressedKeys(keys []ebiten.Key) []ebiten.Key
	AppendJustReleasedKeys(keys []ebiten.Key) []ebiten.Key
	IsMouseButtonJustPressed(button ebiten.MouseButton) bool
	IsMouseButtonJustReleased(button ebiten.MouseButton) bool
	IsKeyPressed(key ebiten.Key) bool
	CursorPosition() (x, y int)
}

// EbitenSource reads input from the running ebiten game.
type EbitenSource struct{}

func (EbitenSource) AppendJustPressedKeys(keys []ebiten.Key) []ebiten.Key {
	return inpututil.AppendJustPressedKeys(keys)
}

func (EbitenSource) AppendJustReleasedKeys(keys []ebiten.Key) []ebiten.Key {
	return inpututil.AppendJustReleasedKeys(keys)
}

func (EbitenSource) IsMouseButtonJustPressed(button ebiten.MouseButton) bool {
	return inpututil.IsMouseButtonJustPressed(button)
}

func (EbitenSource) IsMouseButtonJustReleased(button ebiten.MouseButton) bool {
	return inpututil.IsMouseButtonJustReleased(button)
}

func (EbitenSource) IsKeyPressed(key ebiten.Key) bool {
	return ebiten.IsKeyPressed(key)
}

func (EbitenSource) CursorPosition() (int, int) {
	return ebiten.CursorPosition()
}

// Poller turns per-frame Source state into Handler callbacks.
// Poll must be called once per frame from Game.Update.
type Poller struct {
	source  Source
	handler Handler

	keys      []ebiten.Key
	cursorX   int
	cursorY   int
	hasCursor bool
}

// NewPoller returns a Poller reading from source. A nil handler drops events.
func NewPoller(source Source, handler Handler) *Poller {
	if handler == nil {
		handler = NopHandler{}
	}
	return &Poller{
		source:  source,
		handler: handler,
	}
}

// Poll emits releases before presses, keys before mouse buttons, and the
// cursor last, only when it moved since the previous Poll.
func (p *Poller) Poll() {
	mods := p.modifiers()

	// ebitenはスキャンコードを公開しないので常に0を渡す
	p.keys = p.source.AppendJustReleasedKeys(p.keys[:0])
	for _, k := range p.keys {
		p.handler.OnKey(k, 0, Release, mods)
	}
	p.keys = p.source.AppendJustPressedKeys(p.keys[:0])
	for _, k := range p.keys {
		p.handler.OnKey(k, 0, Press, mods)
	}

	for b := ebiten.MouseButton(0); b <= ebiten.MouseButtonMax; b++ {
		if p.source.IsMouseButtonJustReleased(b) {
			p.handler.OnMouseButton(b, Release, mods)
		}
		if p.source.IsMouseButtonJustPressed(b) {
			p.handler.OnMouseButton(b, Press, mods)
		}
	}

	x, y := p.source.CursorPosition()
	if !p.hasCursor || x != p.cursorX || y != p.cursorY {
		p.cursorX, p.cursorY, p.hasCursor = x, y, true
		p.handler.OnCursor(float64(x), float64(y))
	}
}

func (p *Poller) modifiers() ModifierKey {
	var mods ModifierKey
	if p.source.IsKeyPressed(ebiten.KeyShift) {
		mods |= ModShift
	}
	if p.source.IsKeyPressed(ebiten.KeyControl) {
		mods |= ModControl
	}
	if p.source.IsKeyPressed(ebiten.KeyAlt) {
		mods |= ModAlt
	}
	if p.source.IsKeyPressed(ebiten.KeyMeta) {
		mods |= ModSuper
	}
	return mods
}
