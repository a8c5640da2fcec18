// Package ui provides an immediate-mode debug overlay drawn on the game screen.
//
// Widgets are recorded between BeginFrame and EndFrame and drawn in one pass
// by EndFrame. A Manager built with Config.Enabled=false records nothing and
// every call returns immediately.
package ui

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/zurustar/enginekit/pkg/logger"
	"golang.org/x/image/font/basicfont"
)

var (
	// ErrInitFailed is returned by New for an unusable configuration.
	ErrInitFailed = errors.New("ui initialization failed")
	// ErrClosed is returned by calls on a closed Manager.
	ErrClosed = errors.New("ui manager is closed")
	// ErrFrameInProgress is returned by BeginFrame when a frame was not ended.
	ErrFrameInProgress = errors.New("ui frame already begun")
	// ErrNoFrame is returned by EndFrame without a matching BeginFrame.
	ErrNoFrame = errors.New("ui frame not begun")
)

// オーバーレイの色と寸法
var (
	panelColor     = color.RGBA{0, 0, 0, 180}       // 半透明黒
	textColor      = color.RGBA{255, 255, 255, 255} // 白
	separatorColor = color.RGBA{128, 128, 128, 255} // グレー
)

const (
	lineHeight      = 16
	panelPadding    = 6
	separatorHeight = 8
	minPanelWidth   = 120
)

// Config configures the overlay.
type Config struct {
	Enabled bool
	X, Y    float32 // panel origin in screen pixels
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithFace sets the font face. The default is basicfont 7x13.
func WithFace(face text.Face) Option {
	return func(m *Manager) {
		m.face = face
	}
}

// item はフレームの描画リストの1要素
type item struct {
	text      string
	separator bool
}

// Manager records widgets for one frame at a time and draws them on EndFrame.
type Manager struct {
	cfg  Config
	face text.Face
	log  *slog.Logger

	items   []item
	inFrame bool
	frames  int
	closed  bool
	mu      sync.Mutex
}

// New creates the overlay. Only one Manager should exist per window; the
// application root owns it and hands it to the window layer.
func New(cfg Config, opts ...Option) (*Manager, error) {
	m := &Manager{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.GetLogger()
	}
	if cfg.X < 0 || cfg.Y < 0 {
		return nil, fmt.Errorf("%w: negative panel origin (%v, %v)", ErrInitFailed, cfg.X, cfg.Y)
	}
	if m.face == nil && cfg.Enabled {
		m.face = text.NewGoXFace(basicfont.Face7x13)
	}
	m.log.Debug("ui manager created", "enabled", cfg.Enabled)
	return m, nil
}

// Enabled reports whether the overlay draws anything.
func (m *Manager) Enabled() bool {
	return m != nil && m.cfg.Enabled
}

// BeginFrame starts recording a frame.
func (m *Manager) BeginFrame() error {
	if !m.Enabled() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.inFrame {
		return ErrFrameInProgress
	}
	m.inFrame = true
	m.items = m.items[:0]
	return nil
}

// Text adds a formatted line. Outside a frame it is ignored.
func (m *Manager) Text(format string, args ...any) {
	if !m.Enabled() {
		return
	}
	m.add(item{text: fmt.Sprintf(format, args...)})
}

// Value adds a "label: value" line.
func (m *Manager) Value(label string, v any) {
	if !m.Enabled() {
		return
	}
	m.add(item{text: fmt.Sprintf("%s: %v", label, v)})
}

// Separator adds a horizontal rule.
func (m *Manager) Separator() {
	if !m.Enabled() {
		return
	}
	m.add(item{separator: true})
}

// Lines returns the text of the widgets recorded in the current frame.
// Separators appear as "---".
func (m *Manager) Lines() []string {
	if !m.Enabled() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := make([]string, 0, len(m.items))
	for _, it := range m.items {
		if it.separator {
			lines = append(lines, "---")
			continue
		}
		lines = append(lines, it.text)
	}
	return lines
}

// Frames returns the number of frames submitted with EndFrame.
func (m *Manager) Frames() int {
	if !m.Enabled() {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// EndFrame draws the recorded widgets on screen and ends the frame.
// A nil screen ends the frame without drawing.
func (m *Manager) EndFrame(screen *ebiten.Image) error {
	if !m.Enabled() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if !m.inFrame {
		return ErrNoFrame
	}
	m.inFrame = false
	m.frames++

	if screen != nil && len(m.items) > 0 {
		m.draw(screen)
	}
	return nil
}

// Close detaches the overlay. It is idempotent.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.inFrame = false
	m.items = nil
	m.log.Debug("ui manager closed", "frames", m.frames)
	return nil
}

func (m *Manager) add(it item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.inFrame {
		return
	}
	m.items = append(m.items, it)
}

// draw must be called with m.mu held.
func (m *Manager) draw(screen *ebiten.Image) {
	w, h := m.panelSize()
	vector.DrawFilledRect(screen, m.cfg.X, m.cfg.Y, w, h, panelColor, false)

	y := m.cfg.Y + panelPadding
	for _, it := range m.items {
		if it.separator {
			lineY := y + separatorHeight/2
			vector.StrokeLine(screen, m.cfg.X+panelPadding, lineY, m.cfg.X+w-panelPadding, lineY, 1, separatorColor, false)
			y += separatorHeight
			continue
		}
		op := &text.DrawOptions{}
		op.GeoM.Translate(float64(m.cfg.X+panelPadding), float64(y))
		op.ColorScale.ScaleWithColor(textColor)
		text.Draw(screen, it.text, m.face, op)
		y += lineHeight
	}
}

// panelSize must be called with m.mu held.
func (m *Manager) panelSize() (float32, float32) {
	w := float32(minPanelWidth)
	h := float32(2 * panelPadding)
	for _, it := range m.items {
		if it.separator {
			h += separatorHeight
			continue
		}
		tw, _ := text.Measure(it.text, m.face, lineHeight)
		if lw := float32(tw) + 2*panelPadding; lw > w {
			w = lw
		}
		h += lineHeight
	}
	return w, h
}
