package sound

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/zurustar/enginekit/pkg/fileutil"
	"github.com/zurustar/enginekit/pkg/logger"
)

var (
	// ErrInitFailed is returned when the audio system cannot be set up.
	ErrInitFailed = errors.New("sound system initialization failed")
	// ErrSoundLoadFailed is returned when a sound file cannot be read or decoded.
	ErrSoundLoadFailed = errors.New("sound load failed")
	// ErrManagerClosed is returned by operations on a closed Manager.
	ErrManagerClosed = errors.New("sound manager is closed")
)

// Option configures a Manager.
type Option func(*Manager)

// WithFileSystem makes the manager read sound files through fsys instead of the OS.
func WithFileSystem(fsys fileutil.FileSystem) Option {
	return func(m *Manager) {
		m.fsys = fsys
	}
}

// WithSoundFont sets the SF2 file used to render MIDI sounds.
// It is read through fsys, or from disk when fsys is nil.
func WithSoundFont(fsys fileutil.FileSystem, path string) Option {
	return func(m *Manager) {
		m.soundFontFS = fsys
		m.soundFontPath = path
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithMuted starts the manager muted.
func WithMuted(muted bool) Option {
	return func(m *Manager) {
		m.muted.Store(muted)
	}
}

// Manager owns the audio context reference and every Sound it created.
// Sounds kept with StoreSound live until the Manager closes; sounds returned
// by LoadSound belong to the caller but are also stopped when the Manager closes.
type Manager struct {
	audioCtx      *audio.Context
	fsys          fileutil.FileSystem
	soundFontFS   fileutil.FileSystem
	soundFontPath string
	soundFont     *meltysynth.SoundFont
	log           *slog.Logger
	muted         atomic.Bool

	stored []*Sound
	live   map[*Sound]struct{}
	closed bool
	mu     sync.Mutex
}

// NewManager creates a sound manager on ctx.
// Ebitengine allows one audio.Context per process, so the caller owns it.
func NewManager(ctx *audio.Context, opts ...Option) (*Manager, error) {
	m := &Manager{
		audioCtx: ctx,
		live:     make(map[*Sound]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.GetLogger()
	}

	if ctx == nil {
		return nil, fmt.Errorf("%w: audio context is nil", ErrInitFailed)
	}
	if ctx.SampleRate() != SampleRate {
		return nil, fmt.Errorf("%w: audio context sample rate %d, want %d", ErrInitFailed, ctx.SampleRate(), SampleRate)
	}

	if m.soundFontPath != "" {
		sf, err := loadSoundFont(m.soundFontFS, m.soundFontPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInitFailed, err)
		}
		m.soundFont = sf
		m.log.Info("SoundFont loaded", "path", m.soundFontPath)
	}

	m.log.Debug("sound manager created", "sampleRate", SampleRate, "muted", m.muted.Load())
	return m, nil
}

// LoadSound decodes path and returns a Sound owned by the caller.
func (m *Manager) LoadSound(path string) (*Sound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(path)
}

// StoreSound decodes path and keeps the Sound in the manager.
func (m *Manager) StoreSound(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.loadLocked(path)
	if err != nil {
		return err
	}
	m.stored = append(m.stored, s)
	return nil
}

// Sounds returns the stored sounds in the order they were stored.
func (m *Manager) Sounds() []*Sound {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Sound, len(m.stored))
	copy(out, m.stored)
	return out
}

// Sound returns the stored sound for path, or nil.
func (m *Manager) Sound(path string) *Sound {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.stored {
		if s.path == path {
			return s
		}
	}
	return nil
}

// SetMuted silences or restores every sound the manager created.
func (m *Manager) SetMuted(muted bool) {
	m.muted.Store(muted)
	for _, s := range m.liveSounds() {
		s.setMuted()
	}
	m.log.Debug("sound mute changed", "muted", muted)
}

// IsMuted reports the mute state.
func (m *Manager) IsMuted() bool {
	return m.muted.Load()
}

// Playing returns the number of sounds with an active channel.
func (m *Manager) Playing() int {
	count := 0
	for _, s := range m.liveSounds() {
		if s.IsPlaying() {
			count++
		}
	}
	return count
}

// Update releases channels of one-shot sounds that have finished.
// Call it once per frame.
func (m *Manager) Update() {
	for _, s := range m.liveSounds() {
		s.reap()
	}
}

// Close stops and releases every sound. It is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sounds := make([]*Sound, 0, len(m.live))
	for s := range m.live {
		sounds = append(sounds, s)
	}
	m.stored = nil
	m.soundFont = nil
	m.mu.Unlock()

	for _, s := range sounds {
		_ = s.Close()
	}
	m.log.Debug("sound manager closed", "sounds", len(sounds))
	return nil
}

func (m *Manager) loadLocked(path string) (*Sound, error) {
	if m.closed {
		return nil, ErrManagerClosed
	}

	data, err := readFile(m.fsys, path)
	if err != nil {
		m.log.Warn("sound file not found", "path", path, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrSoundLoadFailed, path, err)
	}

	var pcm []byte
	switch formatOf(path) {
	case ".wav":
		pcm, err = decodeWAV(data)
	case ".mid", ".midi":
		pcm, err = renderMIDI(data, m.soundFont)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		m.log.Warn("sound decode failed", "path", path, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrSoundLoadFailed, path, err)
	}

	s := &Sound{
		path:     path,
		pcm:      pcm,
		audioCtx: m.audioCtx,
		muted:    m.muted.Load,
		onClose:  m.forget,
	}
	m.live[s] = struct{}{}
	m.log.Info("sound loaded", "path", path, "duration", s.Duration())
	return s, nil
}

// forget drops s from the manager's bookkeeping after s.Close.
func (m *Manager) forget(s *Sound) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.live, s)
	for i, st := range m.stored {
		if st == s {
			m.stored = append(m.stored[:i], m.stored[i+1:]...)
			break
		}
	}
}

func (m *Manager) liveSounds() []*Sound {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Sound, 0, len(m.live))
	for s := range m.live {
		out = append(out, s)
	}
	return out
}
