// Package sound provides the sound manager: it owns the audio context and the
// sound assets loaded through it, and exposes one-shot and looped playback.
package sound

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleRate is the sample rate of the shared audio context and of every decoded sound.
const SampleRate = 44100

// bytesPerFrame is 16-bit stereo.
const bytesPerFrame = 4

// Sound はデコード済みPCMと、再生中のチャンネル（Player）を持つ
// 所有者は1つ。Closeで再生を止めてリソースを解放する
type Sound struct {
	path     string
	pcm      []byte // 16bit stereo, little endian
	audioCtx *audio.Context
	muted    func() bool
	onClose  func(*Sound)

	player  *audio.Player // 再生中のチャンネル。停止中はnil
	looping bool
	closed  bool
	mu      sync.Mutex
}

// Path returns the path the sound was loaded from.
func (s *Sound) Path() string {
	return s.path
}

// Duration returns the length of one playthrough.
func (s *Sound) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := len(s.pcm) / bytesPerFrame
	return time.Duration(frames) * time.Second / SampleRate
}

// Play starts a one-shot playback from the beginning.
// A sound that is already playing is restarted.
func (s *Sound) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %s", ErrSoundClosed, s.path)
	}
	s.stopInternal()

	s.player = s.audioCtx.NewPlayerFromBytes(s.pcm)
	s.looping = false
	s.applyVolume()
	s.player.Play()
	return nil
}

// PlayLoop starts playback that repeats until Stop.
func (s *Sound) PlayLoop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %s", ErrSoundClosed, s.path)
	}
	s.stopInternal()

	loop := audio.NewInfiniteLoop(bytes.NewReader(s.pcm), int64(len(s.pcm)))
	player, err := s.audioCtx.NewPlayer(loop)
	if err != nil {
		return fmt.Errorf("failed to create audio player for %s: %w", s.path, err)
	}
	s.player = player
	s.looping = true
	s.applyVolume()
	s.player.Play()
	return nil
}

// Stop stops playback. Stopping an idle sound does nothing.
func (s *Sound) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopInternal()
}

// IsPlaying reports whether the sound has an active channel that is playing.
func (s *Sound) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player != nil && s.player.IsPlaying()
}

// IsLooping reports whether the active channel was started by PlayLoop.
func (s *Sound) IsLooping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player != nil && s.looping
}

// Close stops playback and releases the sound. It is idempotent.
func (s *Sound) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.stopInternal()
	s.closed = true
	s.pcm = nil
	onClose := s.onClose
	s.mu.Unlock()

	// onCloseはManagerのロックを取るので、自分のロックを外してから呼ぶ
	if onClose != nil {
		onClose(s)
	}
	return nil
}

// setMuted updates the volume of the active channel.
func (s *Sound) setMuted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyVolume()
}

// reap closes a finished one-shot channel.
func (s *Sound) reap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil && !s.looping && !s.player.IsPlaying() {
		s.stopInternal()
	}
}

// stopInternal must be called with s.mu held.
func (s *Sound) stopInternal() {
	if s.player == nil {
		return
	}
	s.player.Pause()
	_ = s.player.Close()
	s.player = nil
	s.looping = false
}

// applyVolume must be called with s.mu held.
func (s *Sound) applyVolume() {
	if s.player == nil {
		return
	}
	if s.muted != nil && s.muted() {
		s.player.SetVolume(0)
	} else {
		s.player.SetVolume(1)
	}
}

// ErrSoundClosed is returned when playing a sound after Close.
var ErrSoundClosed = errors.New("sound is closed")
