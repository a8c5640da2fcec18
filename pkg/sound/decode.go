package sound

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/zurustar/enginekit/pkg/fileutil"
)

var (
	// ErrUnsupportedFormat is returned for files whose extension has no decoder.
	ErrUnsupportedFormat = errors.New("unsupported sound format")
	// ErrNoSoundFont is returned when a MIDI file is loaded without a SoundFont.
	ErrNoSoundFont = errors.New("SoundFont file is required for MIDI sounds")
	// ErrSoundFontNotFound is returned when the SoundFont file cannot be read.
	ErrSoundFontNotFound = errors.New("SoundFont file not found")
	// ErrMIDITooLong is returned for MIDI files longer than maxMIDIDuration.
	ErrMIDITooLong = errors.New("MIDI file is too long")
)

// renderBlock is the number of frames rendered per meltysynth call.
const renderBlock = 1024

// maxMIDIDuration caps the rendered PCM (about 317MB at SampleRate).
const maxMIDIDuration = 30 * time.Minute

// Extensions returns the file extensions the manager can decode.
func Extensions() []string {
	return []string{".wav", ".mid", ".midi"}
}

// readFile reads through fsys, or the OS file system when fsys is nil.
func readFile(fsys fileutil.FileSystem, path string) ([]byte, error) {
	if fsys == nil {
		return os.ReadFile(path)
	}
	return fsys.ReadFile(path)
}

// loadSoundFont reads and parses an SF2 file.
func loadSoundFont(fsys fileutil.FileSystem, path string) (*meltysynth.SoundFont, error) {
	data, err := readFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSoundFontNotFound, path, err)
	}
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SoundFont %s: %w", path, err)
	}
	return sf, nil
}

// decodeWAV decodes WAV data to 16-bit stereo PCM at SampleRate.
func decodeWAV(data []byte) ([]byte, error) {
	stream, err := wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV: %w", err)
	}
	pcm, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV stream: %w", err)
	}
	return pcm, nil
}

// renderMIDI plays the whole MIDI file through a synthesizer and returns the
// result as 16-bit stereo PCM.
func renderMIDI(data []byte, sf *meltysynth.SoundFont) ([]byte, error) {
	midi, err := parseMIDI(data)
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, ErrNoSoundFont
	}

	synth, err := meltysynth.NewSynthesizer(sf, meltysynth.NewSynthesizerSettings(SampleRate))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}
	sequencer := meltysynth.NewMidiFileSequencer(synth)
	sequencer.Play(midi, false)

	total := int(midi.GetLength().Seconds() * SampleRate)
	pcm := make([]byte, 0, total*bytesPerFrame)
	left := make([]float32, renderBlock)
	right := make([]float32, renderBlock)

	for rendered := 0; rendered < total; rendered += renderBlock {
		n := renderBlock
		if total-rendered < n {
			n = total - rendered
		}
		sequencer.Render(left[:n], right[:n])
		pcm = appendPCM(pcm, left[:n], right[:n])
	}
	return pcm, nil
}

// parseMIDI parses data and rejects songs whose length is over maxMIDIDuration.
// The length runs to the last event, so a stray event hours after the music
// counts.
func parseMIDI(data []byte) (*meltysynth.MidiFile, error) {
	midi, err := meltysynth.NewMidiFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}
	if length := midi.GetLength(); length > maxMIDIDuration {
		return nil, fmt.Errorf("%w: %v (max %v)", ErrMIDITooLong, length.Round(time.Second), maxMIDIDuration)
	}
	return midi, nil
}

// appendPCM interleaves left/right float samples as little endian int16.
func appendPCM(dst []byte, left, right []float32) []byte {
	var frame [bytesPerFrame]byte
	for i := range left {
		binary.LittleEndian.PutUint16(frame[0:], uint16(floatToInt16(left[i])))
		binary.LittleEndian.PutUint16(frame[2:], uint16(floatToInt16(right[i])))
		dst = append(dst, frame[:]...)
	}
	return dst
}

func floatToInt16(v float32) int16 {
	s := math.Round(float64(v) * 32767)
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	if s < math.MinInt16 {
		return math.MinInt16
	}
	return int16(s)
}

// formatOf returns the lower-case extension of path.
func formatOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
