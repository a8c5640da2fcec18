package app

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/zurustar/enginekit/pkg/cli"
	"github.com/zurustar/enginekit/pkg/filemanager"
	"github.com/zurustar/enginekit/pkg/input"
	"github.com/zurustar/enginekit/pkg/logger"
	"github.com/zurustar/enginekit/pkg/sound"
)

// makeWAV builds a 16-bit stereo PCM WAV file of silence.
func makeWAV(frames int) []byte {
	dataSize := frames * 4
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+dataSize))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(2))
	binary.Write(&b, binary.LittleEndian, uint32(sound.SampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(sound.SampleRate*4))
	binary.Write(&b, binary.LittleEndian, uint16(4))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(dataSize))
	b.Write(make([]byte, dataSize))
	return b.Bytes()
}

// setupAssets はWAVと読み込めないファイルを含むアセットディレクトリを作る
func setupAssets(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"a-beep.wav": makeWAV(sound.SampleRate / 10),
		"b-long.WAV": makeWAV(sound.SampleRate),
		"broken.wav": []byte("not a wav"),
		"readme.txt": []byte("ignored"),
		"song.mid":   []byte("MThd"),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"HEADLESS", "IMGUI_ENABLED", "LOGGING_ENABLED", "TIMEOUT",
		"LOG_LEVEL", "LOG_FILE", "SOUNDFONT", "JOURNAL",
	} {
		t.Setenv(name, "")
	}
	// カレントディレクトリのSoundFontを拾わないようにする
	t.Chdir(t.TempDir())
}

func readJournal(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read journal: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestRun_Help(t *testing.T) {
	clearEnv(t)
	app := New(nil)
	if err := app.Run([]string{"-h"}); err != nil {
		t.Errorf("Run(-h) failed: %v", err)
	}
}

func TestRun_InvalidArgs(t *testing.T) {
	clearEnv(t)
	app := New(nil)
	if err := app.Run([]string{"--log-level", "loud"}); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestRun_UnwritableLogFile(t *testing.T) {
	clearEnv(t)
	parent := filepath.Join(t.TempDir(), "notadir")
	if err := os.WriteFile(parent, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	err := New(nil).Run([]string{"--headless", "-t", "1", "--log-file", filepath.Join(parent, "app.log"), setupAssets(t)})
	if err == nil {
		t.Fatal("expected error for unwritable log file")
	}
	if !strings.Contains(err.Error(), "failed to initialize logger") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRun_Headless(t *testing.T) {
	clearEnv(t)
	assets := setupAssets(t)
	journal := filepath.Join(t.TempDir(), "journal.txt")

	app := New(nil)
	err := app.Run([]string{"--headless", "--timeout", "1", "--log-level", "error", "--journal", journal, assets})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lines := readJournal(t, journal)
	if len(lines) != 2 {
		t.Fatalf("expected 2 journal lines, got %q", lines)
	}
	if !strings.Contains(lines[0], "session start assets="+assets) {
		t.Errorf("unexpected start line %q", lines[0])
	}
	if !strings.Contains(lines[1], "session end frames=") {
		t.Errorf("unexpected end line %q", lines[1])
	}

	// 全てのリソースが解放されている
	if app.files.Len() != 0 {
		t.Errorf("file table should be empty, got %d", app.files.Len())
	}
	if app.releases != nil {
		t.Error("release stack should be empty")
	}
	if len(app.sounds.Sounds()) != 0 {
		t.Error("sound manager should be closed")
	}
	if app.game.Frames() == 0 {
		t.Error("expected the headless loop to run")
	}
}

func TestRun_JournalAppendsAcrossSessions(t *testing.T) {
	clearEnv(t)
	assets := setupAssets(t)
	journal := filepath.Join(t.TempDir(), "journal.txt")
	args := []string{"--headless", "-t", "1", "-l", "error", "--journal", journal, assets}

	for i := 0; i < 2; i++ {
		if err := New(nil).Run(args); err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
	}
	if lines := readJournal(t, journal); len(lines) != 4 {
		t.Errorf("expected 4 journal lines after two sessions, got %d", len(lines))
	}
}

func TestRun_FailureReleasesAcquired(t *testing.T) {
	clearEnv(t)
	journal := filepath.Join(t.TempDir(), "journal.txt")
	missing := filepath.Join(t.TempDir(), "missing")

	app := New(nil)
	err := app.Run([]string{"--headless", "-t", "1", "-l", "error", "--journal", journal, missing})
	if err == nil {
		t.Fatal("expected error for missing asset directory")
	}
	if !strings.Contains(err.Error(), "failed to list assets") {
		t.Errorf("unexpected error: %v", err)
	}

	// 失敗時もジャーナルは閉じられ、終了行が書かれている
	lines := readJournal(t, journal)
	if len(lines) != 2 || !strings.Contains(lines[1], "session end frames=0") {
		t.Errorf("unexpected journal %q", lines)
	}
	if app.files.Len() != 0 {
		t.Errorf("file table should be empty, got %d", app.files.Len())
	}
}

func TestRun_JournalOpenFailure(t *testing.T) {
	clearEnv(t)
	journal := filepath.Join(t.TempDir(), "no-such-dir", "journal.txt")

	err := New(nil).Run([]string{"--headless", "-t", "1", "-l", "error", "--journal", journal, setupAssets(t)})
	if err == nil {
		t.Fatal("expected error for unopenable journal")
	}
	if !strings.Contains(err.Error(), "failed to open journal") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRun_EmbeddedAssets(t *testing.T) {
	clearEnv(t)
	journal := filepath.Join(t.TempDir(), "journal.txt")
	assets := fstest.MapFS{
		"jingle.wav": {Data: makeWAV(sound.SampleRate / 20)},
	}

	app := New(assets)
	if err := app.Run([]string{"--headless", "-t", "1", "-l", "error", "--journal", journal}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if lines := readJournal(t, journal); len(lines) != 2 {
		t.Errorf("expected 2 journal lines, got %q", lines)
	}
}

// newStartedApp はゲームループを回さずに初期化だけを行ったApplicationを返す
func newStartedApp(t *testing.T) (*Application, string) {
	t.Helper()
	clearEnv(t)
	journal := filepath.Join(t.TempDir(), "journal.txt")

	app := New(nil)
	app.config = &cli.Config{
		AssetPath:   setupAssets(t),
		LogLevel:    "error",
		JournalPath: journal,
	}
	app.log = logger.Discard()
	t.Cleanup(func() { app.releaseAll() })

	if err := app.openJournal(); err != nil {
		t.Fatal(err)
	}
	if err := app.initSound(); err != nil {
		t.Fatal(err)
	}
	if err := app.initUI(); err != nil {
		t.Fatal(err)
	}
	app.buildGame()
	return app, journal
}

func TestInitSound_StoresLoadableSounds(t *testing.T) {
	app, _ := newStartedApp(t)

	var paths []string
	for _, s := range app.sounds.Sounds() {
		paths = append(paths, s.Path())
	}
	want := []string{"a-beep.wav", "b-long.WAV"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("stored sounds = %v, want %v", paths, want)
	}
}

func TestOnKey_Bindings(t *testing.T) {
	app, journal := newStartedApp(t)
	first := app.sounds.Sounds()[0]

	app.onKey(ebiten.KeyL, 0, input.Press, 0)
	if !first.IsLooping() {
		t.Error("L should loop the first sound")
	}

	// リリースは無視される
	app.onKey(ebiten.KeyS, 0, input.Release, 0)
	if !first.IsLooping() {
		t.Error("key release should not stop sounds")
	}

	app.onKey(ebiten.KeyS, 0, input.Press, 0)
	if first.IsLooping() {
		t.Error("S should stop all sounds")
	}

	app.onKey(ebiten.KeySpace, 0, input.Press, 0)
	app.onKey(ebiten.KeyM, 0, input.Press, 0)
	if !app.sounds.IsMuted() {
		t.Error("M should toggle mute on")
	}

	app.onKey(ebiten.KeyEscape, 0, input.Press, 0)
	if err := app.game.Update(); err != ebiten.Termination {
		t.Errorf("Escape should end the game, got %v", err)
	}

	lines := readJournal(t, journal)
	var plays int
	for _, l := range lines {
		if strings.Contains(l, " play sound=a-beep.wav") {
			plays++
		}
	}
	if plays != 2 {
		t.Errorf("expected 2 play lines, got %d in %q", plays, lines)
	}
}

func TestBuildGame_DisabledFeatures(t *testing.T) {
	app, _ := newStartedApp(t)
	if app.overlay.Enabled() {
		t.Error("debug UI should be disabled by default")
	}
}

func TestAddFile_RejectedHandle(t *testing.T) {
	app := New(nil)
	h, err := filemanager.Open(filepath.Join(t.TempDir(), "x.txt"), filemanager.Text, filemanager.Overwrite)
	if err != nil {
		t.Fatal(err)
	}
	h.Close()

	if _, err := app.addFile(h); !errors.Is(err, filemanager.ErrNotOpen) {
		t.Errorf("expected ErrNotOpen for a closed handle, got %v", err)
	}
	if app.files.Len() != 0 {
		t.Errorf("file table should stay empty, got %d", app.files.Len())
	}
	if h.IsOpen() {
		t.Error("rejected handle should be closed")
	}
}

func TestReleaseAll_LIFO(t *testing.T) {
	app := New(nil)
	app.log = logger.Discard()

	var order []string
	errSecond := errors.New("second failed")
	app.push("first", func() error { order = append(order, "first"); return nil })
	app.push("second", func() error { order = append(order, "second"); return errSecond })
	app.push("third", func() error { order = append(order, "third"); return nil })

	err := app.releaseAll()
	if want := []string{"third", "second", "first"}; !reflect.DeepEqual(order, want) {
		t.Errorf("release order = %v, want %v", order, want)
	}
	if !errors.Is(err, errSecond) {
		t.Errorf("expected joined error to contain %v, got %v", errSecond, err)
	}
	if err := app.releaseAll(); err != nil {
		t.Errorf("second releaseAll should be a no-op, got %v", err)
	}
}
