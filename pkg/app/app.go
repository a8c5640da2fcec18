package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/zurustar/enginekit/pkg/cli"
	"github.com/zurustar/enginekit/pkg/filemanager"
	"github.com/zurustar/enginekit/pkg/fileutil"
	"github.com/zurustar/enginekit/pkg/input"
	"github.com/zurustar/enginekit/pkg/logger"
	"github.com/zurustar/enginekit/pkg/sound"
	"github.com/zurustar/enginekit/pkg/ui"
	"github.com/zurustar/enginekit/pkg/window"
)

// WindowTitle はウィンドウのタイトル
const WindowTitle = "enginekit"

// release は取得したリソースの解放処理
type release struct {
	name string
	fn   func() error
}

// Application はアプリケーションのメインロジックを管理する
// UI・サウンド・ファイルテーブルはここで1つだけ作られ、参照として各部に渡される
type Application struct {
	config *cli.Config
	log    *slog.Logger
	assets fs.FS // 埋め込みアセット（nilならAssetPathのディレクトリを使う）

	releases []release // 取得順に積まれ、逆順に解放される
	files    *filemanager.Table
	journal  int // ジャーナルのハンドルID
	sounds   *sound.Manager
	overlay  *ui.Manager
	game     *window.Game
}

// New Applicationを作成
// assetsがnilの場合は、コマンドラインで指定されたディレクトリからアセットを読む
func New(assets fs.FS) *Application {
	return &Application{
		assets: assets,
		files:  filemanager.NewTable(),
	}
}

// Run アプリケーションを実行
// 途中で失敗した場合も、それまでに取得したリソースは逆順に解放される
func (app *Application) Run(args []string) (err error) {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if rerr := app.releaseAll(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to release resources: %w", rerr))
		}
	}()

	app.log.Info("Application started", "assets", app.config.AssetPath, "headless", app.config.Headless)

	// 3. セッションジャーナル
	if err := app.openJournal(); err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	// 4. オーディオとサウンドの読み込み
	if err := app.initSound(); err != nil {
		return fmt.Errorf("failed to initialize sound: %w", err)
	}

	// 5. デバッグUI
	if err := app.initUI(); err != nil {
		return fmt.Errorf("failed to initialize ui: %w", err)
	}

	// 6. 入力とゲームループ
	app.buildGame()
	if err := app.runGame(); err != nil {
		return fmt.Errorf("failed to run game: %w", err)
	}

	app.log.Info("Application terminated normally")
	return nil
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLoggerWithFile(app.config.LogLevel, app.config.LogFile); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	app.push("log file", logger.CloseLogFile)
	return nil
}

// openJournal ジャーナルファイルを追記モードで開き、ファイルテーブルに登録する
func (app *Application) openJournal() error {
	h, err := filemanager.Open(app.config.JournalPath, filemanager.Text, filemanager.Append,
		filemanager.WithLogger(app.log))
	if err != nil {
		return err
	}
	id, err := app.addFile(h)
	if err != nil {
		return err
	}
	app.journal = id
	app.push("file table", app.files.CloseAll)

	if err := app.writeJournal("session start", "assets", app.config.AssetPath); err != nil {
		return err
	}
	app.push("journal", func() error {
		frames := 0
		if app.game != nil {
			frames = app.game.Frames()
		}
		return app.writeJournal("session end", "frames", frames)
	})
	return nil
}

// addFile はハンドルをファイルテーブルに登録する
// 登録できなかったハンドルは閉じ、そのエラーも返す
func (app *Application) addFile(h *filemanager.Handle) (int, error) {
	id, err := app.files.Add(h)
	if err != nil {
		return 0, errors.Join(err, h.Close())
	}
	return id, nil
}

// writeJournal はジャーナルに1行書き込む
// 形式: RFC3339時刻 イベント key=value ...
func (app *Application) writeJournal(event string, kv ...any) error {
	h, err := app.files.Get(app.journal)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(time.Now().Format(time.RFC3339))
	b.WriteString(" ")
	b.WriteString(event)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	b.WriteString("\n")

	if err := h.WriteText(b.String()); err != nil {
		return err
	}
	return h.Sync()
}

// assetFS アセットの読み込みに使うFileSystemを返す
func (app *Application) assetFS() fileutil.FileSystem {
	if app.assets != nil {
		return fileutil.NewFS(app.assets, "embedded")
	}
	return fileutil.NewDirFS(app.config.AssetPath)
}

// initSound オーディオコンテキストとサウンドマネージャーを作成し、
// アセットディレクトリ直下のサウンドを全て読み込む
func (app *Application) initSound() error {
	// Ebitengineのオーディオコンテキストはプロセスに1つだけ
	audioCtx := audio.CurrentContext()
	if audioCtx == nil {
		audioCtx = audio.NewContext(sound.SampleRate)
	}

	assets := app.assetFS()
	opts := []sound.Option{
		sound.WithFileSystem(assets),
		sound.WithLogger(app.log),
		sound.WithMuted(app.config.Muted),
	}
	if loc := findSoundFont(app.config.SoundFont, assets); loc != nil {
		opts = append(opts, sound.WithSoundFont(loc.FileSystem, loc.Path))
	} else {
		app.log.Info("No SoundFont found, MIDI sounds are disabled")
	}

	mgr, err := sound.NewManager(audioCtx, opts...)
	if err != nil {
		return err
	}
	app.sounds = mgr
	app.push("sound manager", mgr.Close)

	names, err := assets.List(".", sound.Extensions()...)
	if err != nil {
		return fmt.Errorf("failed to list assets: %w", err)
	}
	for _, name := range names {
		// 1つのファイルの失敗で起動を止めない
		if err := mgr.StoreSound(name); err != nil {
			app.log.Warn("Skipping sound", "path", name, "error", err)
		}
	}
	app.log.Info("Sounds stored", "count", len(mgr.Sounds()), "found", len(names))
	return nil
}

// initUI デバッグUIを作成する（ヘッドレスでは常に無効）
func (app *Application) initUI() error {
	overlay, err := ui.New(ui.Config{
		Enabled: app.config.DebugUI && !app.config.Headless,
		X:       8,
		Y:       8,
	}, ui.WithLogger(app.log))
	if err != nil {
		return err
	}
	app.overlay = overlay
	app.push("ui manager", overlay.Close)
	return nil
}

// buildGame ゲームを組み立てる
// 無効な機能（デバッグUI・入力ログ）はGameに渡さないか、何もしないハンドラーにする
func (app *Application) buildGame() {
	game := window.NewGame(app.config.Timeout)
	game.SetSoundSystem(app.sounds)
	game.SetFileTable(app.files)
	if app.overlay.Enabled() {
		game.SetOverlay(app.overlay)
	}
	app.game = game

	if !app.config.Headless {
		handler := input.Multi{
			input.NewHandler(app.config.LogInput, app.log),
			input.Funcs{Key: app.onKey},
		}
		game.SetInputPoller(input.NewPoller(input.EbitenSource{}, handler))
	}
}

// runGame ウィンドウまたはヘッドレスでゲームループを実行する
func (app *Application) runGame() error {
	if app.config.Headless {
		app.log.Info("Headless mode: running without window", "timeout", app.config.Timeout)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return window.RunHeadless(ctx, app.game, window.DefaultTick)
	}
	return window.Run(app.game, WindowTitle)
}

// onKey は既定のキー割り当てを処理する
func (app *Application) onKey(key ebiten.Key, scancode int, action input.Action, mods input.ModifierKey) {
	if action != input.Press {
		return
	}

	switch key {
	case ebiten.KeySpace:
		app.playFirst(false)
	case ebiten.KeyL:
		app.playFirst(true)
	case ebiten.KeyS:
		for _, s := range app.sounds.Sounds() {
			s.Stop()
		}
		app.log.Info("All sounds stopped")
	case ebiten.KeyM:
		app.sounds.SetMuted(!app.sounds.IsMuted())
		app.log.Info("Mute toggled", "muted", app.sounds.IsMuted())
	case ebiten.KeyEscape:
		app.game.RequestQuit()
	}
}

// playFirst 最初に読み込んだサウンドを再生する
func (app *Application) playFirst(loop bool) {
	sounds := app.sounds.Sounds()
	if len(sounds) == 0 {
		app.log.Warn("No sounds to play")
		return
	}
	s := sounds[0]

	var err error
	if loop {
		err = s.PlayLoop()
	} else {
		err = s.Play()
	}
	if err != nil {
		app.log.Error("Failed to play sound", "path", s.Path(), "error", err)
		return
	}
	app.log.Info("Playing sound", "path", s.Path(), "loop", loop)
	if err := app.writeJournal("play", "sound", s.Path(), "loop", loop); err != nil {
		app.log.Warn("Failed to write journal", "error", err)
	}
}

// push は解放処理をスタックに積む
func (app *Application) push(name string, fn func() error) {
	app.releases = append(app.releases, release{name: name, fn: fn})
}

// releaseAll は積まれた解放処理を逆順に全て実行する
// 途中で失敗しても残りの解放は続け、エラーはまとめて返す
func (app *Application) releaseAll() error {
	var errs []error
	for i := len(app.releases) - 1; i >= 0; i-- {
		r := app.releases[i]
		app.log.Debug("Releasing resource", "name", r.name)
		if err := r.fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
		}
	}
	app.releases = nil
	return errors.Join(errs...)
}
