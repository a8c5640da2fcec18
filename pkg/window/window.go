package window

import (
	"context"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/zurustar/enginekit/pkg/sound"
	"golang.org/x/image/font/basicfont"
)

// 画面サイズ
const (
	ScreenWidth  = 640
	ScreenHeight = 480
)

// DefaultTick はヘッドレスモードでUpdateを呼ぶ間隔（60TPS相当）
const DefaultTick = time.Second / 60

var (
	// 背景色 #0087C8
	backgroundColor = color.RGBA{0x00, 0x87, 0xC8, 0xFF}
	// テキスト色（白）
	textColor = color.White
	// デフォルトフォント
	defaultFace = text.NewGoXFace(basicfont.Face7x13)
)

const helpText = "Space: play  L: loop  S: stop  M: mute  Esc: quit"

// InputPoller はフレームごとに入力を読み取りコールバックへ配送する
type InputPoller interface {
	Poll()
}

// SoundSystem はウィンドウが参照するサウンドマネージャーの機能
type SoundSystem interface {
	Update()
	Sounds() []*sound.Sound
	Playing() int
	IsMuted() bool
}

// FileTable は開いているファイルハンドルの数を返す
type FileTable interface {
	Len() int
}

// Overlay はデバッグUIの即時モードAPI
type Overlay interface {
	BeginFrame() error
	Text(format string, args ...any)
	Value(label string, v any)
	Separator()
	EndFrame(screen *ebiten.Image) error
}

// Game はEbitengineのゲームインターフェースを実装する
type Game struct {
	timeout   time.Duration    // タイムアウト時間
	startTime time.Time        // 開始時刻
	now       func() time.Time // テスト用に差し替え可能な時計

	poller  InputPoller
	sounds  SoundSystem
	files   FileTable
	overlay Overlay

	frames    int   // Updateの呼び出し回数
	quit      bool  // RequestQuitが呼ばれた
	drawError error // Drawで発生したエラー（次のUpdateで返す）
	mu        sync.RWMutex
}

// NewGame Gameを作成
func NewGame(timeout time.Duration) *Game {
	return &Game{
		timeout:   timeout,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// SetInputPoller sets the input poller called at the start of every Update.
func (g *Game) SetInputPoller(p InputPoller) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.poller = p
}

// SetSoundSystem sets the sound manager updated every frame.
func (g *Game) SetSoundSystem(s SoundSystem) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sounds = s
}

// SetFileTable sets the table whose handle count is shown in the overlay.
func (g *Game) SetFileTable(t FileTable) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files = t
}

// SetOverlay sets the debug UI drawn on top of the screen.
func (g *Game) SetOverlay(o Overlay) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.overlay = o
}

// RequestQuit はUpdateの次の呼び出しでゲームループを終了させる
func (g *Game) RequestQuit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quit = true
}

// Frames returns the number of completed Update calls.
func (g *Game) Frames() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frames
}

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (g *Game) Update() error {
	g.mu.Lock()
	if g.drawError != nil {
		err := g.drawError
		g.mu.Unlock()
		return err
	}
	// タイムアウトチェック
	if g.quit || (g.timeout > 0 && g.now().Sub(g.startTime) >= g.timeout) {
		g.mu.Unlock()
		return ebiten.Termination
	}
	poller := g.poller
	sounds := g.sounds
	g.mu.Unlock()

	// 入力コールバックはRequestQuitを呼ぶことがあるのでロックの外で実行する
	if poller != nil {
		poller.Poll()
	}
	if sounds != nil {
		sounds.Update()
	}

	g.mu.Lock()
	g.frames++
	g.mu.Unlock()
	return nil
}

// Draw 画面を描画する
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	helpOp := &text.DrawOptions{}
	helpOp.GeoM.Translate(8, ScreenHeight-20)
	helpOp.ColorScale.ScaleWithColor(textColor)
	text.Draw(screen, helpText, defaultFace, helpOp)

	g.mu.RLock()
	overlay := g.overlay
	g.mu.RUnlock()
	if overlay == nil {
		return
	}
	if err := g.drawOverlay(screen, overlay); err != nil {
		g.mu.Lock()
		g.drawError = fmt.Errorf("debug ui: %w", err)
		g.mu.Unlock()
	}
}

// drawOverlay デバッグUIに状態を表示する
func (g *Game) drawOverlay(screen *ebiten.Image, overlay Overlay) error {
	if err := overlay.BeginFrame(); err != nil {
		return err
	}

	g.mu.RLock()
	files := g.files
	sounds := g.sounds
	frames := g.frames
	g.mu.RUnlock()

	overlay.Text("enginekit")
	overlay.Value("fps", fmt.Sprintf("%.1f", ebiten.ActualFPS()))
	overlay.Value("frames", frames)
	if files != nil {
		overlay.Value("open files", files.Len())
	}
	if sounds != nil {
		list := sounds.Sounds()
		overlay.Value("sounds", len(list))
		overlay.Value("playing", sounds.Playing())
		overlay.Value("muted", sounds.IsMuted())
		if len(list) > 0 {
			overlay.Separator()
		}
		for _, s := range list {
			marker := " "
			if s.IsPlaying() {
				marker = ">"
			}
			overlay.Text("%s %s", marker, s.Path())
		}
	}

	return overlay.EndFrame(screen)
}

// Layout 画面サイズを返す
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ScreenWidth, ScreenHeight
}

// Run GUIモードでウィンドウを実行
func Run(game *Game, title string) error {
	ebiten.SetWindowSize(ScreenWidth, ScreenHeight)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(game); err != nil {
		return fmt.Errorf("failed to run game: %w", err)
	}
	return nil
}

// RunHeadless ウィンドウを開かずにtickごとにUpdateを呼ぶ
// Updateがebiten.Terminationを返すか、ctxが終了すると正常終了する
func RunHeadless(ctx context.Context, game *Game, tick time.Duration) error {
	if tick <= 0 {
		tick = DefaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := game.Update(); err != nil {
				if err == ebiten.Termination {
					return nil
				}
				return err
			}
		}
	}
}
