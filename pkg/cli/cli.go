package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultJournalPath はセッションジャーナルの既定の出力先
const DefaultJournalPath = "enginekit-journal.txt"

// Config はコマンドライン引数と環境変数から解析された設定を保持する
type Config struct {
	AssetPath   string        // サウンド等のアセットディレクトリ
	Timeout     time.Duration // タイムアウト時間（0は無制限）
	LogLevel    string        // ログレベル（debug, info, warn, error）
	LogFile     string        // ログファイル（空なら標準出力のみ）
	Headless    bool          // ヘッドレスモード
	DebugUI     bool          // デバッグUIオーバーレイ
	LogInput    bool          // 入力イベントのログ出力
	Muted       bool          // 起動時にミュート
	SoundFont   string        // MIDI用SoundFont（.sf2）
	JournalPath string        // セッションジャーナルのパス
	ShowHelp    bool          // ヘルプ表示フラグ
}

// boolFlags は値を取らないフラグ（reorderArgsで次の引数を消費しない）
var boolFlags = map[string]bool{
	"-h": true, "-help": true, "--help": true,
	"-headless": true, "--headless": true,
	"-debug-ui": true, "--debug-ui": true,
	"-log-input": true, "--log-input": true,
	"-mute": true, "--mute": true,
}

// ParseArgs コマンドライン引数を解析してConfigを返す
// フラグが指定されていない項目は環境変数から補う（コマンドラインフラグが優先）
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("enginekit", flag.ContinueOnError)

	config := &Config{}

	var timeoutSec int
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.StringVar(&config.LogFile, "log-file", "", "ログファイルのパス")
	fs.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	fs.BoolVar(&config.DebugUI, "debug-ui", false, "デバッグUIを表示")
	fs.BoolVar(&config.LogInput, "log-input", false, "入力イベントをログに出力")
	fs.BoolVar(&config.Muted, "mute", false, "ミュートで起動")
	fs.StringVar(&config.SoundFont, "soundfont", "", "MIDI用SoundFontファイル")
	fs.StringVar(&config.JournalPath, "journal", "", "セッションジャーナルのパス")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 環境変数からの設定（コマンドラインフラグが優先）
	config.Headless = config.Headless || envBool("HEADLESS")
	config.DebugUI = config.DebugUI || envBool("IMGUI_ENABLED")
	config.LogInput = config.LogInput || envBool("LOGGING_ENABLED")

	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}
	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}
	if config.LogFile == "" {
		config.LogFile = os.Getenv("LOG_FILE")
	}
	if config.SoundFont == "" {
		config.SoundFont = os.Getenv("SOUNDFONT")
	}
	if config.JournalPath == "" {
		config.JournalPath = os.Getenv("JOURNAL")
	}
	if config.JournalPath == "" {
		config.JournalPath = DefaultJournalPath
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	// 位置引数（アセットディレクトリ）
	config.AssetPath = "."
	if fs.NArg() > 0 {
		config.AssetPath = fs.Arg(0)
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("too many arguments: %v", fs.Args()[1:])
	}

	return config, nil
}

// envBool は "1" または "true" を真とみなす
func envBool(name string) bool {
	v := os.Getenv(name)
	return v == "1" || strings.ToLower(v) == "true"
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			// -t 5 のように値を取るフラグは次の引数も移動する
			// --timeout=5 の形式は1引数で完結する
			if strings.Contains(arg, "=") || boolFlags[arg] {
				continue
			}
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `enginekit - game engine utility kit demo

Usage:
  enginekit [options] [asset-dir]

Arguments:
  asset-dir     WAV/MIDIファイルを含むディレクトリ（デフォルト: カレントディレクトリ）

Options:
  -t, --timeout <seconds>     指定秒数後にプログラムを終了（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --log-file <path>           ログをファイルにも出力（ローテーションあり）
  --headless                  ヘッドレスモード（GUIなし）
  --debug-ui                  デバッグUIオーバーレイを表示
  --log-input                 キー・マウス入力をログに出力
  --mute                      ミュートで起動
  --soundfont <path>          MIDI再生用のSoundFont（.sf2）
  --journal <path>            セッションジャーナルの出力先（デフォルト: %s）
  -h, --help                  このヘルプを表示

Environment Variables:
  HEADLESS=1                  ヘッドレスモードを有効化
  IMGUI_ENABLED=1             デバッグUIを有効化
  LOGGING_ENABLED=1           入力ログを有効化
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル
  LOG_FILE=<path>             ログファイル
  SOUNDFONT=<path>            SoundFontファイル
  JOURNAL=<path>              ジャーナルファイル

Keys:
  Space                       最初のサウンドを再生
  L                           最初のサウンドをループ再生
  S                           全サウンドを停止

Examples:
  enginekit ./assets                      アセットディレクトリを指定
  enginekit --debug-ui ./assets           デバッグUI付きで実行
  enginekit --headless --timeout 5        5秒間ヘッドレスで実行
  IMGUI_ENABLED=1 enginekit ./assets      環境変数でデバッグUIを有効化
`, DefaultJournalPath)
}
