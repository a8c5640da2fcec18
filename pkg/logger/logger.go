// Package logger configures the process-wide slog logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *slog.Logger
	logFile      *lumberjack.Logger // InitLoggerWithFileで開いたログファイル
)

// ログファイルのローテーション設定
const (
	logFileMaxSizeMB  = 16
	logFileMaxBackups = 3
	logFileMaxAgeDays = 7
)

// ParseLevel はログレベル文字列をslog.Levelに変換する
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// InitLogger ログレベルに応じてslogを初期化
func InitLogger(level string) error {
	return InitLoggerWithFile(level, "")
}

// InitLoggerWithFile は標準出力に加えて、fileが空でなければローテーション付きの
// ログファイルにも出力するようにslogを初期化する
func InitLoggerWithFile(level, file string) error {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}

	if err := CloseLogFile(); err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if file != "" {
		lf := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
			MaxAge:     logFileMaxAgeDays,
		}
		// lumberjackは最初の書き込みでファイルを開くので、ここで開いておく
		if _, err := lf.Write(nil); err != nil {
			return fmt.Errorf("failed to open log file %s: %w", file, err)
		}
		logFile = lf
		w = io.MultiWriter(os.Stdout, logFile)
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slogLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return nil
}

// CloseLogFile はInitLoggerWithFileで開いたログファイルを閉じる
// ファイル出力がない場合は何もしない
func CloseLogFile() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// GetLogger グローバルロガーを取得
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		// デフォルトロガーを返す
		return slog.Default()
	}
	return globalLogger
}

// Discard は何も出力しないロガーを返す（テスト用）
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
