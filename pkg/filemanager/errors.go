package filemanager

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a file manager failure.
type ErrorKind string

const (
	KindOpenFailed ErrorKind = "OPEN_FAILED" // ファイルシステムがオープンを拒否した
	KindNotOpen    ErrorKind = "NOT_OPEN"    // クローズ済みハンドルへの操作
	KindWrongMode  ErrorKind = "WRONG_MODE"  // Binaryでの文字列操作、ReadOnlyでの書き込み
	KindIO         ErrorKind = "IO_ERROR"    // 読み書き中のストリームエラー
)

// Sentinel errors, one per kind. An *Error matches its kind's sentinel with errors.Is.
var (
	ErrOpenFailed = errors.New("open failed")
	ErrNotOpen    = errors.New("file is not open")
	ErrWrongMode  = errors.New("operation not permitted in this mode")
	ErrIO         = errors.New("i/o error")

	// ErrInvalidSize is wrapped by IO errors whose size argument does not fit the buffer.
	ErrInvalidSize = errors.New("size out of range")
)

// Error is returned by every Handle operation.
// Op is the operation name ("open", "write_text", ...) and Path the file it touched.
type Error struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s %s: %v", e.Kind, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("[%s] %s %s", e.Kind, e.Op, e.Path)
}

// Unwrap returns the underlying cause, usually an *fs.PathError.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindOpenFailed:
		return ErrOpenFailed
	case KindNotOpen:
		return ErrNotOpen
	case KindWrongMode:
		return ErrWrongMode
	case KindIO:
		return ErrIO
	default:
		return nil
	}
}

// KindOf returns the kind of err, or "" if err is not a file manager error.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func newError(kind ErrorKind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
