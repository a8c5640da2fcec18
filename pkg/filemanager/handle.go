// Package filemanager provides an owning, typed wrapper around an OS file handle.
//
// A Handle is opened with an EncodingMode (Text or Binary) and a WriteMode
// (Append, Overwrite or ReadOnly). The pair decides which operations are legal,
// where the stream starts and whether existing content survives. A Handle owns
// its *os.File exclusively; ownership moves with Transfer and the file is closed
// exactly once, by whichever side calls Close.
//
// Handles are not safe for concurrent use.
package filemanager

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zurustar/enginekit/pkg/logger"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// DefaultPerm is the permission used when Append or Overwrite creates a file.
const DefaultPerm os.FileMode = 0644

// Option configures a Handle at Open time.
type Option func(*Handle)

// WithCharset sets the character encoding used by WriteText and ReadAllText.
// Strings are UTF-8 in Go; the file holds the charset's bytes. nil means UTF-8 as-is.
func WithCharset(enc encoding.Encoding) Option {
	return func(h *Handle) {
		h.charset = enc
	}
}

// WithLogger sets the logger used for open/close tracing.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handle) {
		h.log = log
	}
}

// WithPerm sets the permission bits for files created by Append or Overwrite.
func WithPerm(perm os.FileMode) Option {
	return func(h *Handle) {
		h.perm = perm
	}
}

// Handle exclusively owns an open file.
type Handle struct {
	path     string
	encoding EncodingMode
	mode     WriteMode
	file     *os.File // nil while Closed
	charset  encoding.Encoding
	perm     os.FileMode
	log      *slog.Logger
}

// Open opens path with flags derived from the (enc, wm) pair.
//
//	Append:    O_RDWR|O_CREATE|O_APPEND, positioned at end
//	Overwrite: O_RDWR|O_CREATE|O_TRUNC
//	ReadOnly:  O_RDONLY
//
// Any failure is reported as KindOpenFailed and no file is left open.
func Open(path string, enc EncodingMode, wm WriteMode, opts ...Option) (*Handle, error) {
	h := &Handle{
		path:     path,
		encoding: enc,
		mode:     wm,
		perm:     DefaultPerm,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.GetLogger()
	}

	if path == "" {
		return nil, newError(KindOpenFailed, "open", path, errors.New("empty path"))
	}
	if !enc.valid() {
		return nil, newError(KindOpenFailed, "open", path, fmt.Errorf("invalid encoding mode %v", enc))
	}
	flag, ok := wm.flags()
	if !ok {
		return nil, newError(KindOpenFailed, "open", path, fmt.Errorf("invalid write mode %v", wm))
	}

	file, err := os.OpenFile(path, flag, h.perm)
	if err != nil {
		return nil, newError(KindOpenFailed, "open", path, err)
	}

	// O_APPENDは書き込み位置だけを末尾にするので、読み込み位置も末尾に合わせる
	if wm == Append {
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			_ = file.Close()
			return nil, newError(KindOpenFailed, "open", path, err)
		}
	}

	h.file = file
	h.log.Debug("file opened", "path", path, "encoding", enc, "mode", wm)
	return h, nil
}

// IsOpen reports whether h currently owns an open file.
func (h *Handle) IsOpen() bool {
	return h != nil && h.file != nil
}

// State returns StateOpen or StateClosed.
func (h *Handle) State() State {
	if h.IsOpen() {
		return StateOpen
	}
	return StateClosed
}

// Path returns the path the handle was opened with.
func (h *Handle) Path() string {
	return h.path
}

// EncodingMode returns the handle's encoding mode.
func (h *Handle) EncodingMode() EncodingMode {
	return h.encoding
}

// WriteMode returns the handle's write mode.
func (h *Handle) WriteMode() WriteMode {
	return h.mode
}

// String returns a short description for logs.
func (h *Handle) String() string {
	return fmt.Sprintf("%s(%v,%v,%v)", h.path, h.encoding, h.mode, h.State())
}

// WriteText writes s at the current position.
// Requires an open Text handle that is not ReadOnly.
func (h *Handle) WriteText(s string) error {
	const op = "write_text"
	if err := h.checkOpen(op); err != nil {
		return err
	}
	if h.encoding != Text {
		return newError(KindWrongMode, op, h.path, fmt.Errorf("text write on %v handle", h.encoding))
	}
	if !h.mode.writable() {
		return newError(KindWrongMode, op, h.path, fmt.Errorf("write on %v handle", h.mode))
	}

	data := s
	if h.charset != nil {
		encoded, _, err := transform.String(h.charset.NewEncoder(), s)
		if err != nil {
			return newError(KindIO, op, h.path, fmt.Errorf("encode: %w", err))
		}
		data = encoded
	}

	if _, err := io.WriteString(h.file, data); err != nil {
		return newError(KindIO, op, h.path, err)
	}
	return nil
}

// WriteBytes writes exactly buf[:size]. It is legal in both encoding modes.
// A short write is reported as KindIO together with the number of bytes that reached the file.
func (h *Handle) WriteBytes(buf []byte, size int) (int, error) {
	const op = "write_bytes"
	if err := h.checkOpen(op); err != nil {
		return 0, err
	}
	if !h.mode.writable() {
		return 0, newError(KindWrongMode, op, h.path, fmt.Errorf("write on %v handle", h.mode))
	}
	if size < 0 || size > len(buf) {
		return 0, newError(KindIO, op, h.path, fmt.Errorf("%w: size %d, buffer %d", ErrInvalidSize, size, len(buf)))
	}

	n, err := h.file.Write(buf[:size])
	if err != nil {
		return n, newError(KindIO, op, h.path, err)
	}
	return n, nil
}

// ReadAllText returns everything from the current position to EOF.
// Requires an open Text handle.
func (h *Handle) ReadAllText() (string, error) {
	const op = "read_all_text"
	if err := h.checkOpen(op); err != nil {
		return "", err
	}
	if h.encoding != Text {
		return "", newError(KindWrongMode, op, h.path, fmt.Errorf("text read on %v handle", h.encoding))
	}

	data, err := io.ReadAll(h.file)
	if err != nil {
		return "", newError(KindIO, op, h.path, err)
	}
	if h.charset == nil {
		return string(data), nil
	}

	decoded, _, err := transform.Bytes(h.charset.NewDecoder(), data)
	if err != nil {
		return "", newError(KindIO, op, h.path, fmt.Errorf("decode: %w", err))
	}
	return string(decoded), nil
}

// ReadBytes reads up to size bytes into buf and returns the count.
// It returns 0 and a nil error at EOF. It is legal in both encoding modes.
func (h *Handle) ReadBytes(buf []byte, size int) (int, error) {
	const op = "read_bytes"
	if err := h.checkOpen(op); err != nil {
		return 0, err
	}
	if size < 0 || size > len(buf) {
		return 0, newError(KindIO, op, h.path, fmt.Errorf("%w: size %d, buffer %d", ErrInvalidSize, size, len(buf)))
	}

	n, err := io.ReadFull(h.file, buf[:size])
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return n, nil
	default:
		return n, newError(KindIO, op, h.path, err)
	}
}

// Seek sets the position for the next read or write and returns the new offset.
// Switching between reading and writing on one handle needs an explicit Seek.
// In Append mode writes still go to the end of the file.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	const op = "seek"
	if err := h.checkOpen(op); err != nil {
		return 0, err
	}
	pos, err := h.file.Seek(offset, whence)
	if err != nil {
		return 0, newError(KindIO, op, h.path, err)
	}
	return pos, nil
}

// Size returns the current size of the file.
func (h *Handle) Size() (int64, error) {
	const op = "size"
	if err := h.checkOpen(op); err != nil {
		return 0, err
	}
	info, err := h.file.Stat()
	if err != nil {
		return 0, newError(KindIO, op, h.path, err)
	}
	return info.Size(), nil
}

// Sync commits the file's contents to stable storage.
func (h *Handle) Sync() error {
	const op = "sync"
	if err := h.checkOpen(op); err != nil {
		return err
	}
	if err := h.file.Sync(); err != nil {
		return newError(KindIO, op, h.path, err)
	}
	return nil
}

// Close releases the file and moves the handle to StateClosed.
// Closing a closed handle is a no-op.
func (h *Handle) Close() error {
	if !h.IsOpen() {
		return nil
	}
	file := h.file
	h.file = nil

	if err := file.Close(); err != nil {
		return newError(KindIO, "close", h.path, err)
	}
	h.log.Debug("file closed", "path", h.path)
	return nil
}

// Transfer moves ownership into a new Handle and leaves h Closed.
func (h *Handle) Transfer() (*Handle, error) {
	dst := &Handle{}
	if err := h.TransferTo(dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// TransferTo moves ownership into dst and leaves h Closed.
// If dst already owns a file, that file is closed first; a failure closing it
// is returned after the move has completed.
// Transferring a handle to itself does nothing.
func (h *Handle) TransferTo(dst *Handle) error {
	const op = "transfer"
	if dst == h {
		return nil
	}
	if err := h.checkOpen(op); err != nil {
		return err
	}
	if dst == nil {
		return newError(KindNotOpen, op, h.path, errors.New("nil destination"))
	}

	closeErr := dst.Close()

	*dst = *h
	h.file = nil

	dst.log.Debug("file transferred", "path", dst.path)
	return closeErr
}

func (h *Handle) checkOpen(op string) error {
	if h == nil {
		return newError(KindNotOpen, op, "", nil)
	}
	if h.file == nil {
		return newError(KindNotOpen, op, h.path, nil)
	}
	return nil
}
