package filemanager

import (
	"fmt"
	"os"
)

// EncodingMode はハンドルで許可される型付き操作を決める。
type EncodingMode int

const (
	Text   EncodingMode = iota // 文字列操作とバイト列操作の両方が可能
	Binary                     // バイト列操作のみ。改行・文字コード変換なし
)

// String returns the string representation of an EncodingMode.
func (m EncodingMode) String() string {
	switch m {
	case Text:
		return "Text"
	case Binary:
		return "Binary"
	default:
		return fmt.Sprintf("EncodingMode(%d)", int(m))
	}
}

func (m EncodingMode) valid() bool {
	return m == Text || m == Binary
}

// WriteMode は初期位置と既存内容を残すかどうかを決める。
//
//	Append    読み書き可、書き込みは常に末尾、初期位置は末尾、内容を保持
//	Overwrite 読み書き可、初期位置は先頭、オープン時に切り詰め
//	ReadOnly  読み込みのみ、初期位置は先頭、内容を保持
type WriteMode int

const (
	Append WriteMode = iota
	Overwrite
	ReadOnly
)

// String returns the string representation of a WriteMode.
func (m WriteMode) String() string {
	switch m {
	case Append:
		return "Append"
	case Overwrite:
		return "Overwrite"
	case ReadOnly:
		return "ReadOnly"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// flags はWriteModeに対応するos.OpenFileのフラグを返す。
// ReadOnlyで書き込みフラグを立てないこと。
func (m WriteMode) flags() (int, bool) {
	switch m {
	case Append:
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, true
	case Overwrite:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, true
	case ReadOnly:
		return os.O_RDONLY, true
	default:
		return 0, false
	}
}

// writable reports whether the mode permits writes.
func (m WriteMode) writable() bool {
	return m != ReadOnly
}

// State is the lifecycle state of a Handle.
type State int

const (
	StateClosed State = iota
	StateOpen
)

// String returns the string representation of a State.
func (s State) String() string {
	if s == StateOpen {
		return "Open"
	}
	return "Closed"
}
