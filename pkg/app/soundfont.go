package app

import (
	"os"
	"path/filepath"

	"github.com/zurustar/enginekit/pkg/fileutil"
)

// SoundFontLocation represents the location of a SoundFont file.
type SoundFontLocation struct {
	// Path is the path to the SoundFont file
	Path string
	// FileSystem is the FileSystem to use for loading (nil for files on disk)
	FileSystem fileutil.FileSystem
}

// DefaultSoundFontName is the default SoundFont filename to search for.
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// findSoundFont searches for a SoundFont file in the following order:
// 1. Explicit path (--soundfont / SOUNDFONT)
// 2. Asset file system (name matched case-insensitively)
// 3. Current directory
//
// Returns nil if no SoundFont is found; MIDI sounds then fail to load.
func findSoundFont(explicit string, assets fileutil.FileSystem) *SoundFontLocation {
	// 1. 明示的に指定されたファイル（存在確認はマネージャー側で行いエラーにする）
	if explicit != "" {
		return &SoundFontLocation{Path: explicit}
	}

	// 2. アセットディレクトリ
	if assets != nil {
		if actual, err := assets.FindFile(DefaultSoundFontName); err == nil {
			return &SoundFontLocation{
				Path:       actual,
				FileSystem: assets,
			}
		}
	}

	// 3. カレントディレクトリ
	if _, err := os.Stat(DefaultSoundFontName); err == nil {
		return &SoundFontLocation{Path: filepath.Clean(DefaultSoundFontName)}
	}

	return nil
}
