// Package fileutil provides read-only asset lookup over a real directory or an fs.FS.
// Lookups ignore letter case so that asset names written on one platform resolve on another.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// ErrNotFound is returned when no file matches the requested name.
var ErrNotFound = errors.New("file not found")

// FileSystem はアセット読み込みに使うファイルシステム
type FileSystem interface {
	// ReadFile はファイルの内容を読み込む（大文字小文字を無視）
	ReadFile(name string) ([]byte, error)
	// FindFile は大文字小文字を無視してファイルを検索し、実際のパスを返す
	FindFile(name string) (string, error)
	// List はdir直下でextsのいずれかの拡張子を持つファイルを名前順に返す
	List(dir string, exts ...string) ([]string, error)
	// Root は説明用のルート名を返す
	Root() string
}

// AssetFS implements FileSystem on top of an fs.FS.
type AssetFS struct {
	fsys fs.FS
	root string
}

// NewDirFS returns a FileSystem rooted at a directory on disk.
func NewDirFS(dir string) *AssetFS {
	return &AssetFS{fsys: os.DirFS(dir), root: dir}
}

// NewFS returns a FileSystem over fsys (embed.FS, fstest.MapFS, ...).
// root is only used in error messages.
func NewFS(fsys fs.FS, root string) *AssetFS {
	return &AssetFS{fsys: fsys, root: root}
}

// Root returns the root name given at construction.
func (a *AssetFS) Root() string {
	return a.root
}

// ReadFile reads name after resolving it case-insensitively.
func (a *AssetFS) ReadFile(name string) ([]byte, error) {
	actual, err := a.FindFile(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(a.fsys, actual)
}

// FindFile returns the actual slash-separated path of name inside the file system.
func (a *AssetFS) FindFile(name string) (string, error) {
	clean := cleanName(name)
	if _, err := fs.Stat(a.fsys, clean); err == nil {
		return clean, nil
	}
	return FindFileCaseInsensitiveFS(a.fsys, path.Dir(clean), path.Base(clean))
}

// List returns files directly under dir whose extension matches one of exts
// (compared case-insensitively, with the leading dot). No exts means every file.
func (a *AssetFS) List(dir string, exts ...string) ([]string, error) {
	dir = cleanName(dir)
	entries, err := fs.ReadDir(a.fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s in %s: %w", dir, a.root, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !hasExt(entry.Name(), exts) {
			continue
		}
		names = append(names, path.Join(dir, entry.Name()))
	}
	sort.Strings(names)
	return names, nil
}

// FindFileCaseInsensitiveFS searches dir in fsys for filename, ignoring case.
//
// Example:
//
//	p, err := FindFileCaseInsensitiveFS(fsys, "sounds", "JUMP.WAV")
//	// finds "sounds/jump.wav", "sounds/Jump.Wav", ...
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s (%v)", ErrNotFound, path.Join(dir, filename), err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(entry.Name(), filename) {
			return path.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("%w: %s (searched in %s)", ErrNotFound, filename, dir)
}

// cleanName は先頭の "/" や "\" を除去し、fs.FS用のパスに正規化する
func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return "."
	}
	return path.Clean(name)
}

func hasExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := path.Ext(name)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
