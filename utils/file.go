package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// RemoveFileNoError will remove the file at the given path if it exists. Any
// errors will be suppressed.
func RemoveFileNoError(fsys FileSystem, path string) {
	utils.UncheckedErrorFunc(func() error {
		if fsys.Exists(path) {
			return fsys.Remove(path)
		}
		return nil
	})
}

// SafeJoinDir performs a filepath.Join of 'parent' and 'subdir' but returns an error
// if the resulting path is 'parent' itself or points outside of it.
func SafeJoinDir(parent, subdir string) (string, error) {
	res := filepath.Join(parent, subdir)
	rel, err := filepath.Rel(parent, res)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return res, errors.Errorf("unsafe path join: '%s' with '%s'", parent, subdir)
	}
	return res, nil
}

// ReplaceExt swaps the extension of path for ext, which must include the dot.
// "depth_frames/frame_00000007.png" with ".ply" becomes "frame_00000007.ply" under dir.
func ReplaceExt(path, dir, ext string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+ext)
}
