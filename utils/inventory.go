package utils

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// InventoryEntry is one directory found under an inventory root.
type InventoryEntry struct {
	// Dir is relative to the root; the root itself is ".".
	Dir   string
	Files []string
}

// Size is the number of files directly inside the directory.
func (e InventoryEntry) Size() int {
	return len(e.Files)
}

// Inventory walks root and returns every directory with the regular files it
// directly contains, both sorted. Hidden entries are skipped unless includeHidden is set.
func Inventory(root string, includeHidden bool) ([]InventoryEntry, error) {
	byDir := map[string][]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if !includeHidden && rel != "." && d.Name()[0] == '.' {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, ok := byDir[rel]; !ok {
				byDir[rel] = nil
			}
			return nil
		}
		if d.Type().IsRegular() {
			dir := filepath.Dir(rel)
			byDir[dir] = append(byDir[dir], d.Name())
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %q", root)
	}

	dirs := lo.Keys(byDir)
	sort.Strings(dirs)
	return lo.Map(dirs, func(dir string, _ int) InventoryEntry {
		files := byDir[dir]
		sort.Strings(files)
		return InventoryEntry{Dir: dir, Files: files}
	}), nil
}

// TotalFiles sums the file counts of entries.
func TotalFiles(entries []InventoryEntry) int {
	return lo.SumBy(entries, func(e InventoryEntry) int { return e.Size() })
}
