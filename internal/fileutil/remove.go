package fileutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// RemoveWithChmod calls os.Remove after ensuring u+rwx on the parent
// directory, restoring its original permissions afterward.
func RemoveWithChmod(path string) error {
	parent := filepath.Dir(path)
	stat, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if err := os.Chmod(parent, 0700); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return err
	}
	return os.Chmod(parent, stat.Mode())
}

// RemoveAllWithChmod calls os.RemoveAll after ensuring u+rwx on every
// directory under path, so locked-down overlay/container layers can still
// be torn down.
func RemoveAllWithChmod(path string) error {
	_, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	if err := filepath.WalkDir(path, func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		fileInfo, err := info.Info()
		if err != nil {
			return err
		}
		if fileInfo.Mode().Perm()&0700 == 0700 {
			return nil
		}
		return os.Chmod(path, 0700)
	}); err != nil {
		return err
	}

	parent := filepath.Dir(path)
	stat, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if err := os.Chmod(parent, 0700); err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return err
	}
	return os.Chmod(parent, stat.Mode())
}
