package fileutil

import (
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MoveDirContents moves the contents of from to to, granting u+w to any
// directory entry that needs it to rename and restoring original
// permissions afterward.
func MoveDirContents(from string, to string) error {
	es, err := os.ReadDir(from)
	if err != nil {
		return err
	}

	for _, e := range es {
		src := filepath.Join(from, e.Name())
		dest := filepath.Join(to, e.Name())

		var fileMode fs.FileMode
		if e.IsDir() {
			fi, err := e.Info()
			if err != nil {
				return err
			}
			fileMode = fi.Mode()
			if fileMode.Perm()&unix.S_IWUSR == 0 {
				if err := os.Chmod(src, fileMode.Perm()|unix.S_IWUSR); err != nil {
					return err
				}
			}
		}

		if err := os.Rename(src, dest); err != nil {
			return err
		}

		if e.IsDir() {
			if err := os.Chmod(dest, fileMode.Perm()); err != nil {
				return err
			}
		}
	}

	return nil
}
