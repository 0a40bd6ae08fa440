// Package tar extracts plain and zstd-compressed tarballs, the archive
// formats overlay layers and source snapshots are shipped in.
package tar

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"crosbuild.dev/alchemist/internal/fileutil"
)

func extractTar(r io.Reader, dest string) error {
	tarReader := tar.NewReader(r)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("failed decoding tar: %w", err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			path := filepath.Join(dest, header.Name)
			if err := os.Mkdir(path, fs.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("failed to mkdir %s with mode %o: %w", path, header.Mode, err)
			}
		case tar.TypeReg:
			path := filepath.Join(dest, header.Name)
			outFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, fs.FileMode(header.Mode).Perm())
			if err != nil {
				return fmt.Errorf("failed to open %s with mode %o: %w", path, header.Mode, err)
			}
			_, err = io.Copy(outFile, tarReader)
			outFile.Close()
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
		case tar.TypeSymlink:
			// Symlink targets are written verbatim: an absolute target
			// only makes sense inside the original chroot, and resolves
			// there once the extracted tree is mounted as its root.
			path := filepath.Join(dest, header.Name)
			if err := os.Symlink(header.Linkname, path); err != nil {
				return fmt.Errorf("failed to link %s -> %s: %w", path, header.Linkname, err)
			}
		case tar.TypeLink:
			// A hard link names another archive member, relative to the
			// archive root, so it is recreated against that member under dest.
			path := filepath.Join(dest, header.Name)
			target := filepath.Join(dest, header.Linkname)
			if err := os.Link(target, path); err != nil {
				return fmt.Errorf("failed to link %s -> %s: %w", path, target, err)
			}
		default:
			return fmt.Errorf("unknown tar entry type %#x for %s", header.Typeflag, header.Name)
		}
	}

	return nil
}

func extractTarZstd(r io.Reader, dest string) error {
	decoder, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return err
	}
	defer decoder.Close()

	return extractTar(decoder, dest)
}

func findExtractor(path string) func(io.Reader, string) error {
	switch {
	case strings.HasSuffix(path, ".tar.zst"):
		return extractTarZstd
	case strings.HasSuffix(path, ".tar"):
		return extractTar
	default:
		return nil
	}
}

// IsTar reports whether path names a file this package knows how to
// extract, based on its extension.
func IsTar(path string) bool {
	return findExtractor(path) != nil
}

// Extract unpacks the tar or tar.zst archive at src into dest, which must
// already exist.
func Extract(src, dest string) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	fn := findExtractor(src)
	if fn == nil {
		return fmt.Errorf("%s has an unrecognized archive extension", src)
	}
	return fn(file, dest)
}

// FileListItem is one regular file, hard link, or symlink entry reported
// by ListFiles/ListFilesZstd.
type FileListItem struct {
	Type byte // tar.TypeReg, tar.TypeLink, or tar.TypeSymlink
	Path string
}

// ListFilesZstd lists the regular-file and link entries of a zstd-compressed
// tarball without extracting it.
func ListFilesZstd(r io.Reader) ([]FileListItem, error) {
	decoder, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return ListFiles(decoder)
}

// ListFiles lists the regular-file and link entries of a plain tarball
// without extracting it.
func ListFiles(r io.Reader) ([]FileListItem, error) {
	tarReader := tar.NewReader(r)

	var items []FileListItem
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed decoding tar: %w", err)
		}

		switch header.Typeflag {
		case tar.TypeReg, tar.TypeLink, tar.TypeSymlink:
			items = append(items, FileListItem{Type: header.Typeflag, Path: header.Name})
		case tar.TypeDir:
			continue
		default:
			return nil, fmt.Errorf("unknown tar entry type %#x for %s", header.Typeflag, header.Name)
		}
	}
	return items, nil
}

// CreateSymlinkTar writes every symlink found under src into a new tar
// file at dest, preserving their relative paths and parent directories,
// then removes those symlinks from src. Used to snapshot the symlink
// forest an overlay layer leaves behind once its regular files have been
// committed to a durable tree by some other means.
func CreateSymlinkTar(src, dest string) error {
	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := tar.NewWriter(file)
	defer writer.Close()

	writtenDirs := map[string]bool{}

	// WalkDir visits files in lexical order, so the resulting tar is
	// deterministic.
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		linkSource, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		linkTarget, err := os.Readlink(path)
		if err != nil {
			return err
		}

		var parents []string
		for parent := filepath.Dir(linkSource); parent != "."; parent = filepath.Dir(parent) {
			if writtenDirs[parent] {
				break
			}
			parents = append(parents, parent)
		}
		for i := len(parents) - 1; i >= 0; i-- {
			fi, err := os.Lstat(filepath.Join(src, parents[i]))
			if err != nil {
				return err
			}
			if err := writer.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     parents[i],
				Mode:     int64(fi.Mode() & fs.ModePerm),
			}); err != nil {
				return err
			}
			writtenDirs[parents[i]] = true
		}

		fi, err := os.Lstat(path)
		if err != nil {
			return err
		}
		if err := writer.WriteHeader(&tar.Header{
			Typeflag: tar.TypeSymlink,
			Name:     linkSource,
			Linkname: linkTarget,
			Mode:     int64(fi.Mode() & fs.ModePerm),
		}); err != nil {
			return err
		}

		return fileutil.RemoveWithChmod(path)
	})
}
