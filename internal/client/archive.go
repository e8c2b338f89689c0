package client

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ArchiveContentType is the content type pushed for bundled uploads.
const ArchiveContentType = "application/zip"

// CompressFiles writes a zip archive of paths to w. Directories are added
// recursively under their own base name.
func CompressFiles(w io.Writer, paths ...string) error {
	zw := zip.NewWriter(w)
	for _, p := range paths {
		if err := addPath(zw, p); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addPath(zw *zip.Writer, root string) error {
	root = filepath.Clean(root)
	parent := filepath.Dir(root)

	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(parent, p)
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate

		dst, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(dst, src)
		return err
	})
}

// Decompress extracts the zip archive in r into destDir ("." when empty) and
// returns the paths it wrote. Entries that would land outside destDir are rejected.
func Decompress(r io.ReaderAt, size int64, destDir string) ([]string, error) {
	reader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	if destDir == "" {
		destDir = "."
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, err
	}

	var written []string
	for _, file := range reader.File {
		name := path.Clean(strings.ReplaceAll(file.Name, "\\", "/"))
		if name == "." || path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
			return written, fmt.Errorf("archive entry %q escapes destination", file.Name)
		}
		target := filepath.Join(destDir, filepath.FromSlash(name))

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return written, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return written, err
		}
		if err := extractFile(file, target); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}

func extractFile(file *zip.File, target string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return err
}
