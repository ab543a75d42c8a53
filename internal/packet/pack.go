package packet

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/stlalpha/qmail/internal/qwk"
)

// Pack writes files into a ZIP mail packet at path, each stored under its
// upper-cased base name as DOS doors expect. A partial packet is never left
// at path.
func Pack(path string, files ...string) error {
	return createZip(path, func(zw *zip.Writer) error {
		for _, name := range files {
			if err := addFile(zw, name); err != nil {
				return err
			}
		}
		return nil
	})
}

func addFile(zw *zip.Writer, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return &qwk.IOError{Op: "open", Path: name, Err: err}
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return &qwk.IOError{Op: "stat", Path: name, Err: err}
	}

	hdr := &zip.FileHeader{
		Name:     strings.ToUpper(filepath.Base(name)),
		Method:   zip.Deflate,
		Modified: fi.ModTime(),
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s to packet: %w", hdr.Name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("add %s to packet: %w", hdr.Name, err)
	}
	return nil
}

// createZip writes a ZIP archive through fill into a temporary file and
// renames it to path on success.
func createZip(path string, fill func(zw *zip.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create packet dir: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return &qwk.IOError{Op: "create", Path: tmpPath, Err: err}
	}

	zw := zip.NewWriter(f)
	if err := fill(zw); err != nil {
		zw.Close()
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("close zip writer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close packet file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename packet: %w", err)
	}
	return nil
}
