// Package packet unpacks downloaded mail packets and builds reply packets.
package packet

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// zipMagic is the 4-byte magic number for ZIP archives (PK\x03\x04).
var zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// Packet file extensions.
const (
	PacketExt = ".qwk"
	ReplyExt  = ".rep"
)

// IsPacket reports whether the file at path is an archive one of archivers
// can unpack.
func IsPacket(path string, archivers []Archiver) (bool, error) {
	_, ok, err := Detect(path, archivers)
	return ok, err
}

// Extract unpacks the mail packet at srcPath into destDir and returns the
// paths written. Directory components inside the archive are dropped and
// names are lowercased, so callers can find control.dat and messages.dat
// regardless of how the door cased them.
func Extract(ctx context.Context, srcPath, destDir string, archivers []Archiver) ([]string, error) {
	a, ok, err := Detect(srcPath, archivers)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("packet: %s: unsupported archive format", filepath.Base(srcPath))
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("create dest dir %s: %w", destDir, err)
	}
	if a.Native {
		return extractZip(srcPath, destDir)
	}
	if err := a.unpack(ctx, srcPath, destDir); err != nil {
		return nil, err
	}
	return normalizeNames(destDir)
}

func extractZip(srcPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open packet %s: %w", filepath.Base(srcPath), err)
	}
	defer r.Close()

	var extracted []string
	for _, zf := range r.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		name := cleanName(zf.Name)
		if name == "" {
			continue
		}
		destPath := filepath.Join(destDir, name)
		if err := extractZipFile(zf, destPath); err != nil {
			return extracted, fmt.Errorf("extract %s from packet: %w", name, err)
		}
		extracted = append(extracted, destPath)
	}
	return extracted, nil
}

// cleanName flattens an archive member name to a lowercase base name.
func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return strings.ToLower(name)
}

func extractZipFile(zf *zip.File, destPath string) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// normalizeNames lowercases the files an external unpacker left in dir.
func normalizeNames(dir string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		lower := strings.ToLower(name)
		if lower != name {
			if err := os.Rename(filepath.Join(dir, name), filepath.Join(dir, lower)); err != nil {
				return out, fmt.Errorf("rename %s: %w", name, err)
			}
		}
		out = append(out, filepath.Join(dir, lower))
	}
	return out, nil
}

// readMagic returns up to n leading bytes of the file at path.
func readMagic(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	m, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:m], nil
}

func hasMagic(head, magic []byte) bool {
	return len(magic) > 0 && bytes.HasPrefix(head, magic)
}
