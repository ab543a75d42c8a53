package jam

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Base is an open JAM message base.
type Base struct {
	path string
	hdr  BaseHeader
	jhr  *os.File
	jdt  *os.File
	jdx  *os.File
	jlr  *os.File
	mu   sync.RWMutex
}

// Open opens the existing base at path, the file name without extension.
func Open(path string) (*Base, error) {
	b := &Base{path: path}
	if err := b.openFiles(os.O_RDWR); err != nil {
		return nil, err
	}
	if err := b.readHeader(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Create creates an empty base at path, replacing any base already there.
// An empty password leaves the base unprotected.
func Create(path, password string) (*Base, error) {
	b := &Base{path: path}
	if err := b.openFiles(os.O_RDWR | os.O_CREATE | os.O_TRUNC); err != nil {
		return nil, err
	}
	copy(b.hdr.Signature[:], Signature)
	b.hdr.DateCreated = uint32(time.Now().Unix())
	b.hdr.BaseMsgNum = 1
	b.hdr.PasswordCRC = CRC32String(password)
	if err := b.writeHeader(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Base) openFiles(flag int) error {
	for _, f := range []struct {
		ext string
		dst **os.File
	}{
		{extHeader, &b.jhr},
		{extText, &b.jdt},
		{extIndex, &b.jdx},
		{extLastRead, &b.jlr},
	} {
		fh, err := os.OpenFile(b.path+f.ext, flag, 0644)
		if err != nil {
			b.Close()
			return fmt.Errorf("jam: open %s%s: %w", b.path, f.ext, err)
		}
		*f.dst = fh
	}
	return nil
}

// Close closes the base files.
func (b *Base) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for _, f := range []**os.File{&b.jhr, &b.jdt, &b.jdx, &b.jlr} {
		if *f == nil {
			continue
		}
		if err := (*f).Close(); err != nil {
			errs = append(errs, err)
		}
		*f = nil
	}
	return errors.Join(errs...)
}

// Path returns the base path without extension.
func (b *Base) Path() string { return b.path }

// Header returns the base header as last read or written.
func (b *Base) Header() BaseHeader {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hdr
}

// Refresh rereads the base header, picking up changes made by other
// programs.
func (b *Base) Refresh() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readHeader()
}

// NeedsPassword reports whether the base is password protected.
func (b *Base) NeedsPassword() bool {
	return b.Header().PasswordCRC != NoCRC
}

// CheckPassword reports whether password opens the base.
func (b *Base) CheckPassword(password string) bool {
	crc := b.Header().PasswordCRC
	return crc == NoCRC || crc == CRC32String(password)
}

// Count returns the number of index records, deleted ones included.
func (b *Base) Count() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count()
}

func (b *Base) count() (int, error) {
	if b.jdx == nil {
		return 0, ErrClosed
	}
	fi, err := b.jdx.Stat()
	if err != nil {
		return 0, fmt.Errorf("jam: stat index: %w", err)
	}
	return int(fi.Size() / IndexRecordSize), nil
}

func (b *Base) readHeader() error {
	if b.jhr == nil {
		return ErrClosed
	}
	var h BaseHeader
	if err := binary.Read(io.NewSectionReader(b.jhr, 0, HeaderSize), binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("jam: read base header: %w", err)
	}
	if string(h.Signature[:]) != Signature {
		return ErrInvalidSignature
	}
	b.hdr = h
	return nil
}

func (b *Base) writeHeader() error {
	if b.jhr == nil {
		return ErrClosed
	}
	if _, err := b.jhr.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("jam: write base header: %w", err)
	}
	if err := binary.Write(b.jhr, binary.LittleEndian, &b.hdr); err != nil {
		return fmt.Errorf("jam: write base header: %w", err)
	}
	return nil
}
