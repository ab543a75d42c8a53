package jam

import (
	"encoding/binary"
	"fmt"
	"os"
)

// LastReads returns every record of the .jlr file.
func (b *Base) LastReads() ([]LastRead, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastReads()
}

func (b *Base) lastReads() ([]LastRead, error) {
	if b.jlr == nil {
		return nil, ErrClosed
	}
	data, err := os.ReadFile(b.jlr.Name())
	if err != nil {
		return nil, fmt.Errorf("jam: read lastread: %w", err)
	}
	out := make([]LastRead, 0, len(data)/LastReadSize)
	for i := 0; i+LastReadSize <= len(data); i += LastReadSize {
		out = append(out, LastRead{
			UserCRC:     binary.LittleEndian.Uint32(data[i:]),
			UserID:      binary.LittleEndian.Uint32(data[i+4:]),
			LastReadMsg: binary.LittleEndian.Uint32(data[i+8:]),
			HighReadMsg: binary.LittleEndian.Uint32(data[i+12:]),
		})
	}
	return out, nil
}

// LastRead returns the lastread record of user, matched by name CRC.
func (b *Base) LastRead(user string) (LastRead, error) {
	crc := CRC32String(user)
	lrs, err := b.LastReads()
	if err != nil {
		return LastRead{}, err
	}
	for _, lr := range lrs {
		if lr.UserCRC == crc {
			return lr, nil
		}
	}
	return LastRead{}, fmt.Errorf("%w: lastread for %q", ErrNotFound, user)
}

// SetLastRead stores the pointers of user, replacing the record with the
// same name CRC or appending a new one.
func (b *Base) SetLastRead(user string, id, last, high uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	release, err := b.lock()
	if err != nil {
		return err
	}
	defer release()

	lrs, err := b.lastReads()
	if err != nil {
		return err
	}
	crc := CRC32String(user)
	pos := len(lrs)
	for i, lr := range lrs {
		if lr.UserCRC == crc {
			pos = i
			break
		}
	}
	var rec [LastReadSize]byte
	binary.LittleEndian.PutUint32(rec[0:], crc)
	binary.LittleEndian.PutUint32(rec[4:], id)
	binary.LittleEndian.PutUint32(rec[8:], last)
	binary.LittleEndian.PutUint32(rec[12:], high)
	if _, err := b.jlr.WriteAt(rec[:], int64(pos)*LastReadSize); err != nil {
		return fmt.Errorf("jam: write lastread: %w", err)
	}
	return nil
}
