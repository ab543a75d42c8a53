package jam

import (
	"hash/crc32"
	"strings"
)

// CRC32String is the JAM CRC of s: only A-Z are lowercased, then the IEEE
// CRC32 is taken without its final inversion. Index records and lastread
// records identify names by this value.
func CRC32String(s string) uint32 {
	lower := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + 32
		}
		return r
	}, s)
	return ^crc32.ChecksumIEEE([]byte(lower))
}
