package qwk

import (
	"encoding/binary"
	"math"
)

// Legacy NDX files store record numbers as Microsoft Binary Format (BASIC
// "real") single-precision floats, little-endian:
//
//	byte 3      exponent, bias 129 (0 means the value is zero)
//	byte 2 bit7 sign
//	bytes 0-2   23-bit mantissa with an implied leading 1
//
// IEEE-754 uses bias 127 with the sign in the top bit, so converting is a
// matter of moving the sign and adjusting the exponent by 2.

// Uint32ToMSBIN encodes n as a 4-byte MSBIN float.
func Uint32ToMSBIN(n uint32) [4]byte {
	var out [4]byte
	if n == 0 {
		return out
	}
	ieee := math.Float32bits(float32(n))
	sign := byte(ieee >> 31)
	exp := byte(ieee>>23) + 2
	mant := ieee & 0x007FFFFF

	out[0] = byte(mant)
	out[1] = byte(mant >> 8)
	out[2] = byte(mant>>16)&0x7F | sign<<7
	out[3] = exp
	return out
}

// MSBINToUint32 decodes a 4-byte MSBIN float, truncating any fraction.
func MSBINToUint32(b [4]byte) uint32 {
	if b[3] <= 2 {
		return 0
	}
	sign := uint32(b[2] >> 7)
	exp := uint32(b[3]) - 2
	mant := binary.LittleEndian.Uint32([]byte{b[0], b[1], b[2] & 0x7F, 0})
	f := math.Float32frombits(sign<<31 | exp<<23 | mant)
	if f < 0 {
		return 0
	}
	return uint32(f)
}
