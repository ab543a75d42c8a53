package qwk

import "testing"

func TestMSBINKnownValues(t *testing.T) {
	tests := []struct {
		n    uint32
		want [4]byte
	}{
		{0, [4]byte{0, 0, 0, 0}},
		{1, [4]byte{0, 0, 0, 0x81}},
		{2, [4]byte{0, 0, 0, 0x82}},
		{3, [4]byte{0, 0, 0x40, 0x82}},
		{10, [4]byte{0, 0, 0x20, 0x84}},
	}
	for _, tt := range tests {
		if got := Uint32ToMSBIN(tt.n); got != tt.want {
			t.Errorf("Uint32ToMSBIN(%d): got % x, want % x", tt.n, got, tt.want)
		}
		if got := MSBINToUint32(tt.want); got != tt.n {
			t.Errorf("MSBINToUint32(% x): got %d, want %d", tt.want, got, tt.n)
		}
	}
}

func TestMSBINRoundTrip(t *testing.T) {
	for _, n := range []uint32{5, 7, 128, 255, 1000, 4097, 65535, 1 << 20} {
		if got := MSBINToUint32(Uint32ToMSBIN(n)); got != n {
			t.Errorf("round trip %d: got %d", n, got)
		}
	}
}
