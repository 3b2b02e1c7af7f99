// Package bitio provides the little-endian byte packing helpers shared by
// the object file reader/writer and the linker's relocator. All eZ80 ADL
// addresses and section-relative offsets are 24 bits wide.
package bitio

// Put24 writes the low 24 bits of v into b (which must have length >= 3)
// in little-endian order.
func Put24(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// Get24 reads a 24-bit little-endian unsigned value from b.
func Get24(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}

// Put16 writes the low 16 bits of v into b in little-endian order.
func Put16(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// Get16 reads a 16-bit little-endian unsigned value from b.
func Get16(b []byte) int {
	return int(b[0]) | int(b[1])<<8
}

// Bytes24 returns the 3-byte little-endian encoding of v.
func Bytes24(v int) []byte {
	b := make([]byte, 3)
	Put24(b, v)
	return b
}

// Bytes16 returns the 2-byte little-endian encoding of v.
func Bytes16(v int) []byte {
	b := make([]byte, 2)
	Put16(b, v)
	return b
}
