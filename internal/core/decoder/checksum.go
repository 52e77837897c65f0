package decoder

// Checksum computes the Internet checksum of b: the one's complement of the
// one's complement sum of its 16-bit big-endian words. An odd trailing byte
// is padded with zero. Over a header that carries a correct checksum the
// result is zero.
func Checksum(b []byte) uint16 {
	var sum uint32
	for len(b) >= 2 {
		sum += uint32(b[0])<<8 | uint32(b[1])
		b = b[2:]
	}
	if len(b) == 1 {
		sum += uint32(b[0]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}
