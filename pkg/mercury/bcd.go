package mercury

// DecodeBCD converts packed BCD in wire order (most significant byte first)
// to an integer.
//
// The meter transmits 237.6 V as 0x23 0x76. The bytes are swapped into
// memory order (0x76 0x23) and then decoded least significant byte first,
// the low nibble of every byte being the lower decimal digit.
// Nibbles above 9 are not expected; they are accumulated arithmetically
// without correction. Overflow beyond 32 bits is not checked either: fields
// are at most four bytes (eight digits).
func DecodeBCD(wire []byte) uint32 {
	mem := make([]byte, len(wire))
	for i := range wire {
		mem[i] = wire[len(wire)-1-i]
	}

	var (
		result uint32
		weight uint32 = 1
	)
	for _, b := range mem {
		result += uint32(b&0x0f) * weight
		weight *= 10
		result += uint32(b>>4) * weight
		weight *= 10
	}
	return result
}

// EncodeBCD converts v to n bytes of packed BCD in wire order. Digits that
// do not fit into n bytes are dropped.
func EncodeBCD(v uint32, n int) []byte {
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		low := v % 10
		v /= 10
		high := v % 10
		v /= 10
		out[i] = byte(high<<4 | low)
	}
	return out
}
