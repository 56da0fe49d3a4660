// Package fec protects broadcast payloads carried over PBCH: a 24-bit CRC
// per SS/PBCH block and Reed-Solomon erasure coding across the blocks of
// a burst.
package fec

// CRC24CPoly is g_CRC24C(D) = D^24 + D^23 + D^21 + D^20 + D^17 + D^15 +
// D^13 + D^12 + D^8 + D^4 + D^2 + D + 1 (TS 38.212 5.1) without the D^24
// term.
const CRC24CPoly = 0xB2B117

// CRCLen is the CRC length in bits.
const CRCLen = 24

var crc24Table = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		crc := uint32(i) << 16
		for j := 0; j < 8; j++ {
			if crc&0x800000 != 0 {
				crc = (crc << 1) ^ CRC24CPoly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc & 0xFFFFFF
	}
	return t
}()

// CRC24C returns the parity of data read MSB first, with a zero initial
// register and no output inversion.
func CRC24C(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = ((crc << 8) ^ crc24Table[byte(crc>>16)^b]) & 0xFFFFFF
	}
	return crc
}

// CRC24CBits returns the 24 parity bits of a bit sequence (one 0/1 value
// per byte), most significant first.
func CRC24CBits(bits []byte) []byte {
	var crc uint32
	for _, b := range bits {
		in := uint32(b&1) << 23
		if (crc^in)&0x800000 != 0 {
			crc = (crc << 1) ^ CRC24CPoly
		} else {
			crc <<= 1
		}
		crc &= 0xFFFFFF
	}

	p := make([]byte, CRCLen)
	for i := range p {
		p[i] = byte(crc>>uint(CRCLen-1-i)) & 1
	}
	return p
}

// AppendCRC24C appends the 3-byte CRC to data.
func AppendCRC24C(data []byte) []byte {
	crc := CRC24C(data)
	result := make([]byte, len(data)+3)
	copy(result, data)
	result[len(data)] = byte(crc >> 16)
	result[len(data)+1] = byte(crc >> 8)
	result[len(data)+2] = byte(crc)
	return result
}

// VerifyCRC24C checks the CRC at the end of data. It returns the data
// without the CRC and whether the check passed.
func VerifyCRC24C(dataWithCRC []byte) ([]byte, bool) {
	if len(dataWithCRC) < 3 {
		return nil, false
	}
	n := len(dataWithCRC) - 3
	return dataWithCRC[:n], CRC24C(dataWithCRC) == 0
}
