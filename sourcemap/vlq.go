package sourcemap

import (
	"bytes"
)

var base64 = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/")

// AppendVLQ appends the base64 variable length quantity of value. Each digit holds five bits of
// data and a continuation bit, the lowest bit of the first digit is the sign.
func AppendVLQ(b []byte, value int32) []byte {
	var vlq uint32
	if value < 0 {
		vlq = uint32(-int64(value))<<1 | 1
	} else {
		vlq = uint32(value) << 1
	}

	for {
		digit := vlq & 31
		vlq >>= 5
		if vlq != 0 {
			digit |= 32
		}
		b = append(b, base64[digit])
		if vlq == 0 {
			return b
		}
	}
}

// DecodeVLQ decodes a variable length quantity starting at b[start]. It returns the value, the
// position after it, and false if no complete quantity was found.
func DecodeVLQ(b []byte, start int) (int32, int, bool) {
	shift := uint(0)
	vlq := uint64(0)
	for {
		if len(b) <= start || 32 < shift {
			return 0, start, false
		}
		index := bytes.IndexByte(base64, b[start])
		if index < 0 {
			return 0, start, false
		}
		vlq |= uint64(index&31) << shift
		start++
		shift += 5
		if index&32 == 0 {
			break
		}
	}

	value := int32(vlq >> 1)
	if vlq&1 != 0 {
		value = -value
	}
	return value, start, true
}
