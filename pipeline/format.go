package pipeline

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// ValueSize is the encoded size of one value in the staging buffer.
const ValueSize = 4

func encodeValue(v uint32) [ValueSize]byte {
	var rec [ValueSize]byte
	binary.LittleEndian.PutUint32(rec[:], v)
	return rec
}

// decodeValues splits p into little-endian values. len(p) must be a multiple of ValueSize.
func decodeValues(p []byte) []uint32 {
	values := make([]uint32, len(p)/ValueSize)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(p[i*ValueSize:])
	}
	return values
}

// FormatValues renders values as decimal text, one per line.
func FormatValues(values []uint32) string {
	var b strings.Builder
	b.Grow(len(values) * 4)
	for _, v := range values {
		b.WriteString(strconv.FormatUint(uint64(v), 10))
		b.WriteByte('\n')
	}
	return b.String()
}

// thresholdReached reports whether occupancy has reached percent of capacity,
// i.e. occupancy >= ceil(percent*capacity/100), without floating point.
func thresholdReached(occupancy, capacity, percent int) bool {
	return occupancy*100 >= percent*capacity
}
