package oto

import (
	"encoding/binary"
	"math"

	"github.com/whiteroom/multisong"
)

// FloatBufferToFloat32LE writes buf to dst as interleaved little-endian
// float32 samples, clipped to [-1, 1], and returns the number of bytes
// written. dst must hold at least 8 bytes per frame.
func FloatBufferToFloat32LE(dst []byte, buf multisong.AudioBuffer) int {
	n := 0
	for _, frame := range buf {
		for _, v := range frame {
			if v < -1 {
				v = -1
			} else if v > 1 {
				v = 1
			} else if v != v {
				v = 0
			}
			binary.LittleEndian.PutUint32(dst[n:], math.Float32bits(v))
			n += 4
		}
	}
	return n
}
