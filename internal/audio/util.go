package audio

import (
	"math"
	"slices"
)

func bytesToLES16Slice(src []byte, dst []int16) []int16 {
	s16len := len(src) / 2
	dst = slices.Grow(dst, s16len)
	for i := 0; i < s16len; i++ {
		dst = append(dst, int16(src[i*2])|(int16(src[i*2+1])<<8))
	}
	return dst
}

func leS16SliceToBytes(src []int16, dst []byte) []byte {
	s8len := len(src) * 2
	dst = slices.Grow(dst, s8len)
	for i := 0; i < len(src); i++ {
		dst = append(dst, byte(src[i]), byte(src[i]>>8))
	}
	return dst
}

// applyGainDB applies the gain (in dB) to the samples in place, clipping to
// the int16 range.
func applyGainDB(samples []int16, gainDB float64) {
	if gainDB == 0 {
		return
	}
	mult := math.Pow(10, gainDB/20)
	for i, s := range samples {
		v := float64(s) * mult
		switch {
		case v > math.MaxInt16:
			samples[i] = math.MaxInt16
		case v < math.MinInt16:
			samples[i] = math.MinInt16
		default:
			samples[i] = int16(v)
		}
	}
}

// detectSound returns true if at least minCount samples have an amplitude of
// at least threshold.
func detectSound(samples []int16, threshold int16, minCount int) bool {
	var count int
	for _, s := range samples {
		if s >= threshold || s <= -threshold {
			count++
			if count >= minCount {
				return true
			}
		}
	}
	return false
}
