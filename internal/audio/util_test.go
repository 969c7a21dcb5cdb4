package audio

import (
	"math"
	"testing"

	"github.com/companyzero/uvcloop/internal/assert"
)

func TestLES16Conversion(t *testing.T) {
	t.Parallel()

	in := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0xff, 0x7f}
	samples := bytesToLES16Slice(in, nil)
	assert.DeepEqual(t, samples, []int16{1, -1, math.MinInt16, math.MaxInt16})
	assert.DeepEqual(t, leS16SliceToBytes(samples, nil), in)
}

func TestApplyGainDB(t *testing.T) {
	t.Parallel()

	samples := []int16{100, -100, 20000, -20000}
	applyGainDB(samples, 0)
	assert.DeepEqual(t, samples, []int16{100, -100, 20000, -20000})

	// +20dB multiplies by 10 and clips.
	applyGainDB(samples, 20)
	assert.DeepEqual(t, samples, []int16{1000, -1000, math.MaxInt16, math.MinInt16})

	// -20dB divides by 10.
	samples = []int16{1000, -1000}
	applyGainDB(samples, -20)
	assert.DeepEqual(t, samples, []int16{100, -100})
}

func TestDetectSound(t *testing.T) {
	t.Parallel()

	assert.BoolIs(t, detectSound([]int16{0, 10, -10}, 500, 1), false)
	assert.BoolIs(t, detectSound([]int16{0, 600, -10}, 500, 1), true)
	assert.BoolIs(t, detectSound([]int16{0, 600, -600}, 500, 3), false)
	assert.BoolIs(t, detectSound([]int16{700, 600, -600}, 500, 3), true)
}
